//go:build unix

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

func accessExec(path string) error {
	return unix.Access(path, unix.X_OK)
}

// ProcessAlive reports whether pid names a live process.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
