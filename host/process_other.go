//go:build !unix

package host

import (
	"os"
	"syscall"
	"time"
)

func detachedAttr() *syscall.SysProcAttr {
	return nil
}

func interrupt(p *os.Process) error {
	return p.Kill()
}

func terminate(pid int, _ time.Duration) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}
