// Package platform describes what the host platform allows: whether helper
// binaries may run from the private cache, and whether long-running helpers
// must stay attached to the launching process.
package platform

import (
	"os"
	"path/filepath"
)

// Capabilities is the platform capability flag set consulted by the
// provisioning and launch stages.
type Capabilities struct {
	// RestrictsTempExecution is set when binaries written to the private
	// cache may not be executed. The pre-installed helper is then preferred.
	RestrictsTempExecution bool
	// RequiresForegroundStart is set when detached background work would be
	// reaped by the platform, so helpers must be started attached.
	RequiresForegroundStart bool
}

// Detect probes the platform. cacheDir is the directory helpers would be
// extracted into; it need not exist yet.
//
// Detection logic:
//   - cache directory (or nearest existing parent) on a noexec mount -> RestrictsTempExecution
//   - running under a service manager (INVOCATION_ID or NOTIFY_SOCKET set) -> RequiresForegroundStart
func Detect(cacheDir string) Capabilities {
	return Capabilities{
		RestrictsTempExecution:  noexecMount(existingAncestor(cacheDir)),
		RequiresForegroundStart: underServiceManager(),
	}
}

// underServiceManager reports whether this process was started by systemd.
// Detached children of a service are killed with its control group.
func underServiceManager() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("NOTIFY_SOCKET") != ""
}

func existingAncestor(dir string) string {
	dir = filepath.Clean(dir)
	for {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// IsExecutable reports whether path is a regular file this process may
// execute. The check is made against the kernel, so a file with execute bits
// on a noexec mount is not executable.
func IsExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return accessExec(path) == nil
}
