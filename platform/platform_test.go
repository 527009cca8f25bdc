package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsExecutable(t *testing.T) {
	dir := t.TempDir()
	if Detect(dir).RestrictsTempExecution {
		t.Skip("temp directory is mounted noexec")
	}

	exec := filepath.Join(dir, "exec")
	if err := os.WriteFile(exec, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"executable file", exec, true},
		{"plain file", plain, false},
		{"directory", dir, false},
		{"missing", filepath.Join(dir, "missing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExecutable(tt.path); got != tt.want {
				t.Errorf("IsExecutable(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestExistingAncestor(t *testing.T) {
	dir := t.TempDir()
	got := existingAncestor(filepath.Join(dir, "a", "b", "c"))
	if got != dir {
		t.Errorf("existingAncestor() = %v, want %v", got, dir)
	}
}

func TestDetect_ServiceManager(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	t.Setenv("INVOCATION_ID", "")
	if Detect(t.TempDir()).RequiresForegroundStart {
		t.Error("RequiresForegroundStart should be false outside a service manager")
	}

	t.Setenv("INVOCATION_ID", "0123456789abcdef")
	if !Detect(t.TempDir()).RequiresForegroundStart {
		t.Error("RequiresForegroundStart should be true under a service manager")
	}
}

func TestProcessAlive(t *testing.T) {
	if !ProcessAlive(os.Getpid()) {
		t.Error("ProcessAlive(self) = false")
	}
	if ProcessAlive(0) || ProcessAlive(-1) {
		t.Error("ProcessAlive should reject non-positive pids")
	}
}
