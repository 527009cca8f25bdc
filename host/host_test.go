package host

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/platform"
)

// writeHelper writes a shell script helper that stores its stdin next to
// itself and prints its arguments.
func writeHelper(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "helper")
	script := "#!/bin/sh\ncat > \"$0.stdin\"\necho \"args:$*\"\n" + body
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	if !platform.IsExecutable(path) {
		t.Skip("temp dir does not allow execution")
	}
	if !common.FileExists("/bin/sh") {
		t.Skip("no /bin/sh")
	}
	return path
}

func newTestHost(t *testing.T) *ProcessHost {
	t.Helper()
	return &ProcessHost{StateDir: t.TempDir(), Logger: common.GetLogger()}
}

func TestUnit_Validate(t *testing.T) {
	tests := []struct {
		name    string
		unit    Unit
		wantErr bool
	}{
		{"valid", Unit{ProfileID: "work", Argv: []string{"/bin/true", "--config", "stdin"}}, false},
		{"no args", Unit{ProfileID: "work"}, true},
		{"empty arg", Unit{ProfileID: "work", Argv: []string{"/bin/true", ""}}, true},
		{"no profile", Unit{Argv: []string{"/bin/true"}}, true},
		{"path profile", Unit{ProfileID: "../etc", Argv: []string{"/bin/true"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.unit.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProcessHost_StartForeground(t *testing.T) {
	helper := writeHelper(t, "")
	h := newTestHost(t)

	var (
		mu    sync.Mutex
		lines []string
	)
	h.OnOutput = func(profileID, line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, profileID+"|"+line)
	}

	config := []byte("client\nremote vpn.example.com 1194\n")
	inst, err := h.StartForeground(context.Background(), Unit{
		ID:        common.GenerateID(),
		ProfileID: "work",
		Reason:    "test",
		Argv:      []string{helper, "--config", "stdin"},
		Config:    config,
	})
	if err != nil {
		t.Fatalf("StartForeground() error = %v", err)
	}
	if inst.PID <= 0 {
		t.Errorf("PID = %d", inst.PID)
	}
	if err := inst.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	got, err := os.ReadFile(helper + ".stdin")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(config) {
		t.Errorf("helper stdin = %q, want %q", got, config)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 || lines[0] != "work|args:--config stdin" {
		t.Errorf("output lines = %v", lines)
	}
	if common.FileExists(pidPath(h.StateDir, "work")) {
		t.Error("pid file should be removed after exit")
	}
}

func TestProcessHost_StartForegroundExitError(t *testing.T) {
	helper := writeHelper(t, "exit 3\n")
	h := newTestHost(t)

	inst, err := h.StartForeground(context.Background(), Unit{ProfileID: "work", Argv: []string{helper}})
	if err != nil {
		t.Fatalf("StartForeground() error = %v", err)
	}
	if err := inst.Wait(); err == nil {
		t.Error("Wait() should report the non-zero exit")
	}
}

func TestProcessHost_CancelSendsTerm(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		trapped  bool
		maxDelay time.Duration
	}{
		{
			name:     "helper exits on SIGTERM",
			body:     "trap 'echo term > \"$0.term\"; exit 0' TERM\nwhile :; do sleep 0.1; done\n",
			trapped:  true,
			maxDelay: 2 * time.Second,
		},
		{
			name:     "helper ignoring SIGTERM is killed",
			body:     "trap '' TERM\nwhile :; do sleep 0.1; done\n",
			maxDelay: 3 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			helper := writeHelper(t, tt.body)
			h := newTestHost(t)
			h.StopTimeout = 300 * time.Millisecond

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			inst, err := h.StartForeground(ctx, Unit{ProfileID: "work", Argv: []string{helper}})
			if err != nil {
				t.Fatalf("StartForeground() error = %v", err)
			}

			// Let the shell install its trap.
			time.Sleep(300 * time.Millisecond)
			start := time.Now()
			cancel()

			done := make(chan struct{})
			go func() {
				inst.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(tt.maxDelay):
				t.Fatal("helper still running after cancel")
			}

			if got := common.FileExists(helper + ".term"); got != tt.trapped {
				t.Errorf("SIGTERM handler ran = %v, want %v", got, tt.trapped)
			}
			if !tt.trapped && time.Since(start) < h.StopTimeout {
				t.Errorf("helper killed after %v, before the %v stop timeout", time.Since(start), h.StopTimeout)
			}
			if platform.ProcessAlive(inst.PID) {
				t.Error("helper process should be gone")
			}
		})
	}
}

func TestProcessHost_StartRejected(t *testing.T) {
	h := newTestHost(t)

	_, err := h.StartForeground(context.Background(), Unit{ProfileID: "work"})
	if !errors.Is(err, common.ErrStartRejected) || !errors.Is(err, common.ErrEmptyArguments) {
		t.Errorf("empty argv error = %v", err)
	}

	_, err = h.StartBackground(context.Background(), Unit{
		ProfileID: "work",
		Argv:      []string{filepath.Join(t.TempDir(), "missing")},
	})
	if !errors.Is(err, common.ErrStartRejected) {
		t.Errorf("missing binary error = %v", err)
	}
}

func TestProcessHost_BackgroundReplace(t *testing.T) {
	helper := writeHelper(t, "exec sleep 30\n")
	h := newTestHost(t)
	ctx := context.Background()
	unit := Unit{ProfileID: "work", Argv: []string{helper, "--config", "stdin"}, Config: []byte("a")}

	first, err := h.StartBackground(ctx, unit)
	if err != nil {
		t.Fatalf("StartBackground() error = %v", err)
	}
	t.Cleanup(func() { h.Stop("work") })

	if got := LivePID(h.StateDir, "work"); got != first.PID {
		t.Errorf("LivePID() = %d, want %d", got, first.PID)
	}

	if _, err := h.StartBackground(ctx, unit); !errors.Is(err, common.ErrAlreadyRunning) || !errors.Is(err, common.ErrStartRejected) {
		t.Fatalf("second start error = %v, want ErrAlreadyRunning", err)
	}

	unit.Replace = true
	second, err := h.StartBackground(ctx, unit)
	if err != nil {
		t.Fatalf("replacing start error = %v", err)
	}
	if second.PID == first.PID {
		t.Error("replace should start a new process")
	}

	deadline := time.Now().Add(2 * time.Second)
	for platform.ProcessAlive(first.PID) && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if platform.ProcessAlive(first.PID) {
		t.Error("replaced process should be gone")
	}

	if !common.FileExists(logPath(h.StateDir, "work")) {
		t.Error("background start should create the unit log")
	}

	if err := h.Stop("work"); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if LivePID(h.StateDir, "work") != 0 {
		t.Error("Stop() should clear the pid file")
	}
}

func TestRunning(t *testing.T) {
	dir := t.TempDir()
	if err := writePID(dir, "live", os.Getpid()); err != nil {
		t.Fatal(err)
	}
	if err := writePID(dir, "stale", 999999999); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pidPath(dir, "corrupt"), []byte("nope"), 0600); err != nil {
		t.Fatal(err)
	}

	units, err := Running(dir)
	if err != nil {
		t.Fatalf("Running() error = %v", err)
	}
	if len(units) != 1 || units[0].ProfileID != "live" || units[0].PID != os.Getpid() {
		t.Fatalf("Running() = %+v", units)
	}
	for _, gone := range []string{"stale", "corrupt"} {
		if common.FileExists(pidPath(dir, gone)) {
			t.Errorf("%s pid file should be pruned", gone)
		}
	}
}

func TestRemovePID_OnlyMatching(t *testing.T) {
	dir := t.TempDir()
	if err := writePID(dir, "work", 42); err != nil {
		t.Fatal(err)
	}

	removePID(dir, "work", 41)
	data, err := os.ReadFile(pidPath(dir, "work"))
	if err != nil {
		t.Fatal("pid file of another process must survive")
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(42) {
		t.Errorf("pid file = %q", data)
	}

	removePID(dir, "work", 42)
	if common.FileExists(pidPath(dir, "work")) {
		t.Error("pid file should be removed")
	}
}
