package host

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/yllada/vpn-launcher/common"
)

// ProcessHost runs the helper as a child process and tracks it with pid
// files in StateDir.
type ProcessHost struct {
	StateDir string
	Logger   common.Logger
	// OnOutput, when set, receives every output line of a foreground helper.
	OnOutput func(profileID, line string)
	// StopTimeout is how long a helper gets to exit after SIGTERM before it
	// is killed. Zero means common.StopTimeout.
	StopTimeout time.Duration
}

// NewProcessHost returns a host writing pid files and detached logs to stateDir.
func NewProcessHost(stateDir string) *ProcessHost {
	return &ProcessHost{StateDir: stateDir, Logger: common.GetLogger()}
}

func (h *ProcessHost) stopTimeout() time.Duration {
	if h.StopTimeout > 0 {
		return h.StopTimeout
	}
	return common.StopTimeout
}

// StartForeground starts the helper attached to this process. Its output is
// streamed into the logger and Wait on the returned instance blocks until
// it exits. Cancelling ctx stops the helper the way Stop does: SIGTERM,
// then SIGKILL once the stop timeout has passed.
func (h *ProcessHost) StartForeground(ctx context.Context, u Unit) (*Instance, error) {
	if err := h.prepare(u); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, u.Argv[0], u.Argv[1:]...)
	cmd.Cancel = func() error { return interrupt(cmd.Process) }
	cmd.WaitDelay = h.stopTimeout()
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, rejected(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, rejected(err)
	}

	if err := h.start(cmd, u); err != nil {
		return nil, err
	}
	pid := cmd.Process.Pid

	var wg sync.WaitGroup
	wg.Add(2)
	go h.monitorOutput(u.ProfileID, stdout, &wg)
	go h.monitorOutput(u.ProfileID, stderr, &wg)

	var (
		once    sync.Once
		waitErr error
	)
	wait := func() error {
		once.Do(func() {
			wg.Wait()
			waitErr = cmd.Wait()
			removePID(h.StateDir, u.ProfileID, pid)
			if waitErr != nil {
				h.Logger.Warn("Helper for %s exited: %v", u.ProfileID, waitErr)
			} else {
				h.Logger.Info("Helper for %s exited normally", u.ProfileID)
			}
		})
		return waitErr
	}

	return &Instance{UnitID: u.ID, ProfileID: u.ProfileID, Name: u.Argv[0], PID: pid, wait: wait}, nil
}

// StartBackground starts the helper in its own session with output appended
// to <StateDir>/<profile>.log, and returns without supervising it.
func (h *ProcessHost) StartBackground(ctx context.Context, u Unit) (*Instance, error) {
	if err := h.prepare(u); err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(logPath(h.StateDir, u.ProfileID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, rejected(err)
	}
	defer logFile.Close()

	cmd := exec.Command(u.Argv[0], u.Argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = detachedAttr()

	if err := h.start(cmd, u); err != nil {
		return nil, err
	}
	pid := cmd.Process.Pid
	// Reap in the background while this process lives; the pid file is
	// cleaned up by Running once the helper is gone.
	go cmd.Wait()

	return &Instance{UnitID: u.ID, ProfileID: u.ProfileID, Name: u.Argv[0], PID: pid}, nil
}

// prepare validates the unit and deals with an instance already running
// for the same profile.
func (h *ProcessHost) prepare(u Unit) error {
	if err := u.Validate(); err != nil {
		return rejected(err)
	}
	if err := common.EnsureDir(h.StateDir); err != nil {
		return rejected(err)
	}

	pid := LivePID(h.StateDir, u.ProfileID)
	if pid == 0 {
		return nil
	}
	if !u.Replace {
		return fmt.Errorf("%w: %w (pid %d)", common.ErrStartRejected, common.ErrAlreadyRunning, pid)
	}

	h.Logger.Info("Replacing running helper for %s (pid %d)", u.ProfileID, pid)
	if err := terminate(pid, h.stopTimeout()); err != nil {
		return rejected(fmt.Errorf("stop pid %d: %w", pid, err))
	}
	removePID(h.StateDir, u.ProfileID, pid)
	return nil
}

// start launches cmd, feeds the configuration on stdin and records the pid.
func (h *ProcessHost) start(cmd *exec.Cmd, u Unit) error {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return rejected(err)
	}

	h.Logger.Debug("Command: %v", u.Argv)
	if err := cmd.Start(); err != nil {
		return rejected(err)
	}
	h.Logger.Info("Helper for %s started with PID %d (%s)", u.ProfileID, cmd.Process.Pid, u.Reason)

	_, werr := stdin.Write(u.Config)
	if cerr := stdin.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return rejected(fmt.Errorf("write config to helper: %w", werr))
	}

	if err := writePID(h.StateDir, u.ProfileID, cmd.Process.Pid); err != nil {
		h.Logger.Warn("Could not record pid for %s: %v", u.ProfileID, err)
	}
	return nil
}

// monitorOutput logs helper output line by line.
func (h *ProcessHost) monitorOutput(profileID string, pipe io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		h.Logger.Info("helper[%s]: %s", profileID, line)
		if h.OnOutput != nil {
			h.OnOutput(profileID, line)
		}
	}
}

// Stop terminates the helper recorded for profileID. Nothing running is not
// an error.
func (h *ProcessHost) Stop(profileID string) error {
	pid := LivePID(h.StateDir, profileID)
	if pid == 0 {
		return nil
	}
	if err := terminate(pid, h.stopTimeout()); err != nil {
		return err
	}
	removePID(h.StateDir, profileID, pid)
	return nil
}
