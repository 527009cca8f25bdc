package host

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/platform"
)

// RunningUnit is a live helper recorded in the state directory.
type RunningUnit struct {
	ProfileID string
	PID       int
	Since     time.Time
	LogPath   string
}

func pidPath(stateDir, profileID string) string {
	return filepath.Join(stateDir, profileID+common.PIDFileExt)
}

func logPath(stateDir, profileID string) string {
	return filepath.Join(stateDir, profileID+common.UnitLogExt)
}

func writePID(stateDir, profileID string, pid int) error {
	if err := common.EnsureDir(stateDir); err != nil {
		return err
	}
	return os.WriteFile(pidPath(stateDir, profileID), []byte(strconv.Itoa(pid)+"\n"), 0600)
}

// readPID returns the recorded pid for a profile, or 0 when none is recorded.
func readPID(stateDir, profileID string) (int, error) {
	data, err := os.ReadFile(pidPath(stateDir, profileID))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt pid file for %s: %w", profileID, err)
	}
	return pid, nil
}

// removePID deletes the pid file if it still names pid.
func removePID(stateDir, profileID string, pid int) {
	if current, err := readPID(stateDir, profileID); err == nil && current == pid {
		os.Remove(pidPath(stateDir, profileID))
	}
}

// LivePID returns the pid of a live helper for profileID, or 0.
func LivePID(stateDir, profileID string) int {
	pid, err := readPID(stateDir, profileID)
	if err != nil || !platform.ProcessAlive(pid) {
		return 0
	}
	return pid
}

// Running lists live helpers from the state directory. Stale pid files are
// removed.
func Running(stateDir string) ([]RunningUnit, error) {
	matches, err := filepath.Glob(filepath.Join(stateDir, "*"+common.PIDFileExt))
	if err != nil {
		return nil, err
	}

	var units []RunningUnit
	for _, m := range matches {
		profileID := strings.TrimSuffix(filepath.Base(m), common.PIDFileExt)
		pid, err := readPID(stateDir, profileID)
		if err != nil || !platform.ProcessAlive(pid) {
			common.LogDebug("Removing stale pid file %s", m)
			os.Remove(m)
			continue
		}
		unit := RunningUnit{ProfileID: profileID, PID: pid}
		if info, err := os.Stat(m); err == nil {
			unit.Since = info.ModTime()
		}
		if lp := logPath(stateDir, profileID); common.FileExists(lp) {
			unit.LogPath = lp
		}
		units = append(units, unit)
	}

	sort.Slice(units, func(i, j int) bool { return units[i].ProfileID < units[j].ProfileID })
	return units, nil
}
