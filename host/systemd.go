package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/yllada/vpn-launcher/common"
)

const (
	systemdDest      = "org.freedesktop.systemd1"
	systemdPath      = dbus.ObjectPath("/org/freedesktop/systemd1")
	systemdManager   = "org.freedesktop.systemd1.Manager"
	jobRemovedSignal = systemdManager + ".JobRemoved"
	noSuchUnitError  = "org.freedesktop.systemd1.NoSuchUnit"
)

// caller is the subset of dbus.BusObject used to talk to systemd.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

type property struct {
	Name  string
	Value dbus.Variant
}

type auxUnit struct {
	Name  string
	Props []property
}

// execStart matches the a(sasb) ExecStart property.
type execStart struct {
	Path             string
	Args             []string
	UncleanIsFailure bool
}

// SystemdHost runs the helper as a transient systemd service. The service
// manager supervises the unit in both start modes; a foreground start
// additionally waits for the start job to complete.
type SystemdHost struct {
	conn    *dbus.Conn
	manager caller
	signals chan *dbus.Signal
	logger  common.Logger
	// JobTimeout bounds the wait for a start or stop job.
	JobTimeout time.Duration
}

// NewSystemdHost connects to the system bus when running as root and to
// the user's session bus otherwise.
func NewSystemdHost() (*SystemdHost, error) {
	connect := dbus.ConnectSessionBus
	if os.Geteuid() == 0 {
		connect = dbus.ConnectSystemBus
	}
	conn, err := connect()
	if err != nil {
		return nil, fmt.Errorf("connect to service manager: %w", err)
	}

	manager := conn.Object(systemdDest, systemdPath)
	if err := manager.Call(systemdManager+".Subscribe", 0).Err; err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe to service manager: %w", err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(systemdPath),
		dbus.WithMatchInterface(systemdManager),
		dbus.WithMatchMember("JobRemoved"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("watch service manager jobs: %w", err)
	}

	signals := make(chan *dbus.Signal, 32)
	conn.Signal(signals)

	h := newSystemdHost(manager, signals)
	h.conn = conn
	return h, nil
}

func newSystemdHost(manager caller, signals chan *dbus.Signal) *SystemdHost {
	return &SystemdHost{
		manager:    manager,
		signals:    signals,
		logger:     common.GetLogger(),
		JobTimeout: common.JobTimeout,
	}
}

// Close releases the bus connection.
func (h *SystemdHost) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}

// UnitName returns the transient service name for a profile.
func UnitName(profileID string) string {
	return fmt.Sprintf(common.UnitNameFmt, profileID)
}

// StartForeground starts the service and waits until systemd reports the
// start job as done.
func (h *SystemdHost) StartForeground(ctx context.Context, u Unit) (*Instance, error) {
	return h.start(ctx, u, "exec", true)
}

// StartBackground queues the start job and returns without waiting.
func (h *SystemdHost) StartBackground(ctx context.Context, u Unit) (*Instance, error) {
	return h.start(ctx, u, "simple", false)
}

func (h *SystemdHost) start(ctx context.Context, u Unit, serviceType string, wait bool) (*Instance, error) {
	if err := u.Validate(); err != nil {
		return nil, rejected(err)
	}
	name := UnitName(u.ProfileID)

	mode := "fail"
	if u.Replace {
		mode = "replace"
		if err := h.stop(ctx, name); err != nil {
			return nil, rejected(err)
		}
	}

	props := []property{
		{"Description", dbus.MakeVariant(fmt.Sprintf("%s %s (%s)", common.AppName, u.ProfileID, u.Reason))},
		{"ExecStart", dbus.MakeVariant([]execStart{{Path: u.Argv[0], Args: u.Argv, UncleanIsFailure: true}})},
		{"StandardInput", dbus.MakeVariant("data")},
		{"StandardInputData", dbus.MakeVariant(u.Config)},
		{"Type", dbus.MakeVariant(serviceType)},
		{"CollectMode", dbus.MakeVariant("inactive-or-failed")},
	}

	var job dbus.ObjectPath
	call := h.manager.CallWithContext(ctx, systemdManager+".StartTransientUnit", 0, name, mode, props, []auxUnit{})
	if err := call.Store(&job); err != nil {
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) && dbusErr.Name == "org.freedesktop.systemd1.UnitExists" {
			return nil, fmt.Errorf("%w: %w (%s)", common.ErrStartRejected, common.ErrAlreadyRunning, name)
		}
		return nil, rejected(fmt.Errorf("start %s: %w", name, err))
	}
	h.logger.Info("Queued %s start job %s (%s)", name, job, u.Reason)

	if wait {
		result, err := h.waitJob(ctx, job)
		if err != nil {
			return nil, rejected(err)
		}
		if result != "done" {
			return nil, rejected(fmt.Errorf("start job for %s finished with result %q", name, result))
		}
		h.logger.Info("Unit %s started", name)
	}

	return &Instance{UnitID: u.ID, ProfileID: u.ProfileID, Name: name}, nil
}

// stop stops name and waits for the stop job. A unit that is not loaded is
// already stopped.
func (h *SystemdHost) stop(ctx context.Context, name string) error {
	var job dbus.ObjectPath
	call := h.manager.CallWithContext(ctx, systemdManager+".StopUnit", 0, name, "replace")
	if err := call.Store(&job); err != nil {
		var dbusErr dbus.Error
		if errors.As(err, &dbusErr) && dbusErr.Name == noSuchUnitError {
			return nil
		}
		return fmt.Errorf("stop %s: %w", name, err)
	}
	h.logger.Info("Stopping %s (job %s)", name, job)
	_, err := h.waitJob(ctx, job)
	return err
}

// Stop stops the service running profileID.
func (h *SystemdHost) Stop(ctx context.Context, profileID string) error {
	return h.stop(ctx, UnitName(profileID))
}

// waitJob waits for the JobRemoved signal of job and returns its result.
func (h *SystemdHost) waitJob(ctx context.Context, job dbus.ObjectPath) (string, error) {
	timeout := time.NewTimer(h.JobTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout.C:
			return "", fmt.Errorf("timed out waiting for job %s", job)
		case sig, ok := <-h.signals:
			if !ok {
				return "", fmt.Errorf("service manager connection closed")
			}
			if sig.Name != jobRemovedSignal || len(sig.Body) < 4 {
				continue
			}
			path, _ := sig.Body[1].(dbus.ObjectPath)
			if path != job {
				continue
			}
			result, _ := sig.Body[3].(string)
			return result, nil
		}
	}
}
