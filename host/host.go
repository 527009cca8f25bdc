// Package host starts the lifecycle unit that runs the helper executable.
//
// A unit carries the helper argument vector and the configuration stream the
// helper reads from its standard input. Hosts offer two start modes: a
// foreground start keeps the unit attached to and supervised by the caller;
// a background start detaches it. Which mode is used is the caller's
// decision, made from the platform capabilities.
package host

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yllada/vpn-launcher/common"
)

// Unit is the workload handed to a host.
type Unit struct {
	// ID uniquely identifies this start request.
	ID        string
	ProfileID string
	Reason    string
	// Replace stops a running instance of the same profile first.
	Replace bool
	Argv    []string
	// Config is written to the helper's standard input, then closed.
	Config []byte
}

// Validate rejects units that cannot be started.
func (u Unit) Validate() error {
	if len(u.Argv) == 0 {
		return common.ErrEmptyArguments
	}
	for i, arg := range u.Argv {
		if arg == "" {
			return fmt.Errorf("%w: argument %d is empty", common.ErrEmptyArguments, i)
		}
	}
	if u.ProfileID == "" || u.ProfileID != filepath.Base(u.ProfileID) || strings.ContainsAny(u.ProfileID, `/\ `) {
		return fmt.Errorf("invalid profile id %q", u.ProfileID)
	}
	return nil
}

// Instance is a started unit.
type Instance struct {
	UnitID    string
	ProfileID string
	// Name is the process path or the systemd unit name.
	Name string
	// PID is zero when the host does not expose it.
	PID int

	wait func() error
}

// Wait blocks until a foreground unit exits and returns its exit error.
// It returns nil at once for detached units.
func (i *Instance) Wait() error {
	if i.wait == nil {
		return nil
	}
	return i.wait()
}

// Host starts units.
type Host interface {
	StartForeground(ctx context.Context, u Unit) (*Instance, error)
	StartBackground(ctx context.Context, u Unit) (*Instance, error)
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", common.ErrStartRejected, err)
}
