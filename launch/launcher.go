// Package launch wires provisioning to the host lifecycle unit.
//
// A launch runs the chain ABI resolution, provisioning, argument building
// and host start. Every call starts from scratch; nothing is carried over
// between launches except the helper cache on disk.
package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/yllada/vpn-launcher/abi"
	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/host"
	"github.com/yllada/vpn-launcher/platform"
	"github.com/yllada/vpn-launcher/provision"
)

// Outcome is the terminal state of a launch.
type Outcome int

const (
	// Started means the host accepted the unit.
	Started Outcome = iota
	// Skipped means the collaborator declined to produce a start descriptor.
	Skipped
	// StartFailed means provisioning failed or the host rejected the start.
	StartFailed
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Started:
		return "Started"
	case Skipped:
		return "Skipped"
	case StartFailed:
		return "StartFailed"
	default:
		return "Unknown"
	}
}

// Request describes why and what to launch.
type Request struct {
	ProfileID string
	Reason    string
	// Replace stops a running instance of the same profile first.
	Replace bool
}

// StartDescriptor is the collaborator's translation of a Request.
type StartDescriptor struct {
	ProfileID string
	Reason    string
	Replace   bool
	// Config is streamed to the helper's standard input.
	Config []byte
}

// DescriptorFactory translates requests into start descriptors. A nil
// descriptor with a nil error means the launch must not proceed.
type DescriptorFactory interface {
	StartDescriptor(req Request) (*StartDescriptor, error)
}

// Observer is implemented by descriptor factories that track what became
// of the descriptors they produced. Exactly one method is called for every
// non-nil descriptor.
type Observer interface {
	Started(desc *StartDescriptor, inst *host.Instance)
	Failed(desc *StartDescriptor, err error)
}

// Provisioner makes the helper executable available.
type Provisioner interface {
	Provision(candidates []string) (provision.Location, error)
}

// Launcher runs launches.
type Launcher struct {
	// AppABI is the architecture this program was built for.
	AppABI string
	// DeviceABIs is the device's architecture list, most preferred first.
	DeviceABIs  []string
	Provisioner Provisioner
	Descriptors DescriptorFactory
	Host        host.Host
	Caps        platform.Capabilities
	Sink        common.StatusSink
}

// Result carries what a launch produced besides its outcome.
type Result struct {
	Outcome    Outcome
	Candidates []string
	Location   provision.Location
	Argv       []string
	Instance   *host.Instance
}

// Launch runs one launch. The returned error is nil only for Started and
// Skipped. Provisioning failures match common.ErrProvisioningExhausted and
// host failures match common.ErrStartRejected.
func (l *Launcher) Launch(ctx context.Context, req Request) (*Result, error) {
	res := &Result{Outcome: StartFailed}
	common.Emit(l.Sink, common.SeverityDebug, "Launch requested for %s (%s)", req.ProfileID, req.Reason)

	desc, err := l.Descriptors.StartDescriptor(req)
	if err != nil {
		common.Emit(l.Sink, common.SeverityError, "Cannot prepare %s: %v", req.ProfileID, err)
		return res, fmt.Errorf("%w: %w", common.ErrStartRejected, err)
	}
	if desc == nil {
		common.Emit(l.Sink, common.SeverityInfo, "Launch of %s skipped (%s)", req.ProfileID, req.Reason)
		res.Outcome = Skipped
		return res, nil
	}

	observer, _ := l.Descriptors.(Observer)
	fail := func(err error) (*Result, error) {
		if observer != nil {
			observer.Failed(desc, err)
		}
		return res, err
	}

	res.Candidates = abi.ResolveCandidates(l.AppABI, l.DeviceABIs, l.Sink)

	loc, err := l.Provisioner.Provision(res.Candidates)
	if err != nil {
		common.Emit(l.Sink, common.SeverityError, "%v", err)
		if !errors.Is(err, common.ErrProvisioningExhausted) {
			err = fmt.Errorf("%w: %w", common.ErrProvisioningExhausted, err)
		}
		return fail(err)
	}
	res.Location = loc
	res.Argv = BuildArguments(loc.Path)

	unit := host.Unit{
		ID:        common.GenerateID(),
		ProfileID: desc.ProfileID,
		Reason:    desc.Reason,
		Replace:   desc.Replace,
		Argv:      res.Argv,
		Config:    desc.Config,
	}

	start, mode := l.Host.StartBackground, "background"
	if l.Caps.RequiresForegroundStart {
		start, mode = l.Host.StartForeground, "foreground"
	}
	common.Emit(l.Sink, common.SeverityDebug, "Starting %s in %s mode: %v", desc.ProfileID, mode, res.Argv)

	inst, err := start(ctx, unit)
	if err != nil {
		common.Emit(l.Sink, common.SeverityError, "Start of %s rejected: %v", desc.ProfileID, err)
		if !errors.Is(err, common.ErrStartRejected) {
			err = fmt.Errorf("%w: %w", common.ErrStartRejected, err)
		}
		return fail(err)
	}

	res.Outcome = Started
	res.Instance = inst
	if observer != nil {
		observer.Started(desc, inst)
	}
	common.Emit(l.Sink, common.SeverityInfo, "Started %s (%s)", desc.ProfileID, desc.Reason)
	return res, nil
}
