package cli

import (
	"fmt"
	"io"

	"github.com/yllada/vpn-launcher/abi"
	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/config"
	"github.com/yllada/vpn-launcher/host"
	"github.com/yllada/vpn-launcher/keyring"
	"github.com/yllada/vpn-launcher/platform"
	"github.com/yllada/vpn-launcher/provision"
	"github.com/yllada/vpn-launcher/vpn"
)

// env is the state shared by all commands, set by setup.
var env *environment

type environment struct {
	cfg  *config.Config
	caps platform.Capabilities
	sink common.StatusSink
	// events records every status event of this invocation.
	events *common.MemorySink
}

func loadEnv(path string) (*environment, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	events := &common.MemorySink{}
	return &environment{
		cfg:    cfg,
		caps:   capabilities(cfg),
		sink:   common.MultiSink{common.NewLoggerSink(), events},
		events: events,
	}, nil
}

// capabilities detects platform capabilities and applies config overrides.
func capabilities(cfg *config.Config) platform.Capabilities {
	caps := platform.Detect(cfg.CacheDir)
	if v, ok := config.Override(cfg.Capabilities.RestrictsTempExecution); ok {
		caps.RestrictsTempExecution = v
	}
	if v, ok := config.Override(cfg.Capabilities.RequiresForegroundStart); ok {
		caps.RequiresForegroundStart = v
	}
	return caps
}

// abis returns the application and device architectures.
func (e *environment) abis() (string, []string) {
	app := e.cfg.ApplicationABI
	if app == "" {
		app = abi.ApplicationABI()
	}
	device := e.cfg.SupportedABIs
	if len(device) == 0 {
		device = abi.DeviceABIs()
	}
	return app, device
}

func (e *environment) candidates() []string {
	app, device := e.abis()
	return abi.ResolveCandidates(app, device, e.sink)
}

// materializer opens the configured asset source. The closer releases it.
func (e *environment) materializer() (*provision.Materializer, io.Closer, error) {
	kind, location, err := e.cfg.ParseAssetSource()
	if err != nil {
		return nil, nil, err
	}
	src, closer, err := provision.OpenSource(kind, location)
	if err != nil {
		return nil, nil, fmt.Errorf("open asset source: %w", err)
	}

	return &provision.Materializer{
		HelperName:       e.cfg.HelperName,
		PreinstalledName: e.cfg.PreinstalledName,
		NativeLibDir:     e.cfg.NativeLibDir,
		CacheDir:         e.cfg.CacheDir,
		Assets:           src,
		Caps:             e.caps,
		Sink:             e.sink,
	}, closer, nil
}

func (e *environment) profiles() (*vpn.ProfileManager, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return nil, err
	}
	return vpn.NewProfileManager(dir)
}

func (e *environment) credentials() (*keyring.Store, error) {
	return keyring.Default()
}

// host returns the configured lifecycle host and a function releasing it.
func (e *environment) host() (host.Host, func(), error) {
	if e.cfg.Host == config.HostSystemd {
		h, err := host.NewSystemdHost()
		if err != nil {
			return nil, nil, err
		}
		return h, func() { h.Close() }, nil
	}
	return host.NewProcessHost(e.cfg.StateDir), func() {}, nil
}

// isRunning reports a live helper tracked by the process host.
func (e *environment) isRunning(profileID string) bool {
	return host.LivePID(e.cfg.StateDir, profileID) != 0
}
