// Package common provides shared constants, types, and utilities
// used across the VPN launcher.
package common

import "time"

// Application metadata.
const (
	// AppName is the display name of the application.
	AppName = "VPN Launcher"
	// CommandName is the name of the executable and the systemd unit prefix.
	CommandName = "vpn-launcher"
	// ConfigDirName is the name of the configuration directory.
	ConfigDirName = "vpn-launcher"
)

// File names used by the application.
const (
	ProfilesFileName    = "profiles.yaml"
	ConfigFileName      = "config.yaml"
	CredentialsFileName = ".credentials"
	LogFileName         = "vpn-launcher.log"
)

// Helper executable naming.
const (
	// DefaultHelperName is the asset prefix of the bundled helper binary.
	// Packaged variants are named "<helper>.<abi>".
	DefaultHelperName = "pie_openvpn"
	// DefaultPreinstalledName is the helper installed by the platform next to
	// the application's native libraries.
	DefaultPreinstalledName = "libovpnexec.so"
	// CachePrefix is prepended to the asset name to form the cache file name.
	CachePrefix = "c_"
)

// Helper command-line protocol.
const (
	ConfigFlag   = "--config"
	ConfigStdin  = "stdin"
	PIDFileExt   = ".pid"
	UnitLogExt   = ".log"
	UnitNameFmt  = CommandName + "-%s.service"
	ExecFileMode = 0o755
)

// Default timeouts.
const (
	// StopTimeout is how long a replaced instance gets to exit after SIGTERM.
	StopTimeout = 5 * time.Second
	// JobTimeout bounds the wait for a systemd start job in foreground mode.
	JobTimeout = 30 * time.Second
)
