// Package config provides configuration management for the VPN launcher.
// It handles loading, saving, and validating launcher settings.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"

	"github.com/yllada/vpn-launcher/common"
)

// Tri-state capability values.
const (
	CapabilityAuto  = "auto"
	CapabilityTrue  = "true"
	CapabilityFalse = "false"
)

// Host kinds.
const (
	HostProcess = "process"
	HostSystemd = "systemd"
)

// Capabilities overrides platform capability detection.
type Capabilities struct {
	// RestrictsTempExecution forces the pre-installed helper check.
	RestrictsTempExecution string `yaml:"restricts_temp_execution" toml:"restricts_temp_execution"`
	// RequiresForegroundStart forces foreground host starts.
	RequiresForegroundStart string `yaml:"requires_foreground_start" toml:"requires_foreground_start"`
}

// Config represents the launcher configuration.
// Settings are persisted to a YAML file in the user's config directory;
// a TOML file may be supplied explicitly instead.
type Config struct {
	// HelperName is the asset prefix of the bundled helper binary.
	HelperName string `yaml:"helper_name" toml:"helper_name"`
	// PreinstalledName is the helper file name inside NativeLibDir.
	PreinstalledName string `yaml:"preinstalled_name" toml:"preinstalled_name"`
	// NativeLibDir holds platform-installed native binaries.
	NativeLibDir string `yaml:"native_lib_dir" toml:"native_lib_dir"`
	// CacheDir is the private writable directory for extracted helpers.
	CacheDir string `yaml:"cache_dir" toml:"cache_dir"`
	// StateDir holds pid files and detached unit logs.
	StateDir string `yaml:"state_dir" toml:"state_dir"`
	// AssetSource is "dir:<path>" or "sqlite:<path>".
	AssetSource string `yaml:"asset_source" toml:"asset_source"`
	// ApplicationABI overrides the architecture this program was built for.
	ApplicationABI string `yaml:"application_abi,omitempty" toml:"application_abi"`
	// SupportedABIs overrides the device-reported architecture list.
	SupportedABIs []string `yaml:"supported_abis,omitempty" toml:"supported_abis"`
	// Capabilities overrides capability detection.
	Capabilities Capabilities `yaml:"capabilities" toml:"capabilities"`
	// Host selects the lifecycle host: "process" or "systemd".
	Host string `yaml:"host" toml:"host"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" toml:"log_level"`
	// LogMaxSize rotates the log file past this size, e.g. "5MB".
	LogMaxSize string `yaml:"log_max_size" toml:"log_max_size"`
	// LogMaxBackups is the number of rotated log files kept.
	LogMaxBackups int `yaml:"log_max_backups" toml:"log_max_backups"`

	path string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	cacheDir, _ := common.GetCacheDir()
	stateDir, _ := common.GetStateDir()
	exeDir := ""
	if exe, err := os.Executable(); err == nil {
		exeDir = filepath.Dir(exe)
	}
	return &Config{
		HelperName:       common.DefaultHelperName,
		PreinstalledName: common.DefaultPreinstalledName,
		NativeLibDir:     filepath.Join(exeDir, "lib"),
		CacheDir:         cacheDir,
		StateDir:         stateDir,
		AssetSource:      "dir:" + filepath.Join(exeDir, "assets"),
		Capabilities: Capabilities{
			RestrictsTempExecution:  CapabilityAuto,
			RequiresForegroundStart: CapabilityAuto,
		},
		Host:          HostProcess,
		LogLevel:      "info",
		LogMaxSize:    "5MB",
		LogMaxBackups: 5,
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := DefaultPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.path = configPath
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from an explicit path. Files ending in
// ".toml" are decoded as TOML, everything else as YAML. Unset fields keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}

	cfg := DefaultConfig()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, fmt.Errorf("error parsing configuration: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("error parsing configuration: unknown key %q", undecoded[0].String())
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true) // Strict validation: reject unknown fields
		if err := decoder.Decode(cfg); err != nil {
			return nil, fmt.Errorf("error parsing configuration: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.path = path

	return cfg, nil
}

// validate normalizes enum values and rejects unusable settings.
func (c *Config) validate() error {
	if c.HelperName == "" {
		c.HelperName = common.DefaultHelperName
	}
	if c.PreinstalledName == "" {
		c.PreinstalledName = common.DefaultPreinstalledName
	}
	if strings.ContainsAny(c.HelperName, `/\`) {
		return fmt.Errorf("helper_name must be a bare name, got %q", c.HelperName)
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if _, _, err := c.ParseAssetSource(); err != nil {
		return err
	}
	if _, err := c.LogMaxBytes(); err != nil {
		return err
	}
	if c.LogMaxBackups < 0 {
		return fmt.Errorf("log_max_backups must not be negative")
	}

	c.Capabilities.RestrictsTempExecution = normalizeCapability(c.Capabilities.RestrictsTempExecution)
	c.Capabilities.RequiresForegroundStart = normalizeCapability(c.Capabilities.RequiresForegroundStart)

	if c.Host != HostProcess && c.Host != HostSystemd {
		c.Host = HostProcess
	}
	return nil
}

func normalizeCapability(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case CapabilityTrue, "yes", "on":
		return CapabilityTrue
	case CapabilityFalse, "no", "off":
		return CapabilityFalse
	default:
		return CapabilityAuto
	}
}

// ParseAssetSource splits AssetSource into its kind ("dir" or "sqlite")
// and location.
func (c *Config) ParseAssetSource() (kind, location string, err error) {
	kind, location, ok := strings.Cut(c.AssetSource, ":")
	if !ok || location == "" {
		return "", "", fmt.Errorf("asset_source must be dir:<path> or sqlite:<path>, got %q", c.AssetSource)
	}
	switch kind {
	case "dir", "sqlite":
		return kind, location, nil
	default:
		return "", "", fmt.Errorf("unknown asset_source kind %q", kind)
	}
}

// LogMaxBytes parses LogMaxSize. Units are binary, so "5MB" is 5 MiB.
// An empty value yields 0, meaning the logger default.
func (c *Config) LogMaxBytes() (int64, error) {
	if c.LogMaxSize == "" {
		return 0, nil
	}
	n, err := units.RAMInBytes(c.LogMaxSize)
	if err != nil {
		return 0, fmt.Errorf("log_max_size: %w", err)
	}
	return n, nil
}

// Override reports the explicit value of a tri-state capability.
// ok is false for "auto".
func Override(v string) (value, ok bool) {
	switch v {
	case CapabilityTrue:
		return true, true
	case CapabilityFalse:
		return false, true
	default:
		return false, false
	}
}

// Path returns the file this configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Save saves the configuration as YAML to the file it was loaded from,
// or to the default path.
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" || strings.EqualFold(filepath.Ext(configPath), ".toml") {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// DefaultPath returns the default YAML configuration path.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting config directory: %w", err)
	}

	return filepath.Join(base, common.ConfigDirName, common.ConfigFileName), nil
}
