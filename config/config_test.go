package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yllada/vpn-launcher/common"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HelperName != common.DefaultHelperName {
		t.Errorf("HelperName = %v, want %v", cfg.HelperName, common.DefaultHelperName)
	}
	if cfg.PreinstalledName != "libovpnexec.so" {
		t.Errorf("PreinstalledName = %v", cfg.PreinstalledName)
	}
	if cfg.Host != HostProcess {
		t.Errorf("Host = %v, want %v", cfg.Host, HostProcess)
	}
	if cfg.Capabilities.RestrictsTempExecution != CapabilityAuto {
		t.Error("RestrictsTempExecution should default to auto")
	}
	if kind, _, err := cfg.ParseAssetSource(); err != nil || kind != "dir" {
		t.Errorf("ParseAssetSource() = %v, %v", kind, err)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
helper_name: helper
cache_dir: /tmp/cache
asset_source: sqlite:/opt/bundle.db
supported_abis: [arm64-v8a, armeabi-v7a]
capabilities:
  restricts_temp_execution: "yes"
  requires_foreground_start: bogus
host: launchd
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.HelperName != "helper" {
		t.Errorf("HelperName = %v", cfg.HelperName)
	}
	if cfg.PreinstalledName != common.DefaultPreinstalledName {
		t.Errorf("unset fields should keep defaults, PreinstalledName = %v", cfg.PreinstalledName)
	}
	if len(cfg.SupportedABIs) != 2 || cfg.SupportedABIs[1] != "armeabi-v7a" {
		t.Errorf("SupportedABIs = %v", cfg.SupportedABIs)
	}
	if cfg.Capabilities.RestrictsTempExecution != CapabilityTrue {
		t.Errorf("RestrictsTempExecution = %v, want true", cfg.Capabilities.RestrictsTempExecution)
	}
	if cfg.Capabilities.RequiresForegroundStart != CapabilityAuto {
		t.Errorf("RequiresForegroundStart = %v, want auto", cfg.Capabilities.RequiresForegroundStart)
	}
	if cfg.Host != HostProcess {
		t.Errorf("unknown host should fall back to process, got %v", cfg.Host)
	}
	kind, loc, _ := cfg.ParseAssetSource()
	if kind != "sqlite" || loc != "/opt/bundle.db" {
		t.Errorf("ParseAssetSource() = %v, %v", kind, loc)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %v, want %v", cfg.Path(), path)
	}
}

func TestLoadFile_YAMLUnknownField(t *testing.T) {
	path := writeFile(t, "config.yaml", "helper_nmae: typo\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject unknown fields")
	}
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
helper_name = "helper"
cache_dir = "/var/cache/launcher"
host = "systemd"

[capabilities]
requires_foreground_start = "false"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.CacheDir != "/var/cache/launcher" {
		t.Errorf("CacheDir = %v", cfg.CacheDir)
	}
	if cfg.Host != HostSystemd {
		t.Errorf("Host = %v", cfg.Host)
	}
	if v, ok := Override(cfg.Capabilities.RequiresForegroundStart); !ok || v {
		t.Errorf("Override() = %v, %v; want false, true", v, ok)
	}
}

func TestLoadFile_TOMLUnknownKey(t *testing.T) {
	path := writeFile(t, "config.toml", "nope = 1\n")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject unknown TOML keys")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad asset source", "asset_source: ftp:/x\n"},
		{"missing asset location", "asset_source: 'dir:'\n"},
		{"helper with slash", "helper_name: ../evil\n"},
		{"empty cache dir", "cache_dir: ''\n"},
		{"bad log size", "log_max_size: lots\n"},
		{"negative backups", "log_max_backups: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.content)
			if _, err := LoadFile(path); err == nil {
				t.Error("LoadFile() should fail")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, common.ErrConfigLoad) {
		t.Errorf("LoadFile() error = %v, want ErrConfigLoad", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := writeFile(t, "config.yaml", "helper_name: helper\n")
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	cfg.NativeLibDir = "/opt/lib"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.NativeLibDir != "/opt/lib" || reloaded.HelperName != "helper" {
		t.Errorf("reloaded = %+v", reloaded)
	}
}

func TestLogMaxBytes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"5MB", 5 * 1024 * 1024},
		{"512k", 512 * 1024},
		{"1g", 1024 * 1024 * 1024},
	}
	for _, tt := range tests {
		cfg := &Config{LogMaxSize: tt.in}
		got, err := cfg.LogMaxBytes()
		if err != nil {
			t.Errorf("LogMaxBytes(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("LogMaxBytes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestOverride(t *testing.T) {
	tests := []struct {
		in        string
		value, ok bool
	}{
		{CapabilityTrue, true, true},
		{CapabilityFalse, false, true},
		{CapabilityAuto, false, false},
	}
	for _, tt := range tests {
		v, ok := Override(tt.in)
		if v != tt.value || ok != tt.ok {
			t.Errorf("Override(%q) = %v, %v", tt.in, v, ok)
		}
	}
}
