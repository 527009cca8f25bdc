package vpn

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/vpn-launcher/common"
)

// Common errors returned by profile operations.
var (
	ErrProfileNotFound = common.ErrProfileNotFound
	ErrInvalidConfig   = common.ErrInvalidConfig
	ErrDuplicateName   = common.ErrDuplicateName
)

// Profile names the OpenVPN configuration streamed to the helper and the
// credentials injected into it.
type Profile struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	ConfigPath string `yaml:"config_path"`
	Username   string `yaml:"username,omitempty"`
	// SavePassword is set while the password is held by the credential store.
	SavePassword bool `yaml:"save_password"`
	// Disabled profiles are never launched.
	Disabled bool      `yaml:"disabled,omitempty"`
	Created  time.Time `yaml:"created"`
	LastUsed time.Time `yaml:"last_used,omitempty"`
}

// Validate checks if the profile has all required fields.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.ConfigPath == "" {
		return errors.New("config path is required")
	}
	return nil
}

// ProfileManager stores profiles in profiles.yaml under its directory and
// keeps a private copy of every profile's configuration in configs/.
//
// Lookups return copies; changes are written back with Update.
type ProfileManager struct {
	mu         sync.RWMutex
	profiles   []*Profile
	configDir  string
	configFile string
}

// NewProfileManager creates a ProfileManager rooted at configDir and loads
// existing profiles.
func NewProfileManager(configDir string) (*ProfileManager, error) {
	if err := common.EnsureDir(configDir); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	pm := &ProfileManager{
		configDir:  configDir,
		configFile: filepath.Join(configDir, common.ProfilesFileName),
	}
	if err := pm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	return pm, nil
}

// Load reads profiles from disk. A missing file means no profiles.
func (pm *ProfileManager) Load() error {
	data, err := os.ReadFile(pm.configFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}

	var profiles []*Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("failed to parse profiles file: %w", err)
	}

	pm.mu.Lock()
	pm.profiles = profiles
	pm.mu.Unlock()
	return nil
}

// save persists profiles. Callers hold pm.mu.
func (pm *ProfileManager) save() error {
	data, err := yaml.Marshal(pm.profiles)
	if err != nil {
		return fmt.Errorf("failed to serialize profiles: %w", err)
	}
	if err := os.WriteFile(pm.configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}
	return nil
}

// index returns the position of the first profile matching match, or -1.
// Callers hold pm.mu.
func (pm *ProfileManager) index(match func(*Profile) bool) int {
	return slices.IndexFunc(pm.profiles, match)
}

func byID(id string) func(*Profile) bool {
	return func(p *Profile) bool { return p.ID == id }
}

func byName(name string) func(*Profile) bool {
	return func(p *Profile) bool { return p.Name == name }
}

func (pm *ProfileManager) lookup(match func(*Profile) bool) (*Profile, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	i := pm.index(match)
	if i < 0 {
		return nil, ErrProfileNotFound
	}
	p := *pm.profiles[i]
	return &p, nil
}

// modify applies fn to the stored profile id and persists the result.
func (pm *ProfileManager) modify(id string, fn func(*Profile)) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	i := pm.index(byID(id))
	if i < 0 {
		return ErrProfileNotFound
	}
	fn(pm.profiles[i])
	return pm.save()
}

// Add validates profile, assigns it an ID and copies its configuration into
// the manager's directory. On success profile.ConfigPath points at the copy.
func (pm *ProfileManager) Add(profile *Profile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if err := validateConfigFile(profile.ConfigPath); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.index(byName(profile.Name)) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateName, profile.Name)
	}
	if profile.ID == "" {
		profile.ID = common.GenerateID()
	}
	profile.Created = time.Now()

	configsDir := filepath.Join(pm.configDir, "configs")
	if err := common.EnsureDir(configsDir); err != nil {
		return fmt.Errorf("failed to create configs directory: %w", err)
	}
	dest := filepath.Join(configsDir, profile.ID+".ovpn")
	if err := copyFile(profile.ConfigPath, dest); err != nil {
		return fmt.Errorf("failed to copy config file: %w", err)
	}
	profile.ConfigPath = dest

	stored := *profile
	pm.profiles = append(pm.profiles, &stored)
	return pm.save()
}

// Remove removes a profile by ID and deletes its copied configuration file.
func (pm *ProfileManager) Remove(id string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	i := pm.index(byID(id))
	if i < 0 {
		return ErrProfileNotFound
	}
	path := pm.profiles[i].ConfigPath
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		common.LogWarn("Could not remove config file %s: %v", path, err)
	}
	pm.profiles = slices.Delete(pm.profiles, i, i+1)
	return pm.save()
}

// Get retrieves a profile by ID.
func (pm *ProfileManager) Get(id string) (*Profile, error) {
	return pm.lookup(byID(id))
}

// GetByName retrieves a profile by name.
func (pm *ProfileManager) GetByName(name string) (*Profile, error) {
	return pm.lookup(byName(name))
}

// Find retrieves a profile by ID or, failing that, by name.
func (pm *ProfileManager) Find(nameOrID string) (*Profile, error) {
	if p, err := pm.Get(nameOrID); err == nil {
		return p, nil
	}
	p, err := pm.GetByName(nameOrID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, nameOrID)
	}
	return p, nil
}

// List returns copies of all profiles in insertion order.
func (pm *ProfileManager) List() []*Profile {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]*Profile, len(pm.profiles))
	for i, p := range pm.profiles {
		cp := *p
		out[i] = &cp
	}
	return out
}

// Update replaces the stored profile with the same ID.
func (pm *ProfileManager) Update(profile *Profile) error {
	return pm.modify(profile.ID, func(p *Profile) { *p = *profile })
}

// SetDisabled enables or disables a profile.
func (pm *ProfileManager) SetDisabled(id string, disabled bool) error {
	return pm.modify(id, func(p *Profile) { p.Disabled = disabled })
}

// MarkUsed records a launch of the profile.
func (pm *ProfileManager) MarkUsed(id string) error {
	return pm.modify(id, func(p *Profile) { p.LastUsed = time.Now() })
}

// validateConfigFile accepts .ovpn and .conf files that carry a "client" or
// "remote" directive.
func validateConfigFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return ErrInvalidConfig
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".ovpn" && ext != ".conf" {
		return fmt.Errorf("%w: expected .ovpn or .conf extension", ErrInvalidConfig)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	d := directives(data)
	if !d["client"] && !d["remote"] {
		return fmt.Errorf("%w: missing required OpenVPN directives", ErrInvalidConfig)
	}
	return nil
}

// directives returns the directive names used in an OpenVPN configuration.
// Comments and the contents of inline <tag> blocks are skipped.
func directives(config []byte) map[string]bool {
	found := make(map[string]bool)
	inline := ""

	sc := bufio.NewScanner(bytes.NewReader(config))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if inline != "" {
			if line == "</"+inline+">" {
				inline = ""
			}
			continue
		}
		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}
		if strings.HasPrefix(line, "<") && strings.HasSuffix(line, ">") && !strings.HasPrefix(line, "</") {
			inline = strings.Trim(line, "<>")
			found[inline] = true
			continue
		}
		found[strings.Fields(line)[0]] = true
	}
	return found
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}
	if err := os.WriteFile(dst, data, 0600); err != nil {
		return fmt.Errorf("failed to write destination file: %w", err)
	}
	return nil
}
