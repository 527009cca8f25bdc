// Package vpn provides VPN connection management functionality.
// This file contains the Manager type, which turns launch requests into
// start descriptors and tracks connection state from helper output.
package vpn

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yllada/vpn-launcher/common"
	"github.com/yllada/vpn-launcher/host"
	"github.com/yllada/vpn-launcher/launch"
)

// ConnectionStatus represents the current state of a VPN connection.
type ConnectionStatus int

const (
	// StatusDisconnected indicates no active connection.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting indicates a connection is being established.
	StatusConnecting
	// StatusConnected indicates an active, established connection.
	StatusConnected
	// StatusError indicates the connection failed or encountered an error.
	StatusError
)

// String returns a human-readable representation of the connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Connection is the state of one launched profile.
type Connection struct {
	Profile   *Profile
	Status    ConnectionStatus
	StartTime time.Time
	// LastError contains the last error message if Status is StatusError.
	LastError string
}

// Credentials looks up saved passwords.
type Credentials interface {
	Get(profileID string) (string, error)
}

// Manager is the launch collaborator. It owns profiles and decides whether
// a launch request may proceed.
type Manager struct {
	profiles *ProfileManager
	creds    Credentials
	// IsRunning reports a live helper for a profile. Nil means never.
	IsRunning func(profileID string) bool
	// OnStatusChange is invoked after every status transition.
	OnStatusChange func(profileID string, status ConnectionStatus)

	mu          sync.RWMutex
	connections map[string]*Connection
}

var _ launch.Observer = (*Manager)(nil)

// NewManager creates a manager over the given profile store.
func NewManager(profiles *ProfileManager, creds Credentials) *Manager {
	return &Manager{
		profiles:    profiles,
		creds:       creds,
		connections: make(map[string]*Connection),
	}
}

// ProfileManager returns the associated profile manager.
func (m *Manager) ProfileManager() *ProfileManager {
	return m.profiles
}

// StartDescriptor resolves req.ProfileID (by ID or name) and returns the
// descriptor to start it with. It returns nil when the profile is disabled
// or already running and the request does not ask for replacement.
func (m *Manager) StartDescriptor(req launch.Request) (*launch.StartDescriptor, error) {
	profile, err := m.profiles.Find(req.ProfileID)
	if err != nil {
		return nil, err
	}

	if profile.Disabled {
		common.LogInfo("Profile %s is disabled, not launching", profile.Name)
		return nil, nil
	}
	if !req.Replace && m.IsRunning != nil && m.IsRunning(profile.ID) {
		common.LogInfo("Profile %s is already running", profile.Name)
		return nil, nil
	}

	config, err := m.buildConfig(profile)
	if err != nil {
		return nil, err
	}

	// ObserveOutput only tracks profiles that already have a connection entry.
	m.setStatus(profile, StatusConnecting, "")

	return &launch.StartDescriptor{
		ProfileID: profile.ID,
		Reason:    req.Reason,
		Replace:   req.Replace,
		Config:    config,
	}, nil
}

// Started records a successful launch of desc.
func (m *Manager) Started(desc *launch.StartDescriptor, inst *host.Instance) {
	if err := m.profiles.MarkUsed(desc.ProfileID); err != nil {
		common.LogWarn("Could not update last use of %s: %v", desc.ProfileID, err)
	}
}

// Failed records that desc never started.
func (m *Manager) Failed(desc *launch.StartDescriptor, err error) {
	m.mu.RLock()
	conn, ok := m.connections[desc.ProfileID]
	m.mu.RUnlock()
	if ok {
		m.setStatus(conn.Profile, StatusError, err.Error())
	}
}

// buildConfig reads the profile configuration and inlines saved
// credentials so the helper needs nothing but its standard input.
func (m *Manager) buildConfig(profile *Profile) ([]byte, error) {
	data, err := os.ReadFile(profile.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config for %s: %w", profile.Name, err)
	}

	if !profile.SavePassword || profile.Username == "" || m.creds == nil {
		return data, nil
	}

	password, err := m.creds.Get(profile.ID)
	if err != nil {
		if errors.Is(err, common.ErrCredentialsNotFound) {
			return nil, fmt.Errorf("%w for profile %s", common.ErrCredentialsNotFound, profile.Name)
		}
		return nil, err
	}

	return inlineAuth(data, profile.Username, password), nil
}

// inlineAuth replaces any auth-user-pass directive with an inline block.
func inlineAuth(config []byte, username, password string) []byte {
	var b strings.Builder
	inBlock := false
	for _, line := range strings.Split(string(config), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "<auth-user-pass>":
			inBlock = true
			continue
		case trimmed == "</auth-user-pass>":
			inBlock = false
			continue
		case inBlock:
			continue
		case trimmed == "auth-user-pass" || strings.HasPrefix(trimmed, "auth-user-pass "):
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	out := strings.TrimRight(b.String(), "\n") + "\n"
	out += "<auth-user-pass>\n" + username + "\n" + password + "\n</auth-user-pass>\n"
	return []byte(out)
}

// ObserveOutput updates connection state from one line of helper output.
func (m *Manager) ObserveOutput(profileID, line string) {
	m.mu.RLock()
	conn, ok := m.connections[profileID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	switch {
	case strings.Contains(line, "Initialization Sequence Completed"):
		common.LogInfo("VPN: %s connection established", conn.Profile.Name)
		m.setStatus(conn.Profile, StatusConnected, "")
	case strings.Contains(line, "AUTH_FAILED"):
		common.LogError("VPN: %s authentication failed", conn.Profile.Name)
		m.setStatus(conn.Profile, StatusError, "Authentication failed - verify username/password")
	case strings.Contains(line, "Connection refused"):
		common.LogWarn("VPN: %s connection refused", conn.Profile.Name)
	}
}

// Exited records that the helper for profileID has stopped.
func (m *Manager) Exited(profileID string, err error) {
	m.mu.RLock()
	conn, ok := m.connections[profileID]
	m.mu.RUnlock()
	if !ok {
		return
	}

	if err != nil && conn.Status != StatusError {
		m.setStatus(conn.Profile, StatusError, err.Error())
		return
	}
	if conn.Status != StatusError {
		m.setStatus(conn.Profile, StatusDisconnected, "")
	}
}

func (m *Manager) setStatus(profile *Profile, status ConnectionStatus, lastError string) {
	m.mu.Lock()
	conn, ok := m.connections[profile.ID]
	if !ok || status == StatusConnecting {
		conn = &Connection{Profile: profile, StartTime: time.Now()}
		m.connections[profile.ID] = conn
	}
	conn.Status = status
	conn.LastError = lastError
	callback := m.OnStatusChange
	m.mu.Unlock()

	if callback != nil {
		callback(profile.ID, status)
	}
}

// GetConnection returns a copy of the tracked state of a profile.
func (m *Manager) GetConnection(profileID string) (Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conn, ok := m.connections[profileID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}
