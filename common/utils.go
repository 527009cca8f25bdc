// Package common provides shared constants, types, and utilities
// used across the VPN launcher.
package common

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// GenerateID generates a unique identifier suitable for profile and unit IDs.
func GenerateID() string {
	return uuid.NewString()
}

// GetConfigDir returns the path to the application configuration directory.
// It creates the directory if it doesn't exist.
func GetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", WrapError(err, "failed to get config directory")
	}

	configDir := filepath.Join(base, ConfigDirName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", WrapError(err, "failed to create config directory")
	}

	return configDir, nil
}

// GetCacheDir returns the default private cache directory for extracted helpers.
func GetCacheDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", WrapError(err, "failed to get cache directory")
	}
	return filepath.Join(base, ConfigDirName), nil
}

// GetStateDir returns the directory holding pid files and unit logs.
// XDG_STATE_HOME is honoured when set.
func GetStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, ConfigDirName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError(err, "failed to get home directory")
	}
	return filepath.Join(homeDir, ".local", "state", ConfigDirName), nil
}

// FileExists checks if a file exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir ensures a private directory exists, creating it if necessary.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}
