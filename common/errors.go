// Package common provides shared constants, types, and utilities
// used across the VPN launcher.
package common

import "errors"

// Sentinel errors for provisioning and launch.
// These can be checked with errors.Is() for proper error handling.
var (
	// Provisioning errors.
	ErrAssetNotFound         = errors.New("asset not found")
	ErrCopyFailed            = errors.New("asset copy failed")
	ErrPermissionMarkFailed  = errors.New("failed to mark executable")
	ErrProvisioningExhausted = errors.New("no executable for any candidate architecture")

	// Launch errors.
	ErrStartRejected  = errors.New("host rejected start")
	ErrAlreadyRunning = errors.New("instance already running")
	ErrEmptyArguments = errors.New("empty invocation arguments")

	// Profile errors.
	ErrProfileNotFound = errors.New("profile not found")
	ErrInvalidConfig   = errors.New("invalid configuration file")
	ErrDuplicateName   = errors.New("profile name already exists")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
