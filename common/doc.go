// Package common provides shared constants, types, utilities, and interfaces
// used throughout the VPN launcher.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: helper naming, the helper command-line protocol, timeouts
//   - Errors: Sentinel errors for provisioning and launch failures
//   - Interfaces: the StatusSink event stream and the Logger abstraction
//   - Logger: Leveled logging with file rotation
//   - Utils: directory lookups and small helpers
//
// # Usage
//
//	sink := common.NewLoggerSink()
//	common.Emit(sink, common.SeverityWarning, "ABI mismatch: %v vs %s", abis, app)
//
//	if errors.Is(err, common.ErrProvisioningExhausted) {
//	    // no helper binary could be prepared
//	}
package common
