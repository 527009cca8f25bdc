package abi

import "strings"

// machineABIs maps a kernel machine name (uname -m) to the architectures
// that machine can execute, most preferred first.
func machineABIs(machine string) []string {
	m := strings.ToLower(strings.TrimSpace(machine))
	switch {
	case m == "aarch64" || m == "arm64":
		return []string{ARM64, ARMv7}
	case m == "x86_64" || m == "amd64":
		return []string{X86_64, X86}
	case len(m) == 4 && m[0] == 'i' && strings.HasSuffix(m, "86"):
		return []string{X86}
	case strings.HasPrefix(m, "armv7"), m == "armv8l":
		return []string{ARMv7}
	default:
		return nil
	}
}

// DeviceABIs returns the architectures the running machine supports, most
// preferred first. When the machine cannot be identified the application's
// own architecture is the only entry.
func DeviceABIs() []string {
	if abis := machineABIs(machineName()); len(abis) > 0 {
		return abis
	}
	return []string{ApplicationABI()}
}
