// Package abi decides which helper binary architectures to try, in order.
package abi

import (
	"runtime"

	"github.com/yllada/vpn-launcher/common"
)

// Architecture identifiers for the bundled helper variants.
const (
	ARMv7  = "armeabi-v7a"
	ARM64  = "arm64-v8a"
	X86    = "x86"
	X86_64 = "x86_64"
)

// goarchABIs maps GOARCH to the identifier of the binary this program was
// built as.
var goarchABIs = map[string]string{
	"arm":   ARMv7,
	"arm64": ARM64,
	"386":   X86,
	"amd64": X86_64,
}

// ApplicationABI returns the architecture this program was compiled for.
// Unknown GOARCH values are returned unchanged.
func ApplicationABI() string {
	if id, ok := goarchABIs[runtime.GOARCH]; ok {
		return id
	}
	return runtime.GOARCH
}

// ResolveCandidates returns the ordered architectures to try.
//
// The device list is trusted when its first entry matches the application's
// own architecture. Otherwise a warning carrying both values is emitted and
// only the application architecture is returned: a helper built for another
// architecture than this process is not assumed to run. The result is never
// empty.
func ResolveCandidates(applicationABI string, deviceABIs []string, sink common.StatusSink) []string {
	if len(deviceABIs) > 0 && deviceABIs[0] == applicationABI {
		out := make([]string, len(deviceABIs))
		copy(out, deviceABIs)
		return out
	}

	common.Emit(sink, common.SeverityWarning,
		"Preferred native ABI precedence of this device %v and ABI reported by native libraries (%s) mismatch",
		deviceABIs, applicationABI)
	return []string{applicationABI}
}
