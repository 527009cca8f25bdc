package launch

import "github.com/yllada/vpn-launcher/common"

// BuildArguments returns the helper invocation for an executable path:
// the path followed by the flags telling the helper to read its
// configuration from standard input.
func BuildArguments(path string) []string {
	return []string{path, common.ConfigFlag, common.ConfigStdin}
}
