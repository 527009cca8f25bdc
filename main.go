// Package main provides the entry point for vpn-launcher.
//
// vpn-launcher provisions the OpenVPN helper binary bundled with the
// application for this machine's architecture and launches it with a
// profile's configuration streamed on its standard input.
//
// Usage:
//
//	vpn-launcher connect <profile> [--reason R] [--replace] [--wait]
//	vpn-launcher provision | abi | argv | status
//	vpn-launcher profile add|list|remove|disable|enable
//	vpn-launcher credentials set|delete <profile>
//	vpn-launcher bundle pack <dir> <db>
package main

import "github.com/yllada/vpn-launcher/cli"

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
// Default values are used for local development builds
var (
	appVersion = "dev"
	buildTime  = ""
	commitSHA  = ""
)

func main() {
	cli.Version = appVersion
	cli.Commit = commitSHA
	cli.Date = buildTime
	cli.Execute()
}
