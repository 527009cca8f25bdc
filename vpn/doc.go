// Package vpn is the launch collaborator for VPN profiles.
//
// This package implements:
//
//   - Profile management: creating, listing, disabling and deleting profiles
//   - Start descriptors: turning a launch request into the configuration
//     stream handed to the helper, with saved credentials inlined
//   - Connection state: tracking what the helper reports on its output
//
// # Architecture
//
//   - ProfileManager: persists profiles as YAML and keeps private copies of
//     their OpenVPN configurations
//   - Manager: implements launch.DescriptorFactory and records Connection
//     state per profile
//
// A request is declined, without error, when its profile is disabled or
// already running and replacement was not asked for.
//
// # Thread Safety
//
// ProfileManager and Manager are safe for concurrent use.
package vpn
