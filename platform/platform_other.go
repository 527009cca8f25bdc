//go:build !linux

package platform

func noexecMount(string) bool {
	return false
}
