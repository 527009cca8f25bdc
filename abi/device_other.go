//go:build !unix

package abi

import "runtime"

func machineName() string {
	return runtime.GOARCH
}
