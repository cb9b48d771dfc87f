//go:build !linux && !windows

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.
// Returns error to indicate unavailability.

package affinity

const supported = false

// setAffinityPlatform is a stub for platforms where CPU affinity is not supported.
func setAffinityPlatform(cpuID int) error {
	return ErrNotSupported
}

func resetAffinityPlatform() error {
	return ErrNotSupported
}

func currentThreadIDPlatform() int {
	return -1
}

func cpuCountPlatform() int {
	return 0
}
