// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are located
// in separate files (affinity_linux.go, affinity_windows.go, etc.) guarded by build tags.

package affinity

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrNotSupported is returned by SetAffinity where pinning is unavailable.
var ErrNotSupported = errors.New("affinity: not supported on this platform")

// SetAffinity pins the current OS thread to a given logical CPU on supported platforms.
// The caller must already hold runtime.LockOSThread, otherwise the Go scheduler may move
// the goroutine to another thread right after the call.
// On unsupported platforms returns ErrNotSupported.
func SetAffinity(cpuID int) error {
	if cpuID < 0 || cpuID >= CPUCount() {
		return fmt.Errorf("affinity: cpu %d out of range [0,%d)", cpuID, CPUCount())
	}
	return setAffinityPlatform(cpuID)
}

// ResetAffinity widens the calling thread's mask back to the CPUs the process
// was started with.
func ResetAffinity() error {
	return resetAffinityPlatform()
}

// CurrentThreadID returns the OS identifier of the calling thread, or -1 if the
// platform does not expose one.
func CurrentThreadID() int {
	return currentThreadIDPlatform()
}

// Supported reports whether SetAffinity can pin threads on this platform.
func Supported() bool {
	return supported
}

// NumCPU returns the number of logical CPUs usable by the process.
func NumCPU() int {
	return runtime.NumCPU()
}

// CPUCount returns one past the highest logical CPU index the process may run on.
// It differs from NumCPU when the process is confined to a sparse CPU set.
func CPUCount() int {
	if n := cpuCountPlatform(); n > 0 {
		return n
	}
	return runtime.NumCPU()
}
