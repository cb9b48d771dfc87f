//go:build windows

// File: affinity/affinity_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const supported = true

var (
	modkernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procSetThreadAffinityMask  = modkernel32.NewProc("SetThreadAffinityMask")
	procGetProcessAffinityMask = modkernel32.NewProc("GetProcessAffinityMask")
)

// setAffinityPlatform sets thread affinity to a given CPU for Windows.
// Masks wider than one machine word are not addressable through this call.
func setAffinityPlatform(cpuID int) error {
	if cpuID >= 64 {
		return fmt.Errorf("affinity: cpu %d beyond single processor group", cpuID)
	}
	mask := uintptr(1) << uint(cpuID)
	old, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), mask)
	if old == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask cpu %d: %w", cpuID, err)
	}
	return nil
}

func resetAffinityPlatform() error {
	var processMask, systemMask uintptr
	ok, _, err := procGetProcessAffinityMask.Call(uintptr(windows.CurrentProcess()),
		uintptr(unsafe.Pointer(&processMask)), uintptr(unsafe.Pointer(&systemMask)))
	if ok == 0 {
		return fmt.Errorf("affinity: GetProcessAffinityMask: %w", err)
	}
	if old, _, err := procSetThreadAffinityMask.Call(uintptr(windows.CurrentThread()), processMask); old == 0 {
		return fmt.Errorf("affinity: SetThreadAffinityMask reset: %w", err)
	}
	return nil
}

func currentThreadIDPlatform() int {
	return int(windows.GetCurrentThreadId())
}

func cpuCountPlatform() int {
	return 0
}
