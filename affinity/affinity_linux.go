//go:build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const supported = true

// startMask is the mask of the thread that ran package init.
var startMask = func() (set unix.CPUSet) {
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		set.Zero()
	}
	return set
}()

// setAffinityPlatform sets thread affinity to a given CPU for Linux.
// pid 0 addresses the calling thread, not the whole process.
func setAffinityPlatform(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return nil
}

func resetAffinityPlatform() error {
	set := startMask
	if set.Count() == 0 {
		return ErrNotSupported
	}
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("affinity: sched_setaffinity reset: %w", err)
	}
	return nil
}

func currentThreadIDPlatform() int {
	return unix.Gettid()
}

// cpuCountPlatform scans the start-up mask; 0 means unknown. The calling
// thread's own mask is not used since a pinned thread would see only its CPU.
func cpuCountPlatform() int {
	highest := -1
	for i := 0; i < len(startMask)*64; i++ {
		if startMask.IsSet(i) {
			highest = i
		}
	}
	return highest + 1
}
