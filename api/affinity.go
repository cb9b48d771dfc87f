// Package api
// Author: momentics@gmail.com
//
// CPU affinity and thread pinning definitions.

package api

// Affinity controls execution on particular logical CPUs.
type Affinity interface {
	// Pin locks the current goroutine to its OS thread and binds it to cpuID.
	Pin(cpuID int) error
	// Unpin releases the goroutine from its OS thread.
	Unpin() error
	// Get returns the CPU last pinned by this adapter and the OS thread id.
	Get() (cpuID int, threadID int, err error)
}

// AffinityDescriptor is an immutable snapshot of a binding.
type AffinityDescriptor struct {
	CPUID    int
	ThreadID int
	Pinned   bool
}
