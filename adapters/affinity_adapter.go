// File: adapters/affinity_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
// Description:
//   Adapter implementing the api.Affinity interface on top of the affinity
//   package, for callers that pin their own goroutines outside a Context.
//
// Package adapters provides glue code between the core API contracts
// and the internal implementation.

package adapters

import (
	"runtime"

	"github.com/momentics/hioload-dispatch/affinity"
	"github.com/momentics/hioload-dispatch/api"
)

var _ api.Affinity = (*AffinityAdapter)(nil)

// AffinityAdapter pins the calling goroutine's thread. One adapter belongs to
// one goroutine; it is not safe for concurrent use.
type AffinityAdapter struct {
	currentCPU int
	threadID   int
	pinned     bool
}

// NewAffinityAdapter creates an unpinned adapter.
func NewAffinityAdapter() *AffinityAdapter {
	return &AffinityAdapter{currentCPU: -1, threadID: -1}
}

// Pin locks the goroutine to its thread and binds the thread to cpuID.
// On failure the goroutine is released again.
func (a *AffinityAdapter) Pin(cpuID int) error {
	runtime.LockOSThread()
	err := affinity.SetAffinity(cpuID)
	if err != nil || a.pinned {
		// Drop this call's lock level; an earlier Pin still holds one.
		runtime.UnlockOSThread()
	}
	if err != nil {
		return err
	}
	a.currentCPU = cpuID
	a.threadID = affinity.CurrentThreadID()
	a.pinned = true
	return nil
}

// Unpin restores the start mask and releases the thread. If the mask cannot
// be restored the thread stays locked so the narrowed mask cannot leak.
func (a *AffinityAdapter) Unpin() error {
	if !a.pinned {
		return nil
	}
	if err := affinity.ResetAffinity(); err != nil {
		return err
	}
	runtime.UnlockOSThread()
	a.pinned = false
	a.currentCPU = -1
	a.threadID = -1
	return nil
}

// Get returns the pinned CPU and thread id, or -1 and the current thread id.
func (a *AffinityAdapter) Get() (cpuID int, threadID int, err error) {
	if !a.pinned {
		return -1, affinity.CurrentThreadID(), nil
	}
	return a.currentCPU, a.threadID, nil
}

// ImmutableDescriptor returns a snapshot of the current binding state.
func (a *AffinityAdapter) ImmutableDescriptor() api.AffinityDescriptor {
	return api.AffinityDescriptor{
		CPUID:    a.currentCPU,
		ThreadID: a.threadID,
		Pinned:   a.pinned,
	}
}
