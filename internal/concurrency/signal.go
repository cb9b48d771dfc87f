// File: internal/concurrency/signal.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Manual-reset broadcast signal and the park protocol shared by Contexts and
// pinned pools.

package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
)

// signal is a manual-reset event. Waiters capture the channel returned by reset
// and are all released by a single set.
type signal struct {
	mu     sync.Mutex
	ch     chan struct{}
	raised bool
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

// reset lowers the signal and returns the channel the next waiters block on.
// A raised channel is replaced; a lowered one is shared so concurrent parkers
// wake together.
func (s *signal) reset() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raised {
		s.ch = make(chan struct{})
		s.raised = false
	}
	return s.ch
}

// set raises the signal. Raising twice is a no-op.
func (s *signal) set() {
	s.mu.Lock()
	if !s.raised {
		close(s.ch)
		s.raised = true
	}
	s.mu.Unlock()
}

func (s *signal) isSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raised
}

// idler pairs the blocked flag with the wake signal.
//
// The flag is test-and-set: a poster that flips it from armed to clear is the
// only one raising the signal for that idle period. Parkers arm it after
// resetting the signal and re-check the queue afterwards, so a post that lands
// between the last failed dequeue and the wait is never missed.
//
// Arming, the parked count and the bail-out disarm change together under armMu,
// so a bailing parker cannot clear a flag another parker has just armed.
type idler struct {
	armMu   sync.Mutex
	blocked atomic.Bool
	parked  atomic.Int32
	wake    *signal
}

// notify wakes parked workers if the flag was armed. It reports whether it did.
func (i *idler) notify() bool {
	if i.blocked.CompareAndSwap(true, false) {
		i.wake.set()
		return true
	}
	return false
}

// park blocks until notify, cancellation, or immediately if pending() turns
// true after arming. It reports whether the caller actually waited.
func (i *idler) park(ctx context.Context, pending func() bool) bool {
	i.armMu.Lock()
	ch := i.wake.reset()
	i.parked.Add(1)
	i.blocked.Store(true)
	i.armMu.Unlock()

	if pending() || ctx.Err() != nil {
		i.leave(true)
		return false
	}
	select {
	case <-ch:
	case <-ctx.Done():
	}
	i.leave(false)
	return true
}

// leave drops the caller from the parked count. A bailing parker disarms the
// flag only if nobody else is still parked.
func (i *idler) leave(bail bool) {
	i.armMu.Lock()
	if i.parked.Add(-1) == 0 && bail {
		i.blocked.Store(false)
	}
	i.armMu.Unlock()
}
