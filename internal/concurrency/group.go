// File: internal/concurrency/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Group owns sibling Contexts, brokers loans between them and tears them down.

package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Group is the ContextGroup: the sole creator and destroyer of its Contexts.
// It outlives every Context it manages.
type Group struct {
	opts   options
	log    *slog.Logger
	tuning tuningCell

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	contexts []*Context
	seq      int

	closed      atomic.Bool
	disposeOnce sync.Once
}

// NewGroup creates an empty Group.
func NewGroup(opts ...Option) (*Group, error) {
	o := buildOptions(opts)
	g := &Group{
		opts: o,
		log:  o.logger,
	}
	if err := g.tuning.store(o.tuning); err != nil {
		return nil, err
	}
	g.ctx, g.cancel = context.WithCancel(o.parent)
	return g, nil
}

// GetOrCreateContext returns the live Context called name, or builds and starts
// a new one with workerCount workers pinned to consecutive CPUs from startingCPU.
// An empty name gets a generated one. Arguments are validated before any thread
// starts.
func (g *Group) GetOrCreateContext(startingCPU, workerCount int, name string) (*Context, error) {
	c, created, err := g.buildContext(startingCPU, workerCount, name)
	if err != nil {
		return nil, err
	}
	if created {
		c.start()
	}
	return c, nil
}

// buildContext registers an unstarted Context.
func (g *Group) buildContext(startingCPU, workerCount int, name string) (*Context, bool, error) {
	if startingCPU < 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidCPU, startingCPU)
	}
	if workerCount <= 0 {
		return nil, false, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, workerCount)
	}
	if last := startingCPU + workerCount; last > g.opts.cpuCount {
		return nil, false, fmt.Errorf("%w: cpus [%d,%d) with %d available",
			ErrCPURange, startingCPU, last, g.opts.cpuCount)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed.Load() {
		return nil, false, ErrGroupClosed
	}
	if name == "" {
		name = g.nextNameLocked()
	}
	for _, c := range g.contexts {
		if c.name != name {
			continue
		}
		if c.startingCPU == startingCPU && len(c.workers) == workerCount {
			return c, false, nil
		}
		return nil, false, fmt.Errorf("%w: %q has cpus [%d,%d)",
			ErrContextConflict, name, c.startingCPU, c.startingCPU+len(c.workers))
	}
	c := newContext(g, name, startingCPU, workerCount)
	g.contexts = append(g.contexts, c)
	return c, true, nil
}

func (g *Group) nextNameLocked() string {
	for {
		g.seq++
		name := fmt.Sprintf("context-%d", g.seq)
		if !slices.ContainsFunc(g.contexts, func(c *Context) bool { return c.name == name }) {
			return name
		}
	}
}

// Context looks up a live Context by name.
func (g *Group) Context(name string) (*Context, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.contexts {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Contexts returns live Contexts in registration order.
func (g *Group) Contexts() []*Context {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.contexts)
}

// BrokerLoan returns the first registered sibling of requester with pending
// work, or nil. The policy is first-found in registration order.
func (g *Group) BrokerLoan(requester *Context) *Context {
	if g.closed.Load() {
		return nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, c := range g.contexts {
		if c != requester && !c.closed.Load() && c.HasWork() {
			return c
		}
	}
	return nil
}

// Tuning returns the current idle-loop parameters.
func (g *Group) Tuning() Tuning {
	return g.tuning.load()
}

// SetTuning swaps idle-loop parameters; workers pick them up on their next
// starvation check.
func (g *Group) SetTuning(t Tuning) error {
	if err := g.tuning.store(t); err != nil {
		return err
	}
	g.log.Info("tuning updated", "starvation_threshold", t.StarvationThreshold, "spin_limit", t.SpinLimit)
	return nil
}

// Stats snapshots every live Context.
func (g *Group) Stats() GroupStats {
	contexts := g.Contexts()
	out := GroupStats{Tuning: g.Tuning(), Contexts: make([]ContextStats, len(contexts))}
	for i, c := range contexts {
		out.Contexts[i] = c.Stats()
	}
	return out
}

func (g *Group) remove(c *Context) {
	g.mu.Lock()
	if i := slices.Index(g.contexts, c); i >= 0 {
		g.contexts = slices.Delete(g.contexts, i, i+1)
	}
	g.mu.Unlock()
}

// Dispose trips the shared cancellation, then disposes every Context.
// It blocks until every worker thread has exited. Repeated calls are no-ops.
func (g *Group) Dispose() {
	g.disposeOnce.Do(func() {
		g.closed.Store(true)
		g.cancel()
		for _, c := range g.Contexts() {
			c.Dispose()
		}
		g.log.Info("group disposed")
	})
}
