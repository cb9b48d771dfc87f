// File: internal/concurrency/context.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Context is a named set of pinned workers draining one shared queue. It lends
// idle workers to siblings and recalls them when its own queue gets a post.

package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/momentics/hioload-dispatch/api"
)

var _ api.Context = (*Context)(nil)

// Context implements api.Context. Create it through Group.GetOrCreateContext.
type Context struct {
	name        string
	startingCPU int
	group       *Group
	log         *slog.Logger
	queue       *TaskQueue
	workers     []*Worker

	_ cpu.CacheLinePad
	// Touched by every Post.
	idler
	outboundN atomic.Int32
	closed    atomic.Bool
	_         cpu.CacheLinePad

	stopping atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	// mu guards outbound and inbound only. It is never held together with
	// another Context's mu.
	mu       sync.Mutex
	outbound []*Loan
	inbound  []*Loan

	wg          sync.WaitGroup
	disposeOnce sync.Once

	executed atomic.Int64
	rejected atomic.Int64
}

func newContext(g *Group, name string, startingCPU, workers int) *Context {
	c := &Context{
		name:        name,
		startingCPU: startingCPU,
		group:       g,
		log:         g.opts.logger.With("context", name),
		queue:       NewTaskQueue(),
	}
	c.idler.wake = newSignal()
	c.ctx, c.cancel = context.WithCancel(g.ctx)
	context.AfterFunc(c.ctx, func() { c.stopping.Store(true) })
	c.workers = make([]*Worker, workers)
	for i := range c.workers {
		c.workers[i] = newWorker(c, i, startingCPU+i)
	}
	return c
}

// start launches one goroutine per worker; each locks and pins its own thread.
func (c *Context) start() {
	c.wg.Add(len(c.workers))
	for _, w := range c.workers {
		go w.run()
	}
	c.log.Info("context started", "starting_cpu", c.startingCPU, "workers", len(c.workers))
}

// Name returns the unique name of the Context within its Group.
func (c *Context) Name() string { return c.name }

// Workers returns the owned workers.
func (c *Context) Workers() []*Worker { return slices.Clone(c.workers) }

// Post enqueues a task. Posts to a disposed Context are dropped and logged.
func (c *Context) Post(cb api.Callback, state any) {
	if err := c.TryPost(cb, state); err != nil {
		c.log.Warn("post dropped", "error", err)
	}
}

// TryPost enqueues a task and reports rejection.
//
// After enqueueing, a parked local worker is woken if the blocked flag was
// armed. Otherwise every outbound loan is recalled so the new task does not
// wait for a borrowed worker's own starvation check.
//
// A post racing Dispose may enqueue after the queue was cleared. The closed
// flag is checked again after enqueueing; if it is set, the queue is cleared
// once more and the post is reported as rejected.
func (c *Context) TryPost(cb api.Callback, state any) error {
	if cb == nil {
		return ErrNilCallback
	}
	if c.closed.Load() {
		return c.reject()
	}
	c.queue.Enqueue(Task{Action: cb, State: state})
	if c.closed.Load() {
		c.queue.Clear()
		return c.reject()
	}
	if c.notify() {
		return nil
	}
	if c.outboundN.Load() > 0 {
		c.recallOutbound()
	}
	return nil
}

func (c *Context) reject() error {
	c.rejected.Add(1)
	c.group.opts.metrics.RecordTaskRejected(c.name, "closed")
	return fmt.Errorf("post to %q: %w", c.name, ErrContextClosed)
}

// HasWork is a best-effort non-empty predicate used by the loan broker.
func (c *Context) HasWork() bool {
	return c.queue.HasWork()
}

// Pending returns the approximate queue length.
func (c *Context) Pending() int {
	return c.queue.Len()
}

// OutboundLoans is the number of own workers currently lent out.
func (c *Context) OutboundLoans() int {
	return int(c.outboundN.Load())
}

// InboundWorkers is the number of foreign workers draining this queue.
func (c *Context) InboundWorkers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inbound)
}

func (c *Context) recallOutbound() {
	c.mu.Lock()
	loans := c.outbound
	c.outbound = nil
	c.outboundN.Store(0)
	c.mu.Unlock()

	for _, l := range loans {
		l.Recall(api.RecallActive)
	}
	if len(loans) > 0 {
		c.wake.set()
	}
}

// RequestLoan is called by an idle home worker. It returns nil when capacity is
// exhausted, no sibling has work, or the home queue received work meanwhile.
func (c *Context) RequestLoan(w *Worker) *Loan {
	if w.home != c {
		return nil
	}
	return c.requestLoan(w)
}

func (c *Context) requestLoan(w *Worker) *Loan {
	if c.stopping.Load() || int(c.outboundN.Load()) >= len(c.workers) {
		return nil
	}
	target := c.group.BrokerLoan(c)
	if target == nil {
		return nil
	}
	l := newLoan(w, target)
	if l == nil {
		return nil
	}

	// The counter is bumped before the queue check: a concurrent Post either
	// sees the loan and recalls it, or its task is seen here.
	c.mu.Lock()
	if len(c.outbound) >= len(c.workers) || c.closed.Load() {
		c.mu.Unlock()
		l.Recall(api.RecallRejected)
		return nil
	}
	c.outbound = append(c.outbound, l)
	c.outboundN.Add(1)
	if c.queue.HasWork() {
		c.removeOutboundLocked(l)
		c.mu.Unlock()
		l.Recall(api.RecallRejected)
		return nil
	}
	c.mu.Unlock()

	c.group.opts.metrics.RecordLoan(c.name, target.name)
	w.log.Debug("worker lent", "loan", l.id, "borrower", target.name)
	return l
}

func (c *Context) removeOutbound(l *Loan) {
	c.mu.Lock()
	c.removeOutboundLocked(l)
	c.mu.Unlock()
}

func (c *Context) removeOutboundLocked(l *Loan) {
	if i := slices.Index(c.outbound, l); i >= 0 {
		c.outbound = slices.Delete(c.outbound, i, i+1)
		c.outboundN.Add(-1)
	}
}

// RegisterExternalWorker records an inbound loan. It fails once disposed.
func (c *Context) RegisterExternalWorker(l *Loan) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return false
	}
	c.inbound = append(c.inbound, l)
	return true
}

// RemoveExternalWorker forgets an inbound loan.
func (c *Context) RemoveExternalWorker(l *Loan) {
	c.mu.Lock()
	if i := slices.Index(c.inbound, l); i >= 0 {
		c.inbound = slices.Delete(c.inbound, i, i+1)
	}
	c.mu.Unlock()
}

// parkIdle runs the blocking half of the worker loop on this Context.
func (c *Context) parkIdle() bool {
	return c.idler.park(c.ctx, c.queue.HasWork)
}

// Stats returns a snapshot of the Context.
func (c *Context) Stats() ContextStats {
	c.mu.Lock()
	inbound := len(c.inbound)
	c.mu.Unlock()

	threads := make([]WorkerStats, len(c.workers))
	for i, w := range c.workers {
		threads[i] = w.stats()
	}
	return ContextStats{
		Name:        c.name,
		StartingCPU: c.startingCPU,
		Workers:     len(c.workers),
		Pending:     c.queue.Len(),
		Outbound:    int(c.outboundN.Load()),
		Inbound:     inbound,
		Parked:      int(c.parked.Load()),
		Blocked:     c.blocked.Load(),
		Executed:    c.executed.Load(),
		Rejected:    c.rejected.Load(),
		Threads:     threads,
	}
}

// Dispose deregisters the Context, stops and joins its workers, sends foreign
// workers home and drops queued tasks. It must not be called from a task
// running on one of its own workers. Repeated calls are no-ops.
func (c *Context) Dispose() {
	c.disposeOnce.Do(func() {
		c.closed.Store(true)
		c.group.remove(c)

		c.stopping.Store(true)
		c.cancel()
		c.wg.Wait()

		c.mu.Lock()
		inbound := c.inbound
		c.inbound = nil
		c.mu.Unlock()
		for _, l := range inbound {
			l.Recall(api.RecallTeardown)
		}

		dropped := c.queue.Clear()
		c.log.Info("context disposed", "executed", c.executed.Load(), "dropped", dropped)
	})
}
