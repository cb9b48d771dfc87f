// File: internal/concurrency/worker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Worker owns one pinned OS thread and runs the dispatch loop:
// spin on the current queue, and once starved either return from a loan,
// borrow a sibling's queue, or park on the home Context.

package concurrency

import (
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-dispatch/api"
)

// WorkerState is the observable phase of a worker loop.
type WorkerState int32

const (
	StateSpinning WorkerState = iota
	StateBlocked
	StateLoaned
	StateTerminated
)

func (s WorkerState) String() string {
	switch s {
	case StateSpinning:
		return "spinning"
	case StateBlocked:
		return "blocked"
	case StateLoaned:
		return "loaned"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// binding is an immutable queue handle. Every Loan allocates its own, so
// pointer identity tells one loan from the next even on the same foreign queue.
type binding struct {
	queue *TaskQueue
	owner *Context
}

// Worker is one pinned thread of a Context.
type Worker struct {
	id   int
	cpu  int
	home *Context
	log  *slog.Logger

	homeBinding *binding
	// current is written by Loan construction (worker thread) and Loan disposal
	// (compare-and-swap from any thread); it is read only by the worker thread.
	current atomic.Pointer[binding]

	// phase holds StateSpinning, StateBlocked or StateTerminated;
	// StateLoaned is derived from current.
	phase    atomic.Int32
	executed atomic.Int64

	// loan is touched only by the worker goroutine.
	loan *Loan
}

func newWorker(home *Context, id, cpu int) *Worker {
	w := &Worker{
		id:          id,
		cpu:         cpu,
		home:        home,
		log:         home.log.With("worker", id, "cpu", cpu),
		homeBinding: &binding{queue: home.queue, owner: home},
	}
	w.current.Store(w.homeBinding)
	return w
}

// ID is the worker index within its home Context.
func (w *Worker) ID() int { return w.id }

// CPU is the logical CPU the worker is pinned to.
func (w *Worker) CPU() int { return w.cpu }

// Home returns the owning Context.
func (w *Worker) Home() *Context { return w.home }

// State reports the current phase.
func (w *Worker) State() WorkerState {
	switch s := WorkerState(w.phase.Load()); s {
	case StateBlocked, StateTerminated:
		return s
	}
	if w.current.Load() != w.homeBinding {
		return StateLoaned
	}
	return StateSpinning
}

func (w *Worker) stats() WorkerStats {
	return WorkerStats{
		ID:       w.id,
		CPU:      w.cpu,
		State:    w.State().String(),
		Executed: w.executed.Load(),
	}
}

func (w *Worker) run() {
	home := w.home
	defer home.wg.Done()
	defer w.terminate()

	lockAndPin(home.group.opts.pin, w.cpu, w.log)

	var spin spinner
	idleSince := time.Now()

	for !home.stopping.Load() {
		b := w.current.Load()
		if t, ok := b.queue.TryDequeue(); ok {
			w.execute(b.owner, t)
			spin.reset()
			idleSince = time.Now()
			continue
		}

		tuning := home.group.tuning.load()
		if time.Since(idleSince) < tuning.StarvationThreshold {
			spin.once(tuning.SpinLimit)
			continue
		}

		if l := w.loan; l != nil {
			w.loan = nil
			// false means home already pulled us back; go straight to brokering.
			if l.Recall(api.RecallSelf) {
				spin.reset()
				idleSince = time.Now()
				continue
			}
		}

		if l := home.requestLoan(w); l != nil {
			w.loan = l
			continue
		}

		w.phase.Store(int32(StateBlocked))
		if home.parkIdle() {
			w.log.Debug("worker woke")
		}
		w.phase.Store(int32(StateSpinning))
		spin.reset()
		idleSince = time.Now()
	}
}

// execute runs t on this thread. Panics are recovered: the loop outlives any
// task, and Context or Loan bookkeeping is never touched by task code.
func (w *Worker) execute(owner *Context, t Task) {
	d, panicked := runTask(t, func(r any) {
		w.log.Error("task panicked", "context", owner.name, "panic", r, "stack", string(debug.Stack()))
		if h := w.home.group.opts.onPanic; h != nil {
			h(owner.name, r)
		}
	})
	w.executed.Add(1)
	owner.executed.Add(1)
	w.home.group.opts.metrics.RecordTask(api.TaskRecord{
		Context:       owner.name,
		WorkerContext: w.home.name,
		Worker:        w.id,
		CPU:           w.cpu,
		Duration:      d,
		Panicked:      panicked,
	})
}

// terminate collapses a loan still held at exit.
func (w *Worker) terminate() {
	if l := w.loan; l != nil {
		w.loan = nil
		l.Recall(api.RecallTeardown)
	}
	w.phase.Store(int32(StateTerminated))
	w.log.Debug("worker stopped", "executed", w.executed.Load())
}

// runTask executes t and reports its duration and whether it panicked.
func runTask(t Task, onPanic func(r any)) (d time.Duration, panicked bool) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			onPanic(r)
		}
		d = time.Since(start)
	}()
	t.Action(t.State)
	return 0, false
}
