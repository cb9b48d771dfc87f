// File: internal/concurrency/pinned_pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PinnedPool dispatches posted tasks across statically pinned worker threads
// sharing one queue. It never lends or borrows. With a swap interval each
// worker owns a pair of adjacent CPUs and alternates its pin between them.

package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-dispatch/api"
)

var _ api.Context = (*PinnedPool)(nil)

// PoolConfig describes a PinnedPool.
type PoolConfig struct {
	Name        string
	StartingCPU int
	Workers     int
	// SwapInterval > 0 pins worker i to StartingCPU+2i and StartingCPU+2i+1
	// alternately; zero pins worker i to StartingCPU+i for its lifetime.
	SwapInterval time.Duration
}

// span returns the number of consecutive CPUs the pool occupies.
func (c PoolConfig) span() int {
	if c.SwapInterval > 0 {
		return 2 * c.Workers
	}
	return c.Workers
}

// PinnedPool manages a fixed set of pinned worker goroutines.
type PinnedPool struct {
	cfg    PoolConfig
	opts   options
	log    *slog.Logger
	tuning tuningCell
	queue  *TaskQueue

	idler
	closed   atomic.Bool
	stopping atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc

	workers     []*poolWorker
	wg          sync.WaitGroup
	disposeOnce sync.Once

	executed atomic.Int64
	rejected atomic.Int64
}

type poolWorker struct {
	id       int
	cpus     [2]int
	active   atomic.Int32
	phase    atomic.Int32
	executed atomic.Int64
	log      *slog.Logger
}

// NewPinnedPool validates cfg and starts the workers.
func NewPinnedPool(cfg PoolConfig, opts ...Option) (*PinnedPool, error) {
	o := buildOptions(opts)
	if cfg.StartingCPU < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCPU, cfg.StartingCPU)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWorkerCount, cfg.Workers)
	}
	if last := cfg.StartingCPU + cfg.span(); last > o.cpuCount {
		return nil, fmt.Errorf("%w: cpus [%d,%d) with %d available", ErrCPURange, cfg.StartingCPU, last, o.cpuCount)
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("pool-%d", cfg.StartingCPU)
	}

	p := &PinnedPool{
		cfg:   cfg,
		opts:  o,
		log:   o.logger.With("pool", cfg.Name),
		queue: NewTaskQueue(),
	}
	if err := p.tuning.store(o.tuning); err != nil {
		return nil, err
	}
	p.idler.wake = newSignal()
	p.ctx, p.cancel = context.WithCancel(o.parent)
	context.AfterFunc(p.ctx, func() { p.stopping.Store(true) })

	p.workers = make([]*poolWorker, cfg.Workers)
	for i := range p.workers {
		w := &poolWorker{id: i}
		if cfg.SwapInterval > 0 {
			w.cpus = [2]int{cfg.StartingCPU + 2*i, cfg.StartingCPU + 2*i + 1}
		} else {
			w.cpus = [2]int{cfg.StartingCPU + i, cfg.StartingCPU + i}
		}
		w.active.Store(int32(w.cpus[0]))
		w.log = p.log.With("worker", i)
		p.workers[i] = w
	}
	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		go p.run(w)
	}
	p.log.Info("pool started", "starting_cpu", cfg.StartingCPU, "workers", cfg.Workers, "swap_interval", cfg.SwapInterval)
	return p, nil
}

// Name returns the pool name.
func (p *PinnedPool) Name() string { return p.cfg.Name }

// Post enqueues a task; posts after Dispose are dropped and logged.
func (p *PinnedPool) Post(cb api.Callback, state any) {
	if err := p.TryPost(cb, state); err != nil {
		p.log.Warn("post dropped", "error", err)
	}
}

// TryPost enqueues a task and wakes parked workers. A post that lands while
// Dispose runs is cleared and reported as rejected.
func (p *PinnedPool) TryPost(cb api.Callback, state any) error {
	if cb == nil {
		return ErrNilCallback
	}
	if p.closed.Load() {
		return p.reject()
	}
	p.queue.Enqueue(Task{Action: cb, State: state})
	if p.closed.Load() {
		p.queue.Clear()
		return p.reject()
	}
	p.notify()
	return nil
}

func (p *PinnedPool) reject() error {
	p.rejected.Add(1)
	p.opts.metrics.RecordTaskRejected(p.cfg.Name, "closed")
	return fmt.Errorf("post to %q: %w", p.cfg.Name, ErrPoolClosed)
}

// SetTuning swaps idle-loop parameters.
func (p *PinnedPool) SetTuning(t Tuning) error {
	return p.tuning.store(t)
}

// ActiveCPU returns the CPU worker id is currently pinned to, or -1.
func (p *PinnedPool) ActiveCPU(id int) int {
	if id < 0 || id >= len(p.workers) {
		return -1
	}
	return int(p.workers[id].active.Load())
}

func (p *PinnedPool) run(w *poolWorker) {
	defer p.wg.Done()
	defer w.phase.Store(int32(StateTerminated))

	lockAndPin(p.opts.pin, w.cpus[0], w.log)

	var spin spinner
	idleSince := time.Now()
	swapAt := idleSince.Add(p.cfg.SwapInterval)

	for !p.stopping.Load() {
		if t, ok := p.queue.TryDequeue(); ok {
			p.execute(w, t)
			spin.reset()
			idleSince = time.Now()
		} else if tuning := p.tuning.load(); time.Since(idleSince) < tuning.StarvationThreshold {
			spin.once(tuning.SpinLimit)
		} else {
			w.phase.Store(int32(StateBlocked))
			p.park(p.ctx, p.queue.HasWork)
			w.phase.Store(int32(StateSpinning))
			spin.reset()
			idleSince = time.Now()
		}

		if p.cfg.SwapInterval > 0 && time.Now().After(swapAt) {
			p.swap(w)
			swapAt = time.Now().Add(p.cfg.SwapInterval)
		}
	}
}

// swap moves the calling worker thread to the other CPU of its pair.
func (p *PinnedPool) swap(w *poolWorker) {
	next := w.cpus[0]
	if int(w.active.Load()) == w.cpus[0] {
		next = w.cpus[1]
	}
	if p.opts.pin != nil {
		if err := p.opts.pin(next); err != nil {
			w.log.Warn("cpu swap failed", "cpu", next, "error", err)
			return
		}
	}
	w.active.Store(int32(next))
	w.log.Debug("worker swapped cpu", "cpu", next)
}

func (p *PinnedPool) execute(w *poolWorker, t Task) {
	d, panicked := runTask(t, func(r any) {
		w.log.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
		if h := p.opts.onPanic; h != nil {
			h(p.cfg.Name, r)
		}
	})
	w.executed.Add(1)
	p.executed.Add(1)
	cpu := int(w.active.Load())
	p.opts.metrics.RecordTask(api.TaskRecord{
		Context:       p.cfg.Name,
		WorkerContext: p.cfg.Name,
		Worker:        w.id,
		CPU:           cpu,
		Duration:      d,
		Panicked:      panicked,
	})
}

// Stats returns a snapshot of the pool.
func (p *PinnedPool) Stats() PoolStats {
	threads := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		threads[i] = WorkerStats{
			ID:       w.id,
			CPU:      int(w.active.Load()),
			State:    WorkerState(w.phase.Load()).String(),
			Executed: w.executed.Load(),
		}
	}
	return PoolStats{
		Name:     p.cfg.Name,
		Workers:  len(p.workers),
		Pending:  p.queue.Len(),
		Parked:   int(p.parked.Load()),
		Executed: p.executed.Load(),
		Rejected: p.rejected.Load(),
		Threads:  threads,
	}
}

// Dispose stops and joins every worker and drops queued tasks.
// Repeated calls are no-ops.
func (p *PinnedPool) Dispose() {
	p.disposeOnce.Do(func() {
		p.closed.Store(true)
		p.stopping.Store(true)
		p.cancel()
		p.wg.Wait()
		dropped := p.queue.Clear()
		p.log.Info("pool disposed", "executed", p.executed.Load(), "dropped", dropped)
	})
}
