// File: internal/concurrency/loan.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Loan binds one worker to a foreign Context's queue until recalled.

package concurrency

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-dispatch/api"
)

// Loan is the value object for one active worker-to-foreign-Context binding.
// It holds non-owning references only; the Group owns every Context.
type Loan struct {
	id       string
	worker   *Worker
	lender   *Context
	foreign  *Context
	binding  *binding
	original *binding
	created  time.Time
	disposed atomic.Bool
}

// newLoan retargets w to foreign's queue and registers it as inbound there.
// The retarget happens first so a foreign teardown racing the registration can
// always undo it. Outbound registration on the lender is the caller's job.
func newLoan(w *Worker, foreign *Context) *Loan {
	l := &Loan{
		id:       uuid.NewString(),
		worker:   w,
		lender:   w.home,
		foreign:  foreign,
		binding:  &binding{queue: foreign.queue, owner: foreign},
		original: w.homeBinding,
		created:  time.Now(),
	}
	w.current.Store(l.binding)
	if !foreign.RegisterExternalWorker(l) {
		w.current.CompareAndSwap(l.binding, l.original)
		return nil
	}
	return l
}

// ID is a unique loan identifier for logs and metrics.
func (l *Loan) ID() string { return l.id }

// Worker returns the borrowed worker.
func (l *Loan) Worker() *Worker { return l.worker }

// Lender returns the worker's home Context.
func (l *Loan) Lender() *Context { return l.lender }

// Foreign returns the borrowing Context.
func (l *Loan) Foreign() *Context { return l.foreign }

// Disposed reports whether the loan has ended.
func (l *Loan) Disposed() bool { return l.disposed.Load() }

// Dispose ends the loan as an active recall. Repeated calls are no-ops.
func (l *Loan) Dispose() {
	l.Recall(api.RecallActive)
}

// Recall ends the loan and returns the worker to its home queue. Only the call
// that performs the teardown returns true. Each Context's lock is taken on its
// own, never nested.
func (l *Loan) Recall(reason api.RecallReason) bool {
	if !l.disposed.CompareAndSwap(false, true) {
		return false
	}
	l.foreign.RemoveExternalWorker(l)
	// A no-op when the worker has already moved on to a newer loan.
	l.worker.current.CompareAndSwap(l.binding, l.original)
	l.lender.removeOutbound(l)

	held := time.Since(l.created)
	l.lender.group.opts.metrics.RecordRecall(api.LoanRecord{
		ID:       l.id,
		Lender:   l.lender.name,
		Borrower: l.foreign.name,
		Worker:   l.worker.id,
		CPU:      l.worker.cpu,
		Reason:   reason,
		Held:     held,
	})
	l.worker.log.Debug("worker returned", "loan", l.id, "borrower", l.foreign.name, "reason", string(reason), "held", held)
	return true
}
