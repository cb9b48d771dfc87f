// File: api/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Metrics sink contract for task execution and loan life cycle events.

package api

import "time"

// RecallReason tells why a loaned worker went back home.
type RecallReason string

const (
	// RecallSelf: the foreign queue starved and the worker returned on its own.
	RecallSelf RecallReason = "self"
	// RecallActive: the home context received new work and pulled the worker back.
	RecallActive RecallReason = "active"
	// RecallTeardown: a worker or context shut down while the loan was active.
	RecallTeardown RecallReason = "teardown"
	// RecallRejected: the loan was dissolved while it was being registered.
	RecallRejected RecallReason = "rejected"
)

// TaskRecord describes one executed task.
type TaskRecord struct {
	// Context owns the queue the task came from.
	Context string
	// WorkerContext is the home context of the worker that ran it.
	WorkerContext string
	Worker        int
	CPU           int
	Duration      time.Duration
	Panicked      bool
}

// Borrowed reports whether the task ran on a worker lent by another context.
func (r TaskRecord) Borrowed() bool {
	return r.Context != r.WorkerContext
}

// LoanRecord describes one finished loan.
type LoanRecord struct {
	ID       string
	Lender   string
	Borrower string
	Worker   int
	CPU      int
	Reason   RecallReason
	Held     time.Duration
}

// Metrics receives dispatch events. Implementations must be safe for concurrent use
// and must not block: they are called from worker threads.
type Metrics interface {
	RecordTask(rec TaskRecord)
	RecordTaskRejected(context string, reason string)
	RecordLoan(lender, borrower string)
	RecordRecall(rec LoanRecord)
}

// NopMetrics discards every event.
type NopMetrics struct{}

func (NopMetrics) RecordTask(TaskRecord) {}
func (NopMetrics) RecordTaskRejected(string, string) {}
func (NopMetrics) RecordLoan(string, string) {}
func (NopMetrics) RecordRecall(LoanRecord) {}

var _ Metrics = NopMetrics{}
