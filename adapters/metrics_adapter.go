// File: adapters/metrics_adapter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// api.Metrics sinks: counters in a control.MetricsRegistry, and fan-out to
// several sinks at once.

package adapters

import (
	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/control"
)

// Counter keys written by RegistryMetrics.
const (
	CounterTasksExecuted = "tasks.executed"
	CounterTasksPanicked = "tasks.panicked"
	CounterTasksBorrowed = "tasks.borrowed"
	CounterTasksRejected = "tasks.rejected"
	CounterLoansCreated  = "loans.created"
	CounterLoansRecalled = "loans.recalled"
)

// RegistryMetrics counts dispatch events into a MetricsRegistry.
type RegistryMetrics struct {
	reg *control.MetricsRegistry
}

var _ api.Metrics = (*RegistryMetrics)(nil)

func NewRegistryMetrics(reg *control.MetricsRegistry) *RegistryMetrics {
	return &RegistryMetrics{reg: reg}
}

func (m *RegistryMetrics) RecordTask(rec api.TaskRecord) {
	m.reg.Add(CounterTasksExecuted, 1)
	m.reg.Add("context."+rec.Context+".executed", 1)
	if rec.Borrowed() {
		m.reg.Add(CounterTasksBorrowed, 1)
	}
	if rec.Panicked {
		m.reg.Add(CounterTasksPanicked, 1)
	}
}

func (m *RegistryMetrics) RecordTaskRejected(ctx, reason string) {
	m.reg.Add(CounterTasksRejected, 1)
}

func (m *RegistryMetrics) RecordLoan(lender, borrower string) {
	m.reg.Add(CounterLoansCreated, 1)
}

func (m *RegistryMetrics) RecordRecall(rec api.LoanRecord) {
	m.reg.Add(CounterLoansRecalled, 1)
	m.reg.Add(CounterLoansRecalled+"."+string(rec.Reason), 1)
}

// MultiMetrics forwards every event to each sink in order.
type MultiMetrics []api.Metrics

var _ api.Metrics = MultiMetrics(nil)

// NewMultiMetrics drops nil sinks and collapses trivial cases.
func NewMultiMetrics(sinks ...api.Metrics) api.Metrics {
	out := make(MultiMetrics, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	switch len(out) {
	case 0:
		return api.NopMetrics{}
	case 1:
		return out[0]
	}
	return out
}

func (mm MultiMetrics) RecordTask(rec api.TaskRecord) {
	for _, m := range mm {
		m.RecordTask(rec)
	}
}

func (mm MultiMetrics) RecordTaskRejected(ctx, reason string) {
	for _, m := range mm {
		m.RecordTaskRejected(ctx, reason)
	}
}

func (mm MultiMetrics) RecordLoan(lender, borrower string) {
	for _, m := range mm {
		m.RecordLoan(lender, borrower)
	}
}

func (mm MultiMetrics) RecordRecall(rec api.LoanRecord) {
	for _, m := range mm {
		m.RecordRecall(rec)
	}
}
