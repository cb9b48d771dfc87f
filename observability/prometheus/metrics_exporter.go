package prometheus

import (
	"errors"
	"fmt"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-dispatch/api"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts api.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskRejectedTotal   *prom.CounterVec
	loansTotal          *prom.CounterVec
	recallsTotal        *prom.CounterVec
	loanHeldSeconds     *prom.HistogramVec
}

var _ api.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for api.Metrics.
// Registering twice on one registry reuses the existing collectors.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "hioload"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"context", "worker_context"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of recovered task panics.",
	}, []string{"context"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_rejected_total",
		Help:      "Total number of rejected posts.",
	}, []string{"context", "reason"})
	loansVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "loans_total",
		Help:      "Total number of workers lent to a sibling context.",
	}, []string{"lender", "borrower"})
	recallsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "recalls_total",
		Help:      "Total number of loans ended, by reason.",
	}, []string{"lender", "borrower", "reason"})
	heldVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "loan_held_seconds",
		Help:      "Time a worker spent on a foreign queue.",
		Buckets:   buckets,
	}, []string{"lender", "borrower"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if loansVec, err = registerCollector(reg, loansVec); err != nil {
		return nil, err
	}
	if recallsVec, err = registerCollector(reg, recallsVec); err != nil {
		return nil, err
	}
	if heldVec, err = registerCollector(reg, heldVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		taskRejectedTotal:   rejectedVec,
		loansTotal:          loansVec,
		recallsTotal:        recallsVec,
		loanHeldSeconds:     heldVec,
	}, nil
}

// RecordTask records duration and panics of one executed task.
func (m *MetricsExporter) RecordTask(rec api.TaskRecord) {
	if m == nil {
		return
	}
	ctx := normalizeLabel(rec.Context, "unknown")
	m.taskDurationSeconds.WithLabelValues(ctx, normalizeLabel(rec.WorkerContext, "unknown")).Observe(rec.Duration.Seconds())
	if rec.Panicked {
		m.taskPanicTotal.WithLabelValues(ctx).Inc()
	}
}

// RecordTaskRejected records task rejection events.
func (m *MetricsExporter) RecordTaskRejected(ctx string, reason string) {
	if m == nil {
		return
	}
	m.taskRejectedTotal.WithLabelValues(normalizeLabel(ctx, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordLoan counts a new loan.
func (m *MetricsExporter) RecordLoan(lender, borrower string) {
	if m == nil {
		return
	}
	m.loansTotal.WithLabelValues(normalizeLabel(lender, "unknown"), normalizeLabel(borrower, "unknown")).Inc()
}

// RecordRecall counts an ended loan and how long it was held.
func (m *MetricsExporter) RecordRecall(rec api.LoanRecord) {
	if m == nil {
		return
	}
	lender, borrower := normalizeLabel(rec.Lender, "unknown"), normalizeLabel(rec.Borrower, "unknown")
	m.recallsTotal.WithLabelValues(lender, borrower, normalizeLabel(string(rec.Reason), "unknown")).Inc()
	m.loanHeldSeconds.WithLabelValues(lender, borrower).Observe(rec.Held.Seconds())
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
