// File: internal/concurrency/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Functional options shared by Group and PinnedPool.

package concurrency

import (
	"context"
	"log/slog"

	"github.com/momentics/hioload-dispatch/affinity"
	"github.com/momentics/hioload-dispatch/api"
)

// PinFunc binds the calling, already locked, OS thread to a logical CPU.
type PinFunc func(cpu int) error

// PanicHandler observes a recovered task panic. ctx names the queue owner.
type PanicHandler func(ctx string, recovered any)

type options struct {
	logger   *slog.Logger
	metrics  api.Metrics
	pin      PinFunc
	cpuCount int
	tuning   Tuning
	onPanic  PanicHandler
	parent   context.Context
}

// Option customizes a Group or PinnedPool.
type Option func(*options)

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		metrics:  api.NopMetrics{},
		pin:      affinity.SetAffinity,
		cpuCount: affinity.CPUCount(),
		tuning:   DefaultTuning(),
		parent:   context.Background(),
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m api.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithPinner replaces the affinity call. A nil pinner leaves threads unpinned.
func WithPinner(p PinFunc) Option {
	return func(o *options) {
		o.pin = p
	}
}

// WithCPUCount overrides the number of logical CPUs used for range validation.
func WithCPUCount(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.cpuCount = n
		}
	}
}

// WithTuning sets the initial starvation threshold and spin limit.
// Invalid values are rejected by the constructor.
func WithTuning(t Tuning) Option {
	return func(o *options) {
		o.tuning = t
	}
}

// WithPanicHandler registers a hook for recovered task panics.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *options) {
		o.onPanic = h
	}
}

// WithParent links cancellation of every worker to ctx.
func WithParent(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.parent = ctx
		}
	}
}
