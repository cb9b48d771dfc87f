package concurrency

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dispatch/api"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recorder is an api.Metrics fake that keeps every event.
type recorder struct {
	mu       sync.Mutex
	tasks    []api.TaskRecord
	loans    int
	recalls  []api.LoanRecord
	rejected int
}

var _ api.Metrics = (*recorder)(nil)

func (r *recorder) RecordTask(rec api.TaskRecord) {
	r.mu.Lock()
	r.tasks = append(r.tasks, rec)
	r.mu.Unlock()
}

func (r *recorder) RecordTaskRejected(string, string) {
	r.mu.Lock()
	r.rejected++
	r.mu.Unlock()
}

func (r *recorder) RecordLoan(string, string) {
	r.mu.Lock()
	r.loans++
	r.mu.Unlock()
}

func (r *recorder) RecordRecall(rec api.LoanRecord) {
	r.mu.Lock()
	r.recalls = append(r.recalls, rec)
	r.mu.Unlock()
}

// borrowed returns records of tasks from ctx executed by workers of worker.
func (r *recorder) borrowed(ctx, worker string) []api.TaskRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []api.TaskRecord
	for _, t := range r.tasks {
		if t.Context == ctx && t.WorkerContext == worker {
			out = append(out, t)
		}
	}
	return out
}

func (r *recorder) recallCount(reason api.RecallReason) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rc := range r.recalls {
		if rc.Reason == reason {
			n++
		}
	}
	return n
}

func (r *recorder) panicked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.tasks {
		if t.Panicked {
			n++
		}
	}
	return n
}

// newTestGroup builds an unpinned Group with a short starvation threshold.
func newTestGroup(t *testing.T, threshold time.Duration, opts ...Option) (*Group, *recorder) {
	t.Helper()
	rec := &recorder{}
	base := []Option{
		WithLogger(quietLogger()),
		WithMetrics(rec),
		WithPinner(nil),
		WithCPUCount(64),
		WithTuning(Tuning{StarvationThreshold: threshold, SpinLimit: 4}),
	}
	g, err := NewGroup(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(g.Dispose)
	return g, rec
}

// unstarted registers a Context whose workers never run.
func unstarted(t *testing.T, g *Group, cpu, workers int, name string) *Context {
	t.Helper()
	c, created, err := g.buildContext(cpu, workers, name)
	require.NoError(t, err)
	require.True(t, created)
	return c
}

func nop(any) {}

func sleepTask(d time.Duration) api.Callback {
	return func(any) { time.Sleep(d) }
}
