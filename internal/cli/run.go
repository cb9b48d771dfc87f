// File: internal/cli/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The run subcommand: post a synthetic workload to every configured Context
// and report elapsed time and worst post-to-run latency.

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"text/tabwriter"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/momentics/hioload-dispatch/adapters"
	"github.com/momentics/hioload-dispatch/affinity"
	"github.com/momentics/hioload-dispatch/control"
	"github.com/momentics/hioload-dispatch/facade"
	"github.com/momentics/hioload-dispatch/internal/concurrency"
)

type runOptions struct {
	tasks       int
	work        time.Duration
	metricsAddr string
	hold        time.Duration
	watch       bool
	unpinned    bool
}

func newRunCommand(st *state) *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Post a synthetic workload and report timings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorkload(ctx, st, o)
		},
	}
	cmd.Flags().IntVar(&o.tasks, "tasks", 1000, "tasks posted to each context")
	cmd.Flags().DurationVar(&o.work, "work", 100*time.Microsecond, "busy time per task")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve /metrics and /debug/state on this address")
	cmd.Flags().DurationVar(&o.hold, "hold", 0, "keep serving after the workload finishes")
	cmd.Flags().BoolVar(&o.watch, "watch", false, "hot-reload scheduler tuning from the config file")
	cmd.Flags().BoolVar(&o.unpinned, "unpinned", false, "run workers without cpu pinning")
	_ = cmd.Flags().MarkHidden("unpinned")
	return cmd
}

// defaultContexts splits the machine into two contexts A and B.
func defaultContexts(cpus int) []control.ContextConfig {
	w := min(2, max(1, cpus/2))
	return []control.ContextConfig{
		{Name: "A", StartingCPU: 0, Workers: w},
		{Name: "B", StartingCPU: max(0, min(w, cpus-w)), Workers: w},
	}
}

type contextReport struct {
	name       string
	tasks      int
	elapsed    time.Duration
	maxLatency time.Duration
}

func runWorkload(ctx context.Context, st *state, o runOptions) error {
	if o.tasks <= 0 {
		return fmt.Errorf("--tasks must be positive, got %d", o.tasks)
	}
	cfg, err := st.loader.Load()
	if err != nil {
		return err
	}
	if len(cfg.Contexts) == 0 {
		cpus := cfg.Scheduler.CPUCount
		if cpus == 0 {
			cpus = affinity.CPUCount()
		}
		cfg.Contexts = defaultContexts(cpus)
	}
	reg := prom.NewRegistry()
	if o.metricsAddr != "" {
		cfg.Metrics.Enabled = true
	}

	opts := []facade.Option{facade.WithRegisterer(reg)}
	if o.unpinned {
		opts = append(opts, facade.WithPinner(nil))
	}
	d, err := facade.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer d.Shutdown()

	if o.watch && st.configPath != "" {
		d.Watch(st.loader)
	}

	var srv *http.Server
	if o.metricsAddr != "" {
		srv = &http.Server{Addr: o.metricsAddr, Handler: NewRouter(d, reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(st.out, "metrics server: %v\n", err)
			}
		}()
		defer srv.Close()
	}

	reports, err := postAll(ctx, d, cfg.Contexts, o)
	if err != nil {
		return err
	}
	printReports(st, d, reports)

	if o.hold > 0 {
		select {
		case <-time.After(o.hold):
		case <-ctx.Done():
		}
	}
	return nil
}

// postAll floods every context at once and waits for all tasks to finish.
func postAll(ctx context.Context, d *facade.Dispatch, contexts []control.ContextConfig, o runOptions) ([]contextReport, error) {
	reports := make([]contextReport, len(contexts))
	var wg sync.WaitGroup
	for i, cc := range contexts {
		c, ok := d.Context(cc.Name)
		if !ok {
			return nil, fmt.Errorf("context %q not running", cc.Name)
		}
		wg.Add(1)
		go func(i int, c *concurrency.Context) {
			defer wg.Done()
			reports[i] = drive(ctx, c, o)
		}(i, c)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return reports, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func drive(ctx context.Context, c *concurrency.Context, o runOptions) contextReport {
	var maxLatency atomic.Int64
	var pending sync.WaitGroup
	observe := func(wait time.Duration) {
		for {
			cur := maxLatency.Load()
			if int64(wait) <= cur || maxLatency.CompareAndSwap(cur, int64(wait)) {
				return
			}
		}
	}
	work := func(any) {
		defer pending.Done()
		busy(o.work)
	}

	start := time.Now()
	pending.Add(o.tasks)
	for i := 0; i < o.tasks; i++ {
		if err := c.TryPost(adapters.Chain(work, adapters.QueueLatency(observe)), i); err != nil {
			pending.Done()
		}
	}
	finished := make(chan struct{})
	go func() {
		pending.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
	}
	return contextReport{
		name:       c.Name(),
		tasks:      o.tasks,
		elapsed:    time.Since(start),
		maxLatency: time.Duration(maxLatency.Load()),
	}
}

// busy burns CPU for d without yielding to the Go scheduler's timers.
func busy(d time.Duration) {
	for end := time.Now().Add(d); time.Now().Before(end); {
	}
}

func printReports(st *state, d *facade.Dispatch, reports []contextReport) {
	reg := d.Control().Registry()
	tw := tabwriter.NewWriter(st.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTEXT\tTASKS\tELAPSED\tMAX LATENCY")
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.name, r.tasks, r.elapsed.Round(time.Microsecond), r.maxLatency.Round(time.Microsecond))
	}
	tw.Flush()
	fmt.Fprintf(st.out, "loans=%d borrowed_tasks=%d recalls(active=%d self=%d)\n",
		reg.Counter(adapters.CounterLoansCreated),
		reg.Counter(adapters.CounterTasksBorrowed),
		reg.Counter(adapters.CounterLoansRecalled+".active"),
		reg.Counter(adapters.CounterLoansRecalled+".self"))
}
