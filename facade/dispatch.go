// File: facade/dispatch.go
// Unified facade layer for hioload-dispatch.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatch aggregates the engine behind a single entry point. It builds the
// context group from a control.Config, creates the configured Contexts and
// pinned pools, and wires logging, metrics, debug probes and hot-reload of
// scheduler tuning through the Control interface.

package facade

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-dispatch/adapters"
	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/control"
	"github.com/momentics/hioload-dispatch/internal/concurrency"
	promexp "github.com/momentics/hioload-dispatch/observability/prometheus"
)

// Option customizes New.
type Option func(*settings)

type settings struct {
	logger     *slog.Logger
	registerer prom.Registerer
	pin        concurrency.PinFunc
	pinSet     bool
	onPanic    concurrency.PanicHandler
	parent     context.Context
}

// WithLogger overrides the logger built from Config.Log.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithRegisterer sets the prometheus registry used when metrics are enabled.
func WithRegisterer(r prom.Registerer) Option {
	return func(s *settings) { s.registerer = r }
}

// WithPinner replaces thread pinning; nil runs every worker unpinned.
func WithPinner(p concurrency.PinFunc) Option {
	return func(s *settings) {
		s.pin = p
		s.pinSet = true
	}
}

// WithPanicHandler observes recovered task panics.
func WithPanicHandler(h concurrency.PanicHandler) Option {
	return func(s *settings) { s.onPanic = h }
}

// WithParent ties every worker to ctx; cancelling it stops them all.
func WithParent(ctx context.Context) Option {
	return func(s *settings) { s.parent = ctx }
}

// Dispatch is the main facade type.
type Dispatch struct {
	cfg      control.Config
	log      *slog.Logger
	group    *concurrency.Group
	control  *adapters.ControlAdapter
	affinity *adapters.AffinityAdapter
	poolOpts []concurrency.Option

	mu    sync.Mutex
	pools map[string]*concurrency.PinnedPool

	shutdownOnce sync.Once
}

var _ api.GracefulShutdown = (*Dispatch)(nil)

// New constructs the engine. A nil cfg means control.Defaults(). Every
// configured Context and pool is started before New returns; on any error the
// partially built engine is torn down.
func New(cfg *control.Config, opts ...Option) (*Dispatch, error) {
	if cfg == nil {
		d := control.Defaults()
		cfg = &d
	}
	s := settings{parent: context.Background()}
	for _, o := range opts {
		o(&s)
	}
	if s.logger == nil {
		s.logger = control.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	}

	reg := control.NewMetricsRegistry()
	sinks := []api.Metrics{adapters.NewRegistryMetrics(reg)}
	var exporter *promexp.MetricsExporter
	if cfg.Metrics.Enabled {
		var err error
		exporter, err = promexp.NewMetricsExporter(cfg.Metrics.Namespace, s.registerer, promexp.ExporterOptions{})
		if err != nil {
			return nil, fmt.Errorf("metrics exporter: %w", err)
		}
		sinks = append(sinks, exporter)
	}

	common := []concurrency.Option{
		concurrency.WithLogger(s.logger),
		concurrency.WithMetrics(adapters.NewMultiMetrics(sinks...)),
		concurrency.WithTuning(concurrency.Tuning{
			StarvationThreshold: cfg.Scheduler.StarvationThreshold,
			SpinLimit:           cfg.Scheduler.SpinLimit,
		}),
		concurrency.WithParent(s.parent),
	}
	if cfg.Scheduler.CPUCount > 0 {
		common = append(common, concurrency.WithCPUCount(cfg.Scheduler.CPUCount))
	}
	if s.pinSet {
		common = append(common, concurrency.WithPinner(s.pin))
	}
	if s.onPanic != nil {
		common = append(common, concurrency.WithPanicHandler(s.onPanic))
	}

	group, err := concurrency.NewGroup(common...)
	if err != nil {
		return nil, err
	}
	if cfg.Metrics.Enabled {
		if _, err := promexp.NewStatsCollector(cfg.Metrics.Namespace, s.registerer, group); err != nil {
			group.Dispose()
			return nil, fmt.Errorf("stats collector: %w", err)
		}
	}

	d := &Dispatch{
		cfg:      *cfg,
		log:      s.logger,
		group:    group,
		control:  adapters.NewControlAdapter(group, reg),
		affinity: adapters.NewAffinityAdapter(),
		poolOpts: common,
		pools:    make(map[string]*concurrency.PinnedPool),
	}
	d.control.RegisterDebugProbe("group.tuning", func() any { return group.Tuning() })

	for _, cc := range cfg.Contexts {
		if _, err := d.GetOrCreateContext(cc.StartingCPU, cc.Workers, cc.Name); err != nil {
			_ = d.Shutdown()
			return nil, fmt.Errorf("context %q: %w", cc.Name, err)
		}
	}
	for _, pc := range cfg.Pools {
		_, err := d.NewPinnedPool(concurrency.PoolConfig{
			Name:         pc.Name,
			StartingCPU:  pc.StartingCPU,
			Workers:      pc.Workers,
			SwapInterval: pc.SwapInterval,
		})
		if err != nil {
			_ = d.Shutdown()
			return nil, fmt.Errorf("pool %q: %w", pc.Name, err)
		}
	}

	d.log.Info("dispatch started", "contexts", len(cfg.Contexts), "pools", len(cfg.Pools),
		"metrics", cfg.Metrics.Enabled)
	return d, nil
}

// GetOrCreateContext returns the named Context, creating and starting it if
// needed, and registers its debug probe.
func (d *Dispatch) GetOrCreateContext(startingCPU, workers int, name string) (*concurrency.Context, error) {
	c, err := d.group.GetOrCreateContext(startingCPU, workers, name)
	if err != nil {
		return nil, err
	}
	d.control.RegisterDebugProbe("context."+c.Name(), func() any { return c.Stats() })
	return c, nil
}

// Context looks up a live Context.
func (d *Dispatch) Context(name string) (*concurrency.Context, bool) {
	return d.group.Context(name)
}

// DisposeContext stops one Context. It reports whether the name was live.
func (d *Dispatch) DisposeContext(name string) bool {
	c, ok := d.group.Context(name)
	if !ok {
		return false
	}
	c.Dispose()
	d.control.UnregisterDebugProbe("context." + name)
	return true
}

// NewPinnedPool starts a non-cooperating pool sharing the engine's logger,
// metrics, pinner and tuning. Pool names are unique per Dispatch.
func (d *Dispatch) NewPinnedPool(cfg concurrency.PoolConfig) (*concurrency.PinnedPool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cfg.Name != "" {
		if _, dup := d.pools[cfg.Name]; dup {
			return nil, fmt.Errorf("%w: pool %q", api.ErrAlreadyExists, cfg.Name)
		}
	}
	opts := append(append([]concurrency.Option{}, d.poolOpts...),
		concurrency.WithTuning(d.group.Tuning()))
	p, err := concurrency.NewPinnedPool(cfg, opts...)
	if err != nil {
		return nil, err
	}
	d.pools[p.Name()] = p
	d.control.RegisterDebugProbe("pool."+p.Name(), func() any { return p.Stats() })
	return p, nil
}

// Pool looks up a pool created through this Dispatch.
func (d *Dispatch) Pool(name string) (*concurrency.PinnedPool, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pools[name]
	return p, ok
}

// Reload applies the scheduler section of cfg to the group and every pool.
func (d *Dispatch) Reload(cfg *control.Config) error {
	if err := d.control.ApplyScheduler(cfg.Scheduler); err != nil {
		return err
	}
	t := d.group.Tuning()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.pools {
		if err := p.SetTuning(t); err != nil {
			return err
		}
	}
	return nil
}

// Watch hot-reloads tuning whenever the loader's file changes.
func (d *Dispatch) Watch(l *control.Loader) {
	l.Watch(func(cfg *control.Config, err error) {
		if err != nil {
			d.log.Warn("config reload rejected", "error", err)
			return
		}
		if err := d.Reload(cfg); err != nil {
			d.log.Warn("config reload failed", "error", err)
			return
		}
		control.TriggerHotReload()
	})
}

// Group exposes the context group.
func (d *Dispatch) Group() *concurrency.Group { return d.group }

// Control returns the dynamic config, counters and probes.
func (d *Dispatch) Control() *adapters.ControlAdapter { return d.control }

// Affinity returns an affinity helper for goroutines outside any Context.
func (d *Dispatch) Affinity() api.Affinity { return d.affinity }

// Config returns the configuration the engine was built from.
func (d *Dispatch) Config() control.Config { return d.cfg }

// Shutdown disposes every pool and Context and joins their workers.
// Subsequent calls have no effect.
func (d *Dispatch) Shutdown() error {
	d.shutdownOnce.Do(func() {
		d.mu.Lock()
		pools := d.pools
		d.pools = make(map[string]*concurrency.PinnedPool)
		d.mu.Unlock()
		for name, p := range pools {
			p.Dispose()
			d.control.UnregisterDebugProbe("pool." + name)
		}
		for _, c := range d.group.Contexts() {
			d.control.UnregisterDebugProbe("context." + c.Name())
		}
		d.group.Dispose()
		d.log.Info("dispatch stopped")
	})
	return nil
}
