// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Control adapter implementing api.Control with control package primitives.
// Scheduler keys written through SetConfig are applied to the bound Tuner.

package adapters

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/control"
	"github.com/momentics/hioload-dispatch/internal/concurrency"
)

// Config keys with live effect.
const (
	KeyStarvationThreshold = "scheduler.starvation_threshold"
	KeySpinLimit           = "scheduler.spin_limit"
)

// Tuner is the hot-reloadable surface of a Group.
type Tuner interface {
	Tuning() concurrency.Tuning
	SetTuning(concurrency.Tuning) error
}

var _ api.Control = (*ControlAdapter)(nil)

type ControlAdapter struct {
	config  *control.ConfigStore
	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
	tuner   Tuner
}

// NewControlAdapter binds a fresh store to tuner and reg; either may be nil.
func NewControlAdapter(tuner Tuner, reg *control.MetricsRegistry) *ControlAdapter {
	if reg == nil {
		reg = control.NewMetricsRegistry()
	}
	adapter := &ControlAdapter{
		config:  control.NewConfigStore(),
		metrics: reg,
		debug:   control.NewDebugProbes(),
		tuner:   tuner,
	}
	control.RegisterPlatformProbes(adapter.debug)
	if tuner != nil {
		adapter.config.Validate(adapter.applyTuning)
		t := tuner.Tuning()
		_ = adapter.config.SetConfig(map[string]any{
			KeyStarvationThreshold: t.StarvationThreshold,
			KeySpinLimit:           t.SpinLimit,
		})
	}
	return adapter
}

// applyTuning merges scheduler keys into the current tuning and stores it.
// Other keys pass through untouched.
func (c *ControlAdapter) applyTuning(changed map[string]any) error {
	next := c.tuner.Tuning()
	touched := false
	if v, ok := changed[KeyStarvationThreshold]; ok {
		d, err := asDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyStarvationThreshold, err)
		}
		next.StarvationThreshold = d
		touched = true
	}
	if v, ok := changed[KeySpinLimit]; ok {
		n, err := asInt(v)
		if err != nil {
			return fmt.Errorf("%s: %w", KeySpinLimit, err)
		}
		next.SpinLimit = n
		touched = true
	}
	if !touched || next == c.tuner.Tuning() {
		return nil
	}
	return c.tuner.SetTuning(next)
}

func asDuration(v any) (time.Duration, error) {
	switch x := v.(type) {
	case time.Duration:
		return x, nil
	case string:
		return time.ParseDuration(x)
	}
	return 0, fmt.Errorf("%w: %T is not a duration", api.ErrInvalidArgument, v)
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x == float64(int(x)) {
			return int(x), nil
		}
	}
	return 0, fmt.Errorf("%w: %v is not an integer", api.ErrInvalidArgument, v)
}

// ApplyScheduler pushes a reloaded scheduler section through SetConfig.
func (c *ControlAdapter) ApplyScheduler(s control.SchedulerConfig) error {
	return c.SetConfig(map[string]any{
		KeyStarvationThreshold: s.StarvationThreshold,
		KeySpinLimit:           s.SpinLimit,
	})
}

func (c *ControlAdapter) GetConfig() map[string]any {
	return c.config.GetSnapshot()
}

func (c *ControlAdapter) SetConfig(cfg map[string]any) error {
	return c.config.SetConfig(cfg)
}

// Stats merges counters with probe output under the "debug." prefix.
func (c *ControlAdapter) Stats() map[string]any {
	stats := c.metrics.GetSnapshot()
	for k, v := range c.debug.DumpState() {
		stats["debug."+k] = v
	}
	return stats
}

func (c *ControlAdapter) OnReload(fn func()) {
	c.config.OnReload(fn)
	control.RegisterReloadHook(fn)
}

func (c *ControlAdapter) SetMetric(key string, value any) {
	c.metrics.Set(key, value)
}

func (c *ControlAdapter) RegisterDebugProbe(name string, fn func() any) {
	c.debug.RegisterProbe(name, fn)
}

// UnregisterDebugProbe drops a probe registered earlier.
func (c *ControlAdapter) UnregisterDebugProbe(name string) {
	c.debug.UnregisterProbe(name)
}

// Registry exposes the counter store for RegistryMetrics.
func (c *ControlAdapter) Registry() *control.MetricsRegistry {
	return c.metrics
}
