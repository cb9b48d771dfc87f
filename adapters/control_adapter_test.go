package adapters_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-dispatch/adapters"
	"github.com/momentics/hioload-dispatch/api"
	"github.com/momentics/hioload-dispatch/control"
	"github.com/momentics/hioload-dispatch/internal/concurrency"
)

type fakeTuner struct {
	t     concurrency.Tuning
	calls int
}

func (f *fakeTuner) Tuning() concurrency.Tuning { return f.t }

func (f *fakeTuner) SetTuning(t concurrency.Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	f.calls++
	f.t = t
	return nil
}

func TestControlAdapterBasic(t *testing.T) {
	ctrl := adapters.NewControlAdapter(nil, nil)
	assert.Empty(t, ctrl.GetConfig(), "expected empty config on init")

	require.NoError(t, ctrl.SetConfig(map[string]any{"k": 1}))
	assert.Equal(t, 1, ctrl.GetConfig()["k"])

	called := false
	ctrl.OnReload(func() { called = true })
	require.NoError(t, ctrl.SetConfig(map[string]any{"x": 2}))
	assert.True(t, called, "reload hook not called")

	ctrl.SetMetric("gauge", 5)
	ctrl.RegisterDebugProbe("probe", func() any { return "ok" })
	stats := ctrl.Stats()
	assert.Equal(t, 5, stats["gauge"])
	assert.Equal(t, "ok", stats["debug.probe"])
	assert.Contains(t, stats, "debug.platform.cpus")

	ctrl.UnregisterDebugProbe("probe")
	assert.NotContains(t, ctrl.Stats(), "debug.probe")
}

func TestControlAdapter_SeedsAndAppliesTuning(t *testing.T) {
	tuner := &fakeTuner{t: concurrency.DefaultTuning()}
	ctrl := adapters.NewControlAdapter(tuner, nil)

	cfg := ctrl.GetConfig()
	assert.Equal(t, concurrency.DefaultStarvationThreshold, cfg[adapters.KeyStarvationThreshold])
	assert.Equal(t, concurrency.DefaultSpinLimit, cfg[adapters.KeySpinLimit])
	assert.Zero(t, tuner.calls, "seeding does not rewrite tuning")

	require.NoError(t, ctrl.SetConfig(map[string]any{adapters.KeyStarvationThreshold: "50ms"}))
	assert.Equal(t, 50*time.Millisecond, tuner.t.StarvationThreshold)

	require.NoError(t, ctrl.SetConfig(map[string]any{adapters.KeySpinLimit: float64(4)}))
	assert.Equal(t, 4, tuner.t.SpinLimit)

	require.NoError(t, ctrl.ApplyScheduler(control.SchedulerConfig{StarvationThreshold: time.Second, SpinLimit: 2}))
	assert.Equal(t, concurrency.Tuning{StarvationThreshold: time.Second, SpinLimit: 2}, tuner.t)
}

func TestControlAdapter_RejectsBadTuning(t *testing.T) {
	tuner := &fakeTuner{t: concurrency.DefaultTuning()}
	ctrl := adapters.NewControlAdapter(tuner, nil)

	err := ctrl.SetConfig(map[string]any{adapters.KeySpinLimit: 1000})
	assert.True(t, errors.Is(err, concurrency.ErrInvalidTuning))
	assert.Error(t, ctrl.SetConfig(map[string]any{adapters.KeyStarvationThreshold: 12}))
	assert.Error(t, ctrl.SetConfig(map[string]any{adapters.KeySpinLimit: 1.5}))

	assert.Equal(t, concurrency.DefaultTuning(), tuner.t)
	assert.Equal(t, concurrency.DefaultSpinLimit, ctrl.GetConfig()[adapters.KeySpinLimit], "rejected change is not stored")
}

func TestControl_InterfaceContract(t *testing.T) {
	tuner := &fakeTuner{t: concurrency.DefaultTuning()}
	var ctrl api.Control = adapters.NewControlAdapter(tuner, nil)

	assert.Error(t, ctrl.SetConfig(map[string]any{adapters.KeySpinLimit: 99}))
	assert.Equal(t, concurrency.DefaultTuning(), tuner.t, "rejected value keeps tuning")

	ctrl.RegisterDebugProbe("context.a", func() any { return 1 })
	ctrl.RegisterDebugProbe("context.a", func() any { return 2 })
	assert.Equal(t, 2, ctrl.Stats()["debug.context.a"], "re-registering replaces")
	ctrl.UnregisterDebugProbe("context.a")
	assert.NotContains(t, ctrl.Stats(), "debug.context.a")
}
