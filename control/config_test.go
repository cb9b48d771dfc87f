package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
scheduler:
  starvation_threshold: 50ms
  spin_limit: 6
metrics:
  enabled: true
  namespace: dispatch
contexts:
  - name: io
    starting_cpu: 0
    workers: 2
  - name: compute
    starting_cpu: 2
    workers: 2
pools:
  - name: swap
    starting_cpu: 4
    workers: 1
    swap_interval: 5s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 50*time.Millisecond, cfg.Scheduler.StarvationThreshold)
	assert.Equal(t, 6, cfg.Scheduler.SpinLimit)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, []ContextConfig{
		{Name: "io", StartingCPU: 0, Workers: 2},
		{Name: "compute", StartingCPU: 2, Workers: 2},
	}, cfg.Contexts)
	require.Len(t, cfg.Pools, 1)
	assert.Equal(t, 5*time.Second, cfg.Pools[0].SwapInterval)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HIOLOAD_LOG_LEVEL", "warn")
	t.Setenv("HIOLOAD_SCHEDULER_STARVATION_THRESHOLD", "75ms")
	cfg, err := Load(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 75*time.Millisecond, cfg.Scheduler.StarvationThreshold)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"zero threshold", "scheduler:\n  starvation_threshold: 0s\n"},
		{"spin limit too high", "scheduler:\n  spin_limit: 64\n"},
		{"context without workers", "contexts:\n  - name: a\n    workers: 0\n"},
		{"context without name", "contexts:\n  - workers: 1\n"},
		{"duplicate context", "contexts:\n  - name: a\n    workers: 1\n  - name: a\n    starting_cpu: 1\n    workers: 1\n"},
		{"bad namespace", "metrics:\n  enabled: true\n  namespace: my-app\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoader_Watch(t *testing.T) {
	path := writeConfig(t, "scheduler:\n  spin_limit: 3\n")
	l := NewLoader(path)
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Scheduler.SpinLimit)

	got := make(chan int, 8)
	l.Watch(func(cfg *Config, err error) {
		if err != nil {
			return
		}
		select {
		case got <- cfg.Scheduler.SpinLimit:
		default:
		}
	})
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  spin_limit: 7\n"), 0o600))

	select {
	case n := <-got:
		assert.Equal(t, 7, n)
	case <-time.After(5 * time.Second):
		t.Fatal("config change not observed")
	}
}
