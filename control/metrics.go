// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for system-level monitoring.
// Holds gauges in a thread-safe map and lock-free counters.

package control

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsRegistry holds set-style values and monotonically increasing counters.
type MetricsRegistry struct {
	mu       sync.RWMutex
	metrics  map[string]any
	counters sync.Map // string -> *atomic.Int64
	updated  atomic.Int64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Set sets or updates a metric key.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.mu.Unlock()
	mr.touch()
}

// Add increments counter key by delta.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	c, ok := mr.counters.Load(key)
	if !ok {
		c, _ = mr.counters.LoadOrStore(key, new(atomic.Int64))
	}
	c.(*atomic.Int64).Add(delta)
	mr.touch()
}

// Counter reads counter key; missing counters read zero.
func (mr *MetricsRegistry) Counter(key string) int64 {
	if c, ok := mr.counters.Load(key); ok {
		return c.(*atomic.Int64).Load()
	}
	return 0
}

// Updated is the time of the last write, zero if none.
func (mr *MetricsRegistry) Updated() time.Time {
	if ns := mr.updated.Load(); ns != 0 {
		return time.Unix(0, ns)
	}
	return time.Time{}
}

func (mr *MetricsRegistry) touch() {
	mr.updated.Store(time.Now().UnixNano())
}

// GetSnapshot returns gauges and counters in one map.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	out := maps.Clone(mr.metrics)
	mr.mu.RUnlock()
	mr.counters.Range(func(k, v any) bool {
		out[k.(string)] = v.(*atomic.Int64).Load()
		return true
	})
	return out
}
