package concurrency

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pinLog records every pin request.
type pinLog struct {
	mu   sync.Mutex
	cpus []int
}

func (p *pinLog) pin(cpu int) error {
	p.mu.Lock()
	p.cpus = append(p.cpus, cpu)
	p.mu.Unlock()
	return nil
}

func (p *pinLog) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.cpus...)
}

func newTestPool(t *testing.T, cfg PoolConfig, opts ...Option) *PinnedPool {
	t.Helper()
	base := []Option{
		WithLogger(quietLogger()),
		WithCPUCount(16),
		WithTuning(Tuning{StarvationThreshold: 20 * time.Millisecond, SpinLimit: 4}),
	}
	p, err := NewPinnedPool(cfg, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Dispose)
	return p
}

func TestPinnedPool_ExecutesAll(t *testing.T) {
	p := newTestPool(t, PoolConfig{StartingCPU: 0, Workers: 3}, WithPinner(nil))
	assert.Equal(t, "pool-0", p.Name())

	var done atomic.Int32
	for i := 0; i < 1000; i++ {
		p.Post(func(any) { done.Add(1) }, nil)
	}
	require.Eventually(t, func() bool { return done.Load() == 1000 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, int64(1000), p.Stats().Executed)
}

func TestPinnedPool_StaticPins(t *testing.T) {
	pins := &pinLog{}
	p := newTestPool(t, PoolConfig{Name: "static", StartingCPU: 4, Workers: 3}, WithPinner(pins.pin))

	require.Eventually(t, func() bool { return len(pins.snapshot()) == 3 }, time.Second, time.Millisecond)
	assert.ElementsMatch(t, []int{4, 5, 6}, pins.snapshot())
	for i := 0; i < 3; i++ {
		assert.Equal(t, 4+i, p.ActiveCPU(i))
	}
	assert.Equal(t, -1, p.ActiveCPU(3))
}

func TestPinnedPool_SwapAlternatesPair(t *testing.T) {
	pins := &pinLog{}
	p := newTestPool(t, PoolConfig{Name: "swap", StartingCPU: 2, Workers: 1, SwapInterval: 10 * time.Millisecond},
		WithPinner(pins.pin),
		WithTuning(Tuning{StarvationThreshold: 10 * time.Second, SpinLimit: 4}))

	require.Eventually(t, func() bool { return len(pins.snapshot()) >= 4 }, 5*time.Second, time.Millisecond)
	got := pins.snapshot()
	assert.Equal(t, 2, got[0])
	for i := 1; i < len(got); i++ {
		assert.NotEqual(t, got[i-1], got[i], "each swap moves to the other cpu")
		assert.Contains(t, []int{2, 3}, got[i])
	}
	assert.Contains(t, []int{2, 3}, p.ActiveCPU(0))
}

func TestPinnedPool_Validation(t *testing.T) {
	o := []Option{WithLogger(quietLogger()), WithCPUCount(4), WithPinner(nil)}

	_, err := NewPinnedPool(PoolConfig{StartingCPU: -1, Workers: 1}, o...)
	assert.ErrorIs(t, err, ErrInvalidCPU)
	_, err = NewPinnedPool(PoolConfig{Workers: 0}, o...)
	assert.ErrorIs(t, err, ErrInvalidWorkerCount)
	_, err = NewPinnedPool(PoolConfig{Workers: 3, SwapInterval: time.Second}, o...)
	assert.ErrorIs(t, err, ErrCPURange, "swap mode needs two cpus per worker")
}

func TestPinnedPool_PanicAndDispose(t *testing.T) {
	p := newTestPool(t, PoolConfig{Workers: 1}, WithPinner(nil))

	var ran atomic.Bool
	p.Post(func(any) { panic("pool boom") }, nil)
	p.Post(func(any) { ran.Store(true) }, nil)
	require.Eventually(t, ran.Load, 5*time.Second, time.Millisecond)

	p.Dispose()
	p.Dispose()
	assert.ErrorIs(t, p.TryPost(nop, nil), ErrPoolClosed)
	assert.ErrorIs(t, p.TryPost(nil, nil), ErrNilCallback)
	assert.Equal(t, StateTerminated.String(), p.Stats().Threads[0].State)
}
