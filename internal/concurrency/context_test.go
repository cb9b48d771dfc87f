package concurrency

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_ExactlyOnceDelivery(t *testing.T) {
	g, _ := newTestGroup(t, 20*time.Millisecond)
	c, err := g.GetOrCreateContext(0, 4, "exact")
	require.NoError(t, err)

	const producers, perProducer = 4, 2500
	total := producers * perProducer
	seen := make([]atomic.Int32, total)
	var done atomic.Int64

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.Post(func(s any) {
					seen[s.(int)].Add(1)
					done.Add(1)
				}, pid*perProducer+i)
			}
		}(p)
	}
	wg.Wait()

	require.Eventually(t, func() bool { return done.Load() == int64(total) }, 10*time.Second, time.Millisecond)
	for i := range seen {
		require.Equal(t, int32(1), seen[i].Load(), "task %d", i)
	}
	require.Eventually(t, func() bool { return c.Stats().Executed == int64(total) }, time.Second, time.Millisecond)
}

func TestContext_TasksPostedBeforeStart(t *testing.T) {
	g, _ := newTestGroup(t, 20*time.Millisecond)
	c := unstarted(t, g, 0, 2, "early")

	var done atomic.Int32
	for i := 0; i < 100; i++ {
		c.Post(func(any) { done.Add(1) }, nil)
	}
	c.start()
	require.Eventually(t, func() bool { return done.Load() == 100 }, 5*time.Second, time.Millisecond)
}

func TestContext_InvalidConfiguration(t *testing.T) {
	g, _ := newTestGroup(t, 20*time.Millisecond, WithCPUCount(4))

	tests := []struct {
		name    string
		cpu     int
		workers int
		want    error
	}{
		{"negative cpu", -1, 1, ErrInvalidCPU},
		{"zero workers", 0, 0, ErrInvalidWorkerCount},
		{"negative workers", 0, -3, ErrInvalidWorkerCount},
		{"past last cpu", 2, 3, ErrCPURange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := g.GetOrCreateContext(tt.cpu, tt.workers, tt.name)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, g.Contexts())
}

func TestGetOrCreateContext_Names(t *testing.T) {
	g, _ := newTestGroup(t, 20*time.Millisecond)

	a, err := g.GetOrCreateContext(0, 2, "a")
	require.NoError(t, err)
	again, err := g.GetOrCreateContext(0, 2, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)

	_, err = g.GetOrCreateContext(4, 2, "a")
	assert.ErrorIs(t, err, ErrContextConflict)

	anon, err := g.GetOrCreateContext(2, 1, "")
	require.NoError(t, err)
	assert.Equal(t, "context-1", anon.Name())

	found, ok := g.Context("a")
	require.True(t, ok)
	assert.Same(t, a, found)
	assert.Len(t, g.Contexts(), 2)
}

func TestContext_PanicKeepsWorkerAlive(t *testing.T) {
	var handled atomic.Value
	g, rec := newTestGroup(t, 20*time.Millisecond, WithPanicHandler(func(ctx string, r any) {
		handled.Store(ctx)
	}))
	c, err := g.GetOrCreateContext(0, 1, "panicky")
	require.NoError(t, err)

	var ran atomic.Bool
	c.Post(func(any) { panic("boom") }, nil)
	c.Post(func(any) { ran.Store(true) }, nil)

	require.Eventually(t, ran.Load, 5*time.Second, time.Millisecond)
	assert.Equal(t, "panicky", handled.Load())
	assert.Equal(t, 1, rec.panicked())
	assert.NotEqual(t, StateTerminated, c.workers[0].State())
}

func TestContext_NilCallback(t *testing.T) {
	g, _ := newTestGroup(t, 20*time.Millisecond)
	c := unstarted(t, g, 0, 1, "nil")
	assert.ErrorIs(t, c.TryPost(nil, nil), ErrNilCallback)
	assert.Zero(t, c.Pending())
}

func TestContext_DisposeIsIdempotent(t *testing.T) {
	g, rec := newTestGroup(t, 20*time.Millisecond)
	c, err := g.GetOrCreateContext(0, 3, "gone")
	require.NoError(t, err)

	c.Dispose()
	c.Dispose()

	for _, w := range c.Workers() {
		assert.Equal(t, StateTerminated, w.State())
	}
	err = c.TryPost(nop, nil)
	assert.True(t, errors.Is(err, ErrContextClosed))
	c.Post(nop, nil)
	assert.Equal(t, 2, rec.rejected)

	_, ok := g.Context("gone")
	assert.False(t, ok)

	// The name is free again once disposed.
	fresh, err := g.GetOrCreateContext(4, 1, "gone")
	require.NoError(t, err)
	assert.NotSame(t, c, fresh)
}

func TestContext_DisposeDropsQueuedTasks(t *testing.T) {
	g, _ := newTestGroup(t, 20*time.Millisecond)
	c, err := g.GetOrCreateContext(0, 1, "drop")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var ran atomic.Int32
	c.Post(func(any) {
		close(started)
		<-release
		ran.Add(1)
	}, nil)
	<-started
	for i := 0; i < 10; i++ {
		c.Post(func(any) { ran.Add(1) }, nil)
	}

	disposed := make(chan struct{})
	go func() {
		c.Dispose()
		close(disposed)
	}()
	require.Eventually(t, c.stopping.Load, time.Second, time.Millisecond)
	close(release)

	select {
	case <-disposed:
	case <-time.After(5 * time.Second):
		t.Fatal("dispose did not join the worker")
	}
	assert.Equal(t, int32(1), ran.Load(), "in-flight task finishes, queued ones are dropped")
	assert.Zero(t, c.Pending())
}

func TestContext_ParksWhenIdleAndWakesOnPost(t *testing.T) {
	g, _ := newTestGroup(t, 10*time.Millisecond)
	c, err := g.GetOrCreateContext(0, 2, "idle")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, w := range c.Workers() {
			if w.State() != StateBlocked {
				return false
			}
		}
		return c.blocked.Load() && c.Stats().Parked == 2
	}, 5*time.Second, time.Millisecond)

	ran := make(chan struct{})
	c.Post(func(any) { close(ran) }, nil)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("parked worker not woken by post")
	}
}

func TestContext_PostsRacingDisposeAreRejectedOrAccepted(t *testing.T) {
	g, rec := newTestGroup(t, 20*time.Millisecond)
	c, err := g.GetOrCreateContext(0, 2, "racing")
	require.NoError(t, err)

	const posters = 4
	var failed atomic.Int64
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < posters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if err := c.TryPost(nop, nil); err != nil {
					assert.ErrorIs(t, err, ErrContextClosed)
					failed.Add(1)
				}
			}
		}()
	}
	time.Sleep(5 * time.Millisecond)
	c.Dispose()
	time.Sleep(5 * time.Millisecond)
	close(stop)
	wg.Wait()

	assert.Positive(t, failed.Load())
	assert.Zero(t, c.Pending(), "no task left behind in a disposed queue")
	st := c.Stats()
	assert.Equal(t, failed.Load(), st.Rejected)
	rec.mu.Lock()
	assert.Equal(t, int(failed.Load()), rec.rejected)
	rec.mu.Unlock()
}
