//go:build linux

package adapters_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-dispatch/adapters"
)

func TestAffinityAdapter_PinUnpin(t *testing.T) {
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))
	target := 0
	for !set.IsSet(target) {
		target++
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a := adapters.NewAffinityAdapter()
		cpu, tid, err := a.Get()
		assert.NoError(t, err)
		assert.Equal(t, -1, cpu)
		assert.Positive(t, tid)

		if !assert.NoError(t, a.Pin(target)) {
			return
		}
		d := a.ImmutableDescriptor()
		assert.True(t, d.Pinned)
		assert.Equal(t, target, d.CPUID)

		assert.NoError(t, a.Unpin())
		assert.False(t, a.ImmutableDescriptor().Pinned)
		assert.NoError(t, a.Unpin(), "unpin twice is a no-op")
	}()
	<-done
}

func TestAffinityAdapter_PinOutOfRange(t *testing.T) {
	a := adapters.NewAffinityAdapter()
	assert.Error(t, a.Pin(-1))
	assert.False(t, a.ImmutableDescriptor().Pinned)
}

func TestAffinityAdapter_RepinSameGoroutine(t *testing.T) {
	var set unix.CPUSet
	require.NoError(t, unix.SchedGetaffinity(0, &set))
	var allowed []int
	for i := 0; i < len(set)*64 && len(allowed) < 2; i++ {
		if set.IsSet(i) {
			allowed = append(allowed, i)
		}
	}
	if len(allowed) < 2 {
		t.Skip("needs two allowed CPUs")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a := adapters.NewAffinityAdapter()
		if !assert.NoError(t, a.Pin(allowed[0])) {
			return
		}
		if assert.NoError(t, a.Pin(allowed[1])) {
			assert.Equal(t, allowed[1], a.ImmutableDescriptor().CPUID)
		}
		assert.NoError(t, a.Unpin())
	}()
	<-done
}
