package concurrency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunTask_RecoversPanic(t *testing.T) {
	var got any
	d, panicked := runTask(Task{Action: func(any) { panic("bad") }}, func(r any) { got = r })
	assert.True(t, panicked)
	assert.Equal(t, "bad", got)
	assert.GreaterOrEqual(t, d, time.Duration(0))
}

func TestRunTask_PassesState(t *testing.T) {
	var got any
	_, panicked := runTask(Task{Action: func(s any) { got = s }, State: 42}, func(any) {
		t.Fatal("unexpected panic")
	})
	assert.False(t, panicked)
	assert.Equal(t, 42, got)
}

func TestWorkerState_String(t *testing.T) {
	assert.Equal(t, "spinning", StateSpinning.String())
	assert.Equal(t, "blocked", StateBlocked.String())
	assert.Equal(t, "loaned", StateLoaned.String())
	assert.Equal(t, "terminated", StateTerminated.String())
	assert.Equal(t, "unknown", WorkerState(9).String())
}

func TestTuning_Validate(t *testing.T) {
	assert.NoError(t, DefaultTuning().Validate())
	assert.NoError(t, Tuning{StarvationThreshold: time.Millisecond, SpinLimit: 0}.Validate())
	assert.ErrorIs(t, Tuning{StarvationThreshold: time.Millisecond, SpinLimit: -1}.Validate(), ErrInvalidTuning)
	assert.ErrorIs(t, Tuning{SpinLimit: 3}.Validate(), ErrInvalidTuning)
}
