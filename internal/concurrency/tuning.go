// File: internal/concurrency/tuning.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	// DefaultStarvationThreshold is the idle time after which a worker stops spinning.
	DefaultStarvationThreshold = 300 * time.Millisecond
	// DefaultSpinLimit caps busy backoff at 1<<10 iterations before yielding.
	DefaultSpinLimit = 10

	maxSpinLimit = 30
)

// Tuning holds the idle-loop parameters. It can be swapped at runtime.
type Tuning struct {
	StarvationThreshold time.Duration
	SpinLimit           int
}

// DefaultTuning returns the stock parameters.
func DefaultTuning() Tuning {
	return Tuning{
		StarvationThreshold: DefaultStarvationThreshold,
		SpinLimit:           DefaultSpinLimit,
	}
}

// Validate rejects non-positive thresholds and out-of-range spin limits.
func (t Tuning) Validate() error {
	if t.StarvationThreshold <= 0 {
		return fmt.Errorf("%w: starvation threshold %s", ErrInvalidTuning, t.StarvationThreshold)
	}
	if t.SpinLimit < 0 || t.SpinLimit > maxSpinLimit {
		return fmt.Errorf("%w: spin limit %d not in [0,%d]", ErrInvalidTuning, t.SpinLimit, maxSpinLimit)
	}
	return nil
}

// tuningCell is read on every starvation check.
type tuningCell struct {
	p atomic.Pointer[Tuning]
}

func (c *tuningCell) load() Tuning {
	return *c.p.Load()
}

func (c *tuningCell) store(t Tuning) error {
	if err := t.Validate(); err != nil {
		return err
	}
	c.p.Store(&t)
	return nil
}
