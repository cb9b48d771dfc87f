// File: internal/concurrency/spin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Bounded spin used between failed dequeues, with exponential busy backoff
// that degrades into yielding once the limit is reached.

package concurrency

import (
	"runtime"
	"sync/atomic"
)

// spinSink defeats dead-loop elimination in the busy phase.
var spinSink atomic.Uint32

type spinner struct {
	count int
}

// once performs one backoff step under the given limit.
func (s *spinner) once(limit int) {
	if s.count >= limit {
		runtime.Gosched()
		return
	}
	for i := 0; i < 1<<s.count; i++ {
		spinSink.Load()
	}
	s.count++
}

func (s *spinner) reset() {
	s.count = 0
}
