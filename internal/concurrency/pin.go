// hioload-dispatch/internal/concurrency/pin.go
// Author: momentics <momentics@gmail.com>
//
// Thread locking and CPU pinning for worker goroutines.

package concurrency

import (
	"log/slog"
	"runtime"

	"github.com/momentics/hioload-dispatch/affinity"
)

// lockAndPin locks the calling goroutine to its OS thread and pins that thread.
// The lock is never released: the thread exits with the worker goroutine, so its
// affinity mask cannot leak to unrelated goroutines. Pin failures degrade to
// unpinned execution.
func lockAndPin(pin PinFunc, cpu int, log *slog.Logger) {
	runtime.LockOSThread()
	tid := affinity.CurrentThreadID()
	if pin == nil {
		log.Debug("worker started unpinned", "cpu", cpu, "tid", tid)
		return
	}
	if err := pin(cpu); err != nil {
		log.Warn("cpu pin failed, running unpinned", "cpu", cpu, "tid", tid, "error", err)
		return
	}
	log.Debug("worker pinned", "cpu", cpu, "tid", tid)
}
