// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Error definitions for concurrency module.

package concurrency

import "errors"

var (
	// ErrContextClosed indicates the context has been disposed.
	ErrContextClosed = errors.New("context is closed")

	// ErrPoolClosed indicates the pinned pool has been disposed.
	ErrPoolClosed = errors.New("pool is closed")

	// ErrGroupClosed indicates the group has been disposed.
	ErrGroupClosed = errors.New("group is closed")

	// ErrNilCallback indicates a post without a callback.
	ErrNilCallback = errors.New("nil callback")

	// ErrInvalidWorkerCount indicates invalid worker count configuration.
	ErrInvalidWorkerCount = errors.New("invalid worker count")

	// ErrInvalidCPU indicates a negative starting CPU.
	ErrInvalidCPU = errors.New("invalid starting cpu")

	// ErrCPURange indicates the requested CPUs exceed the machine.
	ErrCPURange = errors.New("cpu range exceeds available processors")

	// ErrContextConflict indicates a context name reused with different parameters.
	ErrContextConflict = errors.New("context exists with different parameters")

	// ErrInvalidTuning indicates a rejected starvation threshold or spin limit.
	ErrInvalidTuning = errors.New("invalid tuning")
)
