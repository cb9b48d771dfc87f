// File: api/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher contract for posting work onto CPU-pinned execution contexts.

package api

// Callback is a unit of posted work. It receives exactly the state it was posted with.
type Callback func(state any)

// Dispatcher accepts posted work. Post never blocks; the callback runs exactly once
// on a pinned worker thread at some later time.
type Dispatcher interface {
	Post(cb Callback, state any)

	// TryPost is Post that reports rejection instead of dropping silently.
	TryPost(cb Callback, state any) error
}

// Context is a named, disposable Dispatcher backed by pinned workers.
type Context interface {
	Dispatcher

	// Name returns the unique name within the owning group.
	Name() string

	// Dispose stops and joins every owned worker. Repeated calls are no-ops.
	Dispose()
}
