// File: adapters/handler_adapter.go
// Package adapters
// Author: momentics <momentics@gmail.com>
//
// Callback middleware chain.

package adapters

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/momentics/hioload-dispatch/api"
)

// Middleware decorates a Callback.
type Middleware func(api.Callback) api.Callback

// Chain wraps cb so that mw[0] runs outermost.
func Chain(cb api.Callback, mw ...Middleware) api.Callback {
	for i := len(mw) - 1; i >= 0; i-- {
		cb = mw[i](cb)
	}
	return cb
}

// LoggingMiddleware logs each invocation at debug level with its duration.
func LoggingMiddleware(log *slog.Logger) Middleware {
	return func(next api.Callback) api.Callback {
		return func(state any) {
			start := time.Now()
			next(state)
			log.Debug("callback done", "state_type", fmt.Sprintf("%T", state), "took", time.Since(start))
		}
	}
}

// QueueLatency reports the time between wrapping and the first instruction of
// the callback. Wrap right before Post.
func QueueLatency(observe func(wait time.Duration)) Middleware {
	return func(next api.Callback) api.Callback {
		posted := time.Now()
		return func(state any) {
			observe(time.Since(posted))
			next(state)
		}
	}
}
