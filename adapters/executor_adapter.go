// File: adapters/executor_adapter.go
// Package adapters provides glue between plain closures and api.Dispatcher.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// ExecutorAdapter lets code written against a Submit(func()) executor post
// onto any Context or PinnedPool.

package adapters

import (
	"github.com/momentics/hioload-dispatch/api"
)

// ExecutorAdapter wraps a Dispatcher with a closure-submitting surface.
type ExecutorAdapter struct {
	d api.Dispatcher
}

// NewExecutorAdapter wraps d.
func NewExecutorAdapter(d api.Dispatcher) *ExecutorAdapter {
	return &ExecutorAdapter{d: d}
}

// Submit posts task. It fails once the target is disposed.
func (ea *ExecutorAdapter) Submit(task func()) error {
	if task == nil {
		return api.ErrInvalidArgument
	}
	return ea.d.TryPost(runClosure, task)
}

func runClosure(state any) {
	state.(func())()
}
