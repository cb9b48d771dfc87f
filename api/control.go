// File: api/control.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime control surface of the dispatch engine.

package api

// Control exposes live configuration, counters and debug probes.
//
// SetConfig accepts flat dotted keys. The scheduler keys
// "scheduler.starvation_threshold" (duration or duration string) and
// "scheduler.spin_limit" (integer) take effect on every worker's next
// starvation check; a rejected value leaves the current tuning in place and
// returns the validation error. Any other key is stored as is.
//
// Stats merges task, loan and recall counters with the output of every
// registered probe, the latter under a "debug." prefix.
type Control interface {
	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error
	Stats() map[string]any

	// OnReload registers fn to run after each accepted SetConfig or file reload.
	OnReload(fn func())

	// RegisterDebugProbe publishes fn under name, e.g. "context.<name>" for a
	// Context snapshot. Registering an existing name replaces it.
	RegisterDebugProbe(name string, fn func() any)
	UnregisterDebugProbe(name string)
}
