// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, hot-reload, runtime counters and debug introspection for the
// dispatch engine.
//
// Provides:
//   - Typed, validated configuration loaded from file and HIOLOAD_* environment
//   - Structured logger construction
//   - A dynamic key/value store with reload listeners
//   - Counters and probes exported through api.Control
package control
