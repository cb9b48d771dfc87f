// File: internal/concurrency/stats.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Point-in-time snapshots for debug probes and metrics collectors.

package concurrency

// WorkerStats describes one worker.
type WorkerStats struct {
	ID       int    `json:"id"`
	CPU      int    `json:"cpu"`
	State    string `json:"state"`
	Executed int64  `json:"executed"`
}

// ContextStats describes one Context. Values are read without a global lock
// and may be mutually inconsistent by a few operations.
type ContextStats struct {
	Name        string        `json:"name"`
	StartingCPU int           `json:"starting_cpu"`
	Workers     int           `json:"workers"`
	Pending     int           `json:"pending"`
	Outbound    int           `json:"outbound_loans"`
	Inbound     int           `json:"inbound_workers"`
	Parked      int           `json:"parked_workers"`
	Blocked     bool          `json:"blocked"`
	Executed    int64         `json:"executed"`
	Rejected    int64         `json:"rejected"`
	Threads     []WorkerStats `json:"threads"`
}

// GroupStats aggregates every live Context.
type GroupStats struct {
	Tuning   Tuning         `json:"tuning"`
	Contexts []ContextStats `json:"contexts"`
}

// PoolStats describes a PinnedPool.
type PoolStats struct {
	Name     string        `json:"name"`
	Workers  int           `json:"workers"`
	Pending  int           `json:"pending"`
	Parked   int           `json:"parked_workers"`
	Executed int64         `json:"executed"`
	Rejected int64         `json:"rejected"`
	Threads  []WorkerStats `json:"threads"`
}
