// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package concurrency implements CPU-pinned execution contexts that share idle
// workers through a loan protocol.
//
// A Group owns sibling Contexts. Each Context owns a fixed set of Workers, one
// locked OS thread per logical CPU, draining a shared FIFO TaskQueue. A Worker
// that stays idle past the starvation threshold asks its home Context for a Loan:
// the Group finds the first sibling with pending work and the Worker's queue
// handle is retargeted to that sibling's queue. The Worker comes back when the
// foreign queue starves too (self recall) or as soon as its home Context gets a
// post (active recall). Workers with nothing to do anywhere park on their home
// Context's wake signal.
//
// Bookkeeping locks are per Context and never nested, and the dequeue path is
// lock-free apart from the queue itself.
//
// PinnedPool is the non-cooperating variant: static per-core workers, optionally
// alternating between two cores, with the same spin and park loop.
package concurrency
