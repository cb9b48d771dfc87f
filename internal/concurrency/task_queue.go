// File: internal/concurrency/task_queue.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unbounded MPMC FIFO of posted tasks.

package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-dispatch/api"
)

// Task is one posted callback and its state. It is consumed exactly once.
type Task struct {
	Action api.Callback
	State  any
}

// TaskQueue is an unbounded FIFO safe for any number of producers and consumers.
// The ring storage is guarded by a mutex; length is mirrored in an atomic so that
// empty polls and HasWork checks never touch the lock.
type TaskQueue struct {
	length atomic.Int64
	mu     sync.Mutex
	ring   *queue.Queue
}

// NewTaskQueue allocates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{ring: queue.New()}
}

// Enqueue appends t. It never blocks beyond the short critical section.
func (q *TaskQueue) Enqueue(t Task) {
	q.mu.Lock()
	q.ring.Add(t)
	q.length.Add(1)
	q.mu.Unlock()
}

// TryDequeue removes and returns the oldest task; ok is false when empty.
func (q *TaskQueue) TryDequeue() (t Task, ok bool) {
	if q.length.Load() == 0 {
		return Task{}, false
	}
	q.mu.Lock()
	if q.ring.Length() == 0 {
		q.mu.Unlock()
		return Task{}, false
	}
	t = q.ring.Remove().(Task)
	q.length.Add(-1)
	q.mu.Unlock()
	return t, true
}

// Len is a lock-free, possibly stale length.
func (q *TaskQueue) Len() int {
	return int(q.length.Load())
}

// HasWork reports a best-effort non-empty state.
func (q *TaskQueue) HasWork() bool {
	return q.length.Load() > 0
}

// Clear drops every queued task and returns how many were dropped.
func (q *TaskQueue) Clear() int {
	q.mu.Lock()
	n := q.ring.Length()
	q.ring = queue.New()
	q.length.Store(0)
	q.mu.Unlock()
	return n
}
