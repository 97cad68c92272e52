// Package tee drains a spawned process's combined output into a mirrored
// sink and a consumable line queue.
//
// The producer (the tee goroutine) runs on its own schedule: a slow or absent
// consumer never blocks the child's ability to keep writing. The queue is
// unbounded and append-only on the producer side; dequeueing is destructive
// and single-reader. When the output stream closes, the queue is marked
// closed so a blocked consumer wakes with an end-of-stream signal instead of
// hanging.
package tee

import (
	"sync"
	"time"
)

// LineQueue is an ordered queue of output lines produced by exactly one Tee
// and consumed by exactly one reader.
type LineQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	lines  []string
	closed bool
}

// NewLineQueue creates an empty, open queue.
func NewLineQueue() *LineQueue {
	q := &LineQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Append adds a line at the tail. Never blocks.
func (q *LineQueue) Append(line string) {
	q.mu.Lock()
	q.lines = append(q.lines, line)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Close marks the end of the stream and wakes any blocked consumer.
// Idempotent.
func (q *LineQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// TryDequeue pops the head line without blocking.
func (q *LineQueue) TryDequeue() (line string, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popLocked()
}

// Dequeue pops the head line, waiting up to timeout for one to arrive.
// Returns ok=false if the window elapsed or the queue closed while empty.
func (q *LineQueue) Dequeue(timeout time.Duration) (line string, ok bool) {
	deadline := time.Now().Add(timeout)

	// sync.Cond has no timed wait; a timer broadcast bounds the sleep. The
	// timer takes the lock first so the wakeup cannot slip between a deadline
	// check and the following Wait.
	timer := time.AfterFunc(timeout, func() {
		q.mu.Lock()
		q.mu.Unlock()
		q.cond.Broadcast()
	})
	defer timer.Stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.lines) == 0 && !q.closed && time.Now().Before(deadline) {
		q.cond.Wait()
	}
	return q.popLocked()
}

func (q *LineQueue) popLocked() (string, bool) {
	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines = q.lines[1:]
	return line, true
}

// Len returns the number of queued, not yet consumed lines.
func (q *LineQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}

// Closed reports whether the producer has marked end-of-stream.
func (q *LineQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Drained reports end-of-stream with nothing left to consume.
func (q *LineQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.lines) == 0
}
