package engine

import (
	"sync"

	"github.com/oncomatch/oncomatch/internal/criteria"
)

// trialTask is one unit of matching work: a single trial, its parsed
// criteria tree, and its position in the batch. Order carries the
// original retrieval position so results can be reassembled
// deterministically regardless of which worker finishes first.
type trialTask struct {
	Order    int
	Protocol string
	Trial    map[string]any
	Tree     criteria.Criterion
}

// taskQueue is a thread-safe FIFO queue feeding the worker pool.
//
// Thread-safety is provided so the dispatching goroutine can enqueue
// while workers dequeue. The queue uses a channel for signaling to
// enable context-aware waiting in workers (prevents goroutine hangs on
// context cancellation).
type taskQueue struct {
	mu     sync.Mutex
	tasks  []trialTask
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

// newTaskQueue creates an empty task queue.
func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]trialTask, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t trialTask) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, t)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (trialTask{}, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (trialTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return trialTask{}, false
	}

	t := q.tasks[0]

	// Nil out the slot so the backing array does not retain the trial
	// document past its processing.
	q.tasks[0] = trialTask{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return t, true
}

// Drained reports whether the queue is closed and empty.
func (q *taskQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.tasks) == 0
}

// Wait returns a channel that signals when tasks may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Try TryDequeue
//	}
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close signals that no more tasks will be enqueued.
// Wakes any blocked workers by closing the signal channel.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
