package hub

import (
	"sync"

	"github.com/roach88/tableside/internal/model"
)

// noticeQueue is a thread-safe FIFO of collection change notices.
//
// A kind already waiting in the queue is not added again: one pending
// notice per kind is enough because the loop always loads the latest
// state. The queue therefore never holds more than len(model.Kinds)
// entries and Enqueue never blocks.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type noticeQueue struct {
	mu      sync.Mutex
	kinds   []model.Kind
	pending map[model.Kind]bool
	closed  bool
	signal  chan struct{} // Signals notice availability (buffered, size 1)
}

func newNoticeQueue() *noticeQueue {
	return &noticeQueue{
		kinds:   make([]model.Kind, 0, len(model.Kinds)),
		pending: make(map[model.Kind]bool, len(model.Kinds)),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds kind unless it is already pending.
// Returns false if the queue is closed.
func (q *noticeQueue) Enqueue(kind model.Kind) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if q.pending[kind] {
		return true
	}

	q.pending[kind] = true
	q.kinds = append(q.kinds, kind)

	// Non-blocking: buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front notice without blocking.
func (q *noticeQueue) TryDequeue() (model.Kind, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.kinds) == 0 {
		return "", false
	}
	kind := q.kinds[0]
	q.kinds = append(q.kinds[:0], q.kinds[1:]...)
	delete(q.pending, kind)
	return kind, true
}

// Wait returns a channel that signals when notices may be available.
// The channel is closed when the queue is closed.
func (q *noticeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending notices.
func (q *noticeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.kinds)
}

// Close stops accepting notices and wakes any waiter.
func (q *noticeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
