package hub

import (
	"context"
	"iter"
	"sync"

	"github.com/roach88/tableside/internal/model"
)

// Subscription is one subscriber's view of a collection.
//
// Thread-safety: Next may be called from one goroutine at a time;
// Close may be called from any goroutine.
type Subscription struct {
	hub     *Hub
	kind    model.Kind
	filters []Filter

	mu        sync.Mutex
	pending   *Snapshot
	delivered string // digest of the last snapshot handed out
	lastSeq   int64
	force     bool
	closed    bool
	err       error

	signal chan struct{} // buffered, size 1
	done   chan struct{}
}

func newSubscription(h *Hub, kind model.Kind, filters []Filter) *Subscription {
	return &Subscription{
		hub:     h,
		kind:    kind,
		filters: filters,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Kind returns the subscribed collection.
func (s *Subscription) Kind() model.Kind {
	return s.kind
}

// Next blocks until a snapshot is available and returns it.
// A snapshot already in the mailbox is returned even after Close; after
// that Next returns ErrUnsubscribed.
func (s *Subscription) Next(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		if s.pending != nil {
			snap := *s.pending
			s.pending = nil
			s.delivered = snap.Digest
			s.lastSeq = snap.Seq
			s.mu.Unlock()
			return snap, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Snapshot{}, ErrUnsubscribed
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-s.signal:
		case <-s.done:
		}
	}
}

// Snapshots returns the subscription as a sequence. Every range over it
// starts with the current snapshot and then follows changes until ctx
// ends, the subscription closes, or the loop breaks. Err reports why the
// last range ended.
func (s *Subscription) Snapshots(ctx context.Context) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		s.restart()
		for {
			snap, err := s.Next(ctx)
			if err != nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				return
			}
			if !yield(snap) {
				return
			}
		}
	}
}

// Err returns the error that ended the last range over Snapshots, or nil.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close unsubscribes. Calling it more than once is safe.
func (s *Subscription) Close() {
	s.hub.remove(s)
	s.close()
}

// Unsubscribe is an alias for Close.
func (s *Subscription) Unsubscribe() {
	s.Close()
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// restart drops any undelivered snapshot and asks the hub for the
// current one, to be delivered even if unchanged.
func (s *Subscription) restart() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.err = nil
	s.force = true
	s.mu.Unlock()

	s.hub.Notify(s.kind)
}

// offer filters snap and places it in the mailbox.
// CRITICAL: Called only from the hub's Run goroutine.
func (s *Subscription) offer(snap Snapshot) error {
	for _, f := range s.filters {
		snap = f(snap)
	}
	digest, err := computeDigest(snap)
	if err != nil {
		return err
	}
	snap.Digest = digest

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || snap.Seq <= s.lastSeq {
		return nil
	}
	if !s.force {
		if s.pending != nil && s.pending.Digest == digest {
			return nil
		}
		if digest == s.delivered {
			// The collection changed back before the subscriber looked.
			s.pending = nil
			return nil
		}
	}

	s.pending = &snap
	s.force = false

	select {
	case s.signal <- struct{}{}:
	default:
	}
	return nil
}
