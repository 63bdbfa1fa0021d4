package hub

import "sync/atomic"

// Clock stamps snapshots with strictly increasing sequence numbers.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The hub's single-writer loop is its only caller in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
