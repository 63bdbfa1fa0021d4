// Package hub fans collection changes out to subscribers as full
// snapshots.
//
// # Delivery model
//
// Writers call Notify(kind) after they commit. Notify only enqueues; the
// Run loop is the single writer that loads the collection, stamps the
// snapshot with the next sequence number, and offers it to every
// subscriber of that kind. Each subscriber applies its own filters and
// keeps a one-slot mailbox:
//
//   - a newer snapshot replaces an undelivered older one (coalescing)
//   - a snapshot whose digest equals the last one delivered is dropped
//   - sequence numbers seen by one subscriber only ever increase
//
// Subscribers never receive deltas. Every snapshot is the whole
// (filtered) collection at a point after the notifying commit.
//
// # Restart
//
// Ranging over Subscription.Snapshots again starts over with the
// current snapshot, even if it is identical to the last one delivered.
package hub
