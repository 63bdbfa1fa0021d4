package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/tableside/internal/model"
)

// ErrUnsubscribed is returned by Subscription.Next once the subscription
// is closed, or the hub has stopped, and its mailbox is empty.
var ErrUnsubscribed = errors.New("subscription closed")

// ErrStopped is returned by Subscribe after the hub has stopped.
var ErrStopped = errors.New("hub stopped")

// Loader reads full collections. Implemented by *store.Store.
type Loader interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListTables(ctx context.Context) ([]model.Table, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
}

// Hub delivers collection snapshots to subscribers.
type Hub struct {
	loader Loader
	logger *slog.Logger
	clock  *Clock
	queue  *noticeQueue

	mu      sync.Mutex
	subs    map[model.Kind]map[*Subscription]struct{}
	stopped bool
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

// WithClock sets the sequence clock. Used to resume numbering.
func WithClock(clock *Clock) Option {
	return func(h *Hub) {
		h.clock = clock
	}
}

// New creates a Hub that loads snapshots through loader.
// Call Run to start delivering.
func New(loader Loader, opts ...Option) *Hub {
	h := &Hub{
		loader: loader,
		logger: slog.Default(),
		clock:  NewClock(),
		queue:  newNoticeQueue(),
		subs:   make(map[model.Kind]map[*Subscription]struct{}, len(model.Kinds)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Notify records that kind changed. It never blocks; notices for the
// same kind that arrive before the loop gets to them collapse into one.
// Its signature matches store.Listener.
func (h *Hub) Notify(kind model.Kind) {
	h.queue.Enqueue(kind)
}

// Subscribe registers interest in kind. The first snapshot delivered is
// the current state of the collection after filters are applied.
func (h *Hub) Subscribe(kind model.Kind, filters ...Filter) (*Subscription, error) {
	if _, err := model.ParseKind(string(kind)); err != nil {
		return nil, err
	}

	s := newSubscription(h, kind, filters)

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return nil, ErrStopped
	}
	if h.subs[kind] == nil {
		h.subs[kind] = make(map[*Subscription]struct{})
	}
	h.subs[kind][s] = struct{}{}
	h.mu.Unlock()

	s.restart()
	h.logger.Debug("subscribed", "kind", string(kind), "subscribers", h.Subscribers(kind))
	return s, nil
}

// Subscribers returns the number of open subscriptions to kind.
func (h *Hub) Subscribers(kind model.Kind) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[kind])
}

// Seq returns the sequence number of the latest published snapshot.
func (h *Hub) Seq() int64 {
	return h.clock.Current()
}

// Run delivers snapshots until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. Sequence numbers
// are assigned here, which is what keeps each subscriber's view ordered.
//
// A failed load is logged and skipped; the next notice for that kind
// retries with fresh state. When Run returns every subscription is
// closed.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Info("hub starting")
	defer h.shutdown()

	for {
		kind, ok := h.queue.TryDequeue()
		if ok {
			if err := h.publish(ctx, kind); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				h.logger.Error("publish snapshot failed", "kind", string(kind), "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			h.logger.Info("hub stopping: context cancelled")
			return ctx.Err()

		case <-h.queue.Wait():
			// The signal channel closes when the queue is closed.
			if h.isStopping() {
				h.logger.Info("hub stopping: stopped")
				return nil
			}
		}
	}
}

// Stop makes Run return and refuses new subscriptions, whether or not
// Run has started. Pending notices are discarded.
func (h *Hub) Stop() {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	h.queue.Close()
}

func (h *Hub) isStopping() bool {
	h.queue.mu.Lock()
	defer h.queue.mu.Unlock()
	return h.queue.closed
}

func (h *Hub) shutdown() {
	h.queue.Close()

	h.mu.Lock()
	h.stopped = true
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.subs = make(map[model.Kind]map[*Subscription]struct{})
	h.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[s.kind], s)
}

// publish loads kind once and offers the result to each subscriber.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (h *Hub) publish(ctx context.Context, kind model.Kind) error {
	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs[kind]))
	for s := range h.subs[kind] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	if len(subs) == 0 {
		return nil
	}

	snap, err := h.load(ctx, kind)
	if err != nil {
		return err
	}
	snap.Seq = h.clock.Next()

	for _, s := range subs {
		if err := s.offer(snap); err != nil {
			h.logger.Error("offer snapshot failed", "kind", string(kind), "seq", snap.Seq, "error", err)
		}
	}
	return nil
}

func (h *Hub) load(ctx context.Context, kind model.Kind) (Snapshot, error) {
	snap := Snapshot{Kind: kind}
	var err error
	switch kind {
	case model.KindProducts:
		snap.Products, err = h.loader.ListProducts(ctx)
	case model.KindTables:
		snap.Tables, err = h.loader.ListTables(ctx)
	case model.KindOrders:
		snap.Orders, err = h.loader.ListOrders(ctx)
	default:
		err = fmt.Errorf("unknown collection %q", kind)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("load %s: %w", kind, err)
	}
	return snap, nil
}
