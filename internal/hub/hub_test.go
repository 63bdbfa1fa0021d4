package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/model"
	"github.com/roach88/tableside/internal/store"
	"github.com/roach88/tableside/internal/testutil"
)

// startHub runs h until the test ends.
func startHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// newStoreHub wires a hub to a fresh store the way serve does.
func newStoreHub(t *testing.T) (*Hub, *store.Store) {
	t.Helper()
	st := testutil.OpenStore(t)
	h := New(st, WithLogger(testutil.DiscardLogger()))
	cancel := st.Listen(h.Notify)
	t.Cleanup(cancel)
	startHub(t, h)
	return h, st
}

func next(t *testing.T, s *Subscription) Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := s.Next(ctx)
	require.NoError(t, err)
	return snap
}

func requireNothingPending(t *testing.T, s *Subscription) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribe_DeliversCurrentSnapshot(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()
	require.NoError(t, st.InsertProduct(ctx, model.Product{ID: "p-1", Name: "Soup", Quantity: 4}))

	sub, err := h.Subscribe(model.KindProducts)
	require.NoError(t, err)
	defer sub.Close()

	snap := next(t, sub)
	assert.Equal(t, model.KindProducts, snap.Kind)
	assert.Equal(t, []model.Product{{ID: "p-1", Name: "Soup", Quantity: 4}}, snap.Products)
	assert.NotEmpty(t, snap.Digest)
	assert.Positive(t, snap.Seq)
}

func TestSubscribe_UnknownKind(t *testing.T) {
	h := New(testutil.OpenStore(t))
	_, err := h.Subscribe(model.Kind("menus"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestNotify_RedeliversFullSnapshot(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()
	require.NoError(t, st.InsertProduct(ctx, model.Product{ID: "p-1", Name: "Soup", Quantity: 4}))
	require.NoError(t, st.InsertProduct(ctx, model.Product{ID: "p-2", Name: "Tea", Quantity: 9}))

	sub, err := h.Subscribe(model.KindProducts)
	require.NoError(t, err)
	defer sub.Close()
	first := next(t, sub)

	_, err = st.DecrementProduct(ctx, "p-1", 1)
	require.NoError(t, err)

	second := next(t, sub)
	assert.Greater(t, second.Seq, first.Seq)
	require.Len(t, second.Products, 2, "snapshots are never deltas")
	assert.Equal(t, 3, second.Products[0].Quantity)
	assert.NotEqual(t, first.Digest, second.Digest)
}

func TestNotify_UnchangedDataIsDeduplicated(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()
	require.NoError(t, st.InsertTable(ctx, model.Table{ID: "t-1", Number: 1, Status: model.TableAvailable}))

	sub, err := h.Subscribe(model.KindTables)
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	h.Notify(model.KindTables)
	h.Notify(model.KindTables)
	requireNothingPending(t, sub)
}

func TestNotify_OnlyMatchingKind(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()

	orders, err := h.Subscribe(model.KindOrders)
	require.NoError(t, err)
	defer orders.Close()
	next(t, orders)

	require.NoError(t, st.InsertProduct(ctx, model.Product{ID: "p-1", Name: "Soup", Quantity: 4}))
	requireNothingPending(t, orders)
}

func TestNotify_NeverBlocks(t *testing.T) {
	h := New(testutil.OpenStore(t))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			h.Notify(model.Kinds[i%len(model.Kinds)])
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Notify blocked without a running loop")
	}
	assert.LessOrEqual(t, h.queue.Len(), len(model.Kinds))
}

func TestOffer_CoalescesUndelivered(t *testing.T) {
	h := New(testutil.OpenStore(t))
	sub := newSubscription(h, model.KindProducts, nil)

	for qty := 1; qty <= 3; qty++ {
		require.NoError(t, sub.offer(Snapshot{
			Kind:     model.KindProducts,
			Seq:      int64(qty),
			Products: []model.Product{{ID: "p-1", Name: "Soup", Quantity: qty}},
		}))
	}

	snap := next(t, sub)
	assert.Equal(t, int64(3), snap.Seq)
	assert.Equal(t, 3, snap.Products[0].Quantity)
	requireNothingPending(t, sub)
}

func TestOffer_NeverDeliversOlderSeq(t *testing.T) {
	h := New(testutil.OpenStore(t))
	sub := newSubscription(h, model.KindProducts, nil)

	require.NoError(t, sub.offer(Snapshot{Kind: model.KindProducts, Seq: 5, Products: []model.Product{{ID: "a", Name: "A"}}}))
	assert.Equal(t, int64(5), next(t, sub).Seq)

	require.NoError(t, sub.offer(Snapshot{Kind: model.KindProducts, Seq: 4, Products: []model.Product{{ID: "b", Name: "B"}}}))
	requireNothingPending(t, sub)
}

func TestOffer_ChangeAndRevertBeforeDelivery(t *testing.T) {
	h := New(testutil.OpenStore(t))
	sub := newSubscription(h, model.KindProducts, nil)
	soup := func(qty int) []model.Product { return []model.Product{{ID: "p-1", Name: "Soup", Quantity: qty}} }

	require.NoError(t, sub.offer(Snapshot{Kind: model.KindProducts, Seq: 1, Products: soup(1)}))
	next(t, sub)

	require.NoError(t, sub.offer(Snapshot{Kind: model.KindProducts, Seq: 2, Products: soup(2)}))
	require.NoError(t, sub.offer(Snapshot{Kind: model.KindProducts, Seq: 3, Products: soup(1)}))
	requireNothingPending(t, sub)
}

func TestFilters(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()

	order := func(id string, table int, seq int64, status model.OrderStatus) model.Order {
		return model.Order{
			ID:          id,
			TableNumber: table,
			Items:       []model.LineItem{{ProductID: "p-1", Name: "Soup", Quantity: 1}},
			Status:      status,
			CreatedAt:   testutil.Epoch.Add(time.Duration(seq) * time.Second),
			Seq:         seq,
		}
	}
	for _, o := range []model.Order{
		order("o-1", 3, 1, model.OrderServed),
		order("o-2", 3, 2, model.OrderPending),
		order("o-3", 4, 3, model.OrderPending),
	} {
		_, err := st.InsertOrder(ctx, o)
		require.NoError(t, err)
	}

	table3, err := h.Subscribe(model.KindOrders, ForTable(3))
	require.NoError(t, err)
	defer table3.Close()
	active3, err := h.Subscribe(model.KindOrders, ForTable(3), ActiveOnly())
	require.NoError(t, err)
	defer active3.Close()

	ids := func(s Snapshot) []string {
		var out []string
		for _, o := range s.Orders {
			out = append(out, o.ID)
		}
		return out
	}
	assert.Equal(t, []string{"o-2", "o-1"}, ids(next(t, table3)))
	assert.Equal(t, []string{"o-2"}, ids(next(t, active3)))

	// A change to another table does not disturb table 3 subscribers.
	_, err = st.UpdateOrder(ctx, "o-3", func(model.Order) (model.OrderStatus, error) {
		return model.OrderDelivering, nil
	})
	require.NoError(t, err)
	requireNothingPending(t, table3)
	requireNothingPending(t, active3)

	_, err = st.UpdateOrder(ctx, "o-2", func(model.Order) (model.OrderStatus, error) {
		return model.OrderDelivering, nil
	})
	require.NoError(t, err)
	snap := next(t, table3)
	assert.Equal(t, model.OrderDelivering, snap.Orders[0].Status)
}

func TestLowStockFilter(t *testing.T) {
	s := LowStock(10)(Snapshot{
		Kind: model.KindProducts,
		Products: []model.Product{
			{ID: "a", Quantity: 11},
			{ID: "b", Quantity: 10},
			{ID: "c", Quantity: 0},
		},
	})
	require.Len(t, s.Products, 2)
	assert.Equal(t, "b", s.Products[0].ID)
	assert.Equal(t, "c", s.Products[1].ID)
}

func TestClose_IdempotentAndDrainsMailbox(t *testing.T) {
	h := New(testutil.OpenStore(t))
	sub := newSubscription(h, model.KindTables, nil)
	require.NoError(t, sub.offer(Snapshot{Kind: model.KindTables, Seq: 1, Tables: []model.Table{}}))

	sub.Close()
	sub.Close()
	sub.Unsubscribe()

	snap, err := sub.Next(context.Background())
	require.NoError(t, err, "an already-mailboxed snapshot is still returned")
	assert.Equal(t, int64(1), snap.Seq)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrUnsubscribed)
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrUnsubscribed)
}

func TestClose_StopsDelivery(t *testing.T) {
	h, st := newStoreHub(t)
	sub, err := h.Subscribe(model.KindProducts)
	require.NoError(t, err)
	next(t, sub)

	sub.Close()
	assert.Equal(t, 0, h.Subscribers(model.KindProducts))

	require.NoError(t, st.InsertProduct(context.Background(), model.Product{ID: "p-1", Name: "Soup"}))
	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrUnsubscribed)
}

func TestSnapshots_RestartDeliversCurrent(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()
	require.NoError(t, st.InsertProduct(ctx, model.Product{ID: "p-1", Name: "Soup", Quantity: 2}))

	sub, err := h.Subscribe(model.KindProducts)
	require.NoError(t, err)
	defer sub.Close()

	rangeOnce := func() Snapshot {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		for snap := range sub.Snapshots(ctx) {
			return snap
		}
		t.Fatalf("sequence ended: %v", sub.Err())
		return Snapshot{}
	}

	first := rangeOnce()
	second := rangeOnce()
	assert.Equal(t, first.Digest, second.Digest, "restart repeats the current state")
	assert.Greater(t, second.Seq, first.Seq)

	_, err = st.DecrementProduct(ctx, "p-1", 2)
	require.NoError(t, err)
	third := rangeOnce()
	assert.Equal(t, 0, third.Products[0].Quantity)
}

func TestSnapshots_FollowsChanges(t *testing.T) {
	h, st := newStoreHub(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := h.Subscribe(model.KindTables)
	require.NoError(t, err)
	defer sub.Close()

	var got []int
	for snap := range sub.Snapshots(ctx) {
		got = append(got, snap.Len())
		if snap.Len() == 2 {
			break
		}
		n := snap.Len() + 1
		require.NoError(t, st.InsertTable(ctx, model.Table{ID: fmt.Sprintf("t-%d", n), Number: n, Status: model.TableAvailable}))
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestRun_StopClosesSubscriptions(t *testing.T) {
	h := New(testutil.OpenStore(t), WithLogger(testutil.DiscardLogger()))
	sub, err := h.Subscribe(model.KindOrders)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()
	next(t, sub)

	h.Stop()
	require.NoError(t, <-done)

	_, err = sub.Next(context.Background())
	assert.ErrorIs(t, err, ErrUnsubscribed)

	_, err = h.Subscribe(model.KindOrders)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestStop_BeforeRun(t *testing.T) {
	h := New(testutil.OpenStore(t), WithLogger(testutil.DiscardLogger()))
	h.Stop()

	_, err := h.Subscribe(model.KindProducts)
	assert.ErrorIs(t, err, ErrStopped)

	done := make(chan error, 1)
	go func() { done <- h.Run(context.Background()) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestRun_ContextCancel(t *testing.T) {
	h := New(testutil.OpenStore(t), WithLogger(testutil.DiscardLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.Run(ctx), context.Canceled)
}

// flakyLoader fails the first products load.
type flakyLoader struct {
	*store.Store
	mu     sync.Mutex
	failed bool
}

func (l *flakyLoader) ListProducts(ctx context.Context) ([]model.Product, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.failed {
		l.failed = true
		return nil, errors.New("disk on fire")
	}
	return l.Store.ListProducts(ctx)
}

func TestRun_LoadFailureIsNotFatal(t *testing.T) {
	st := testutil.OpenStore(t)
	h := New(&flakyLoader{Store: st}, WithLogger(testutil.DiscardLogger()))
	st.Listen(h.Notify)
	startHub(t, h)

	sub, err := h.Subscribe(model.KindProducts)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, st.InsertProduct(context.Background(), model.Product{ID: "p-1", Name: "Soup", Quantity: 1}))
	snap := next(t, sub)
	assert.Len(t, snap.Products, 1)
}

func TestManySubscribers_SeqMonotonic(t *testing.T) {
	h, st := newStoreHub(t)
	ctx := context.Background()
	require.NoError(t, st.InsertProduct(ctx, model.Product{ID: "p-1", Name: "Soup", Quantity: 100}))

	const subscribers = 5
	subs := make([]*Subscription, subscribers)
	for i := range subs {
		s, err := h.Subscribe(model.KindProducts)
		require.NoError(t, err)
		defer s.Close()
		subs[i] = s
	}

	var wg sync.WaitGroup
	for _, s := range subs {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			var last int64
			for {
				snap, err := s.Next(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Greater(t, snap.Seq, last)
				last = snap.Seq
				if snap.Products[0].Quantity == 80 {
					return
				}
			}
		}(s)
	}

	for i := 0; i < 20; i++ {
		_, err := st.DecrementProduct(ctx, "p-1", 1)
		require.NoError(t, err)
	}
	wg.Wait()
}
