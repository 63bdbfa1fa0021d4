package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/model"
)

func TestOrders_InsertGetList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	insertTestOrder(t, s, createTestOrder("o-1", 3, 1))
	insertTestOrder(t, s, createTestOrder("o-2", 5, 2))

	got, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, createTestOrder("o-1", 3, 1), got)

	list, err := s.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o-2", list[0].ID, "newest first")

	byTable, err := s.ListOrdersByTable(ctx, 3)
	require.NoError(t, err)
	require.Len(t, byTable, 1)
	assert.Equal(t, "o-1", byTable[0].ID)

	numbers, err := s.OrderTableNumbers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, numbers)

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLatestActiveOrder_TieBreakBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	same := time.Unix(100, 0).UTC()
	first := createTestOrder("o-1", 3, 1)
	first.CreatedAt = same
	second := createTestOrder("o-2", 3, 2)
	second.CreatedAt = same
	served := createTestOrder("o-3", 3, 3)
	served.CreatedAt = same.Add(time.Second)
	served.Status = model.OrderServed

	// InsertOrder never produces a createdAt tie; imported rows can.
	importTestOrder(t, s, first)
	importTestOrder(t, s, second)
	importTestOrder(t, s, served)

	latest, err := s.LatestActiveOrder(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "o-2", latest.ID)

	none, err := s.LatestActiveOrder(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, none)

	active, err := s.ListActiveOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestUpdateOrder_ReadModifyWrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestOrder(t, s, createTestOrder("o-1", 3, 1))

	updated, err := s.UpdateOrder(ctx, "o-1", func(current model.Order) (model.OrderStatus, error) {
		assert.Equal(t, model.OrderPending, current.Status)
		return model.OrderDelivering, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivering, updated.Status)

	_, err = s.UpdateOrder(ctx, "o-1", func(model.Order) (model.OrderStatus, error) {
		return "", model.ErrInvalidTransition
	})
	assert.ErrorIs(t, err, model.ErrInvalidTransition)

	got, err := s.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, model.OrderDelivering, got.Status, "aborted update leaves status unchanged")

	_, err = s.UpdateOrder(ctx, "missing", func(model.Order) (model.OrderStatus, error) {
		return model.OrderServed, nil
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteOrdersByTable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestOrder(t, s, createTestOrder("o-1", 3, 1))
	insertTestOrder(t, s, createTestOrder("o-2", 3, 2))
	insertTestOrder(t, s, createTestOrder("o-3", 4, 3))

	removed, err := s.DeleteOrdersByTable(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = s.DeleteOrdersByTable(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	// seq keeps counting past the highest remaining order.
	insertTestOrder(t, s, createTestOrder("o-4", 3, 4))
}

func TestDeleteOrdersByTable_NothingRemovedIsSilent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestOrder(t, s, createTestOrder("o-1", 4, 1))

	before, err := s.Versions(ctx)
	require.NoError(t, err)
	calls := 0
	cancel := s.Listen(func(model.Kind) { calls++ })
	defer cancel()

	removed, err := s.DeleteOrdersByTable(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Zero(t, calls)

	after, err := s.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInsertOrder_AssignsCounters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestOrder("o-1", 3, 1)
	first.CreatedAt = time.Unix(100, 0).UTC()
	first.Seq = 42
	got, err := s.InsertOrder(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Seq, "caller seq is ignored")
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	// A clock behind the newest order.
	behind := createTestOrder("o-2", 4, 0)
	behind.CreatedAt = time.Unix(50, 0).UTC()
	got, err = s.InsertOrder(ctx, behind)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Seq)
	assert.Equal(t, first.CreatedAt.Add(time.Nanosecond), got.CreatedAt)

	stored, err := s.GetOrder(ctx, "o-2")
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestInsertOrder_SharedAcrossHandles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()

	same := time.Unix(100, 0).UTC()
	oa := createTestOrder("o-a", 3, 0)
	oa.CreatedAt = same
	ob := createTestOrder("o-b", 4, 0)
	ob.CreatedAt = same

	gotA, err := a.InsertOrder(ctx, oa)
	require.NoError(t, err)
	gotB, err := b.InsertOrder(ctx, ob)
	require.NoError(t, err)

	assert.Equal(t, int64(1), gotA.Seq)
	assert.Equal(t, int64(2), gotB.Seq)
	assert.True(t, gotB.CreatedAt.After(gotA.CreatedAt))
}

func TestInsertOrderExclusive(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	placed, err := s.InsertOrderExclusive(ctx, createTestOrder("o-1", 3, 1))
	require.NoError(t, err)

	_, err = s.InsertOrderExclusive(ctx, createTestOrder("o-2", 3, 2))
	require.ErrorIs(t, err, model.ErrActiveOrderExists)
	var merr *model.Error
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, placed.ID, merr.Details["order_id"])

	_, err = s.GetOrder(ctx, "o-2")
	assert.ErrorIs(t, err, model.ErrNotFound, "rejected order is not written")

	// Other tables are unaffected.
	_, err = s.InsertOrderExclusive(ctx, createTestOrder("o-3", 4, 2))
	require.NoError(t, err)

	_, err = s.UpdateOrder(ctx, "o-1", func(model.Order) (model.OrderStatus, error) {
		return model.OrderCancelled, nil
	})
	require.NoError(t, err)
	got, err := s.InsertOrderExclusive(ctx, createTestOrder("o-4", 3, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Seq)
}
