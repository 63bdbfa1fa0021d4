package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/tableside/internal/model"
)

func TestNoticeQueue_FIFO(t *testing.T) {
	q := newNoticeQueue()
	q.Enqueue(model.KindOrders)
	q.Enqueue(model.KindProducts)

	kind, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, model.KindOrders, kind)

	kind, ok = q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, model.KindProducts, kind)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestNoticeQueue_CoalescesPendingKind(t *testing.T) {
	q := newNoticeQueue()
	for i := 0; i < 5; i++ {
		assert.True(t, q.Enqueue(model.KindTables))
	}
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	q.Enqueue(model.KindTables)
	assert.Equal(t, 1, q.Len(), "a dequeued kind can be queued again")
}

func TestNoticeQueue_Close(t *testing.T) {
	q := newNoticeQueue()
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(model.KindOrders))
	_, open := <-q.Wait()
	assert.False(t, open, "Wait channel is closed")
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}
