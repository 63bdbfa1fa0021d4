package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderPending, OrderDelivering, true},
		{OrderDelivering, OrderServed, true},
		{OrderPending, OrderCancelled, true},
		{OrderDelivering, OrderCancelled, true},
		{OrderPending, OrderServed, false},
		{OrderServed, OrderDelivering, false},
		{OrderServed, OrderServed, false},
		{OrderDelivering, OrderPending, false},
		{OrderCancelled, OrderPending, false},
		{OrderCancelled, OrderServed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestOrderStatus_ActiveAndTerminal(t *testing.T) {
	assert.True(t, OrderPending.Active())
	assert.True(t, OrderDelivering.Active())
	assert.False(t, OrderServed.Active())
	assert.False(t, OrderCancelled.Active())

	assert.True(t, OrderServed.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderPending.Terminal())
}

func TestParseOrderStatus(t *testing.T) {
	st, err := ParseOrderStatus("delivering")
	require.NoError(t, err)
	assert.Equal(t, OrderDelivering, st)

	_, err = ParseOrderStatus("eaten")
	require.Error(t, err)
	assert.Equal(t, ErrorCode(""), CodeOf(err), "not a domain error")
	assert.Contains(t, err.Error(), `"eaten"`)
}

func TestParseTableStatus(t *testing.T) {
	st, err := ParseTableStatus(" Occupied ")
	require.NoError(t, err)
	assert.Equal(t, TableOccupied, st)

	_, err = ParseTableStatus("reserved")
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Orders")
	require.NoError(t, err)
	assert.Equal(t, KindOrders, k)

	_, err = ParseKind("customers")
	assert.Error(t, err)
}

func TestProduct_LowStock(t *testing.T) {
	assert.True(t, Product{Quantity: 10}.LowStock(DefaultLowStockThreshold))
	assert.False(t, Product{Quantity: 11}.LowStock(DefaultLowStockThreshold))
}
