package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int64", int64(-100), "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"sorted keys", map[string]any{"zebra": 1, "alpha": 2, "beta": 3}, `{"alpha":2,"beta":3,"zebra":1}`},
		{"no html escaping", "<b>&</b>", `"<b>&</b>"`},
		{"line separator literal", "a\u2028b", "\"a\u2028b\""},
		{"escaped backslash kept", `a\u2028b`, `"a\\u2028b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(1.5)
	assert.Error(t, err)

	_, err = MarshalCanonical(map[string]any{"x": []any{struct{}{}}})
	assert.Error(t, err)
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "é" as e + combining acute accent normalizes to the precomposed form.
	decomposed, err := MarshalCanonical("cafe\u0301")
	require.NoError(t, err)
	composed, err := MarshalCanonical("caf\u00e9")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_Order(t *testing.T) {
	o := Order{
		ID:          "o-1",
		TableNumber: 3,
		Items:       []LineItem{{ProductID: "p-1", Name: "Burger", Quantity: 2}},
		Status:      OrderPending,
		CreatedAt:   time.Unix(0, 42),
		Seq:         1,
	}
	data, err := MarshalCanonical(o)
	require.NoError(t, err)
	assert.Equal(t,
		`{"created_at":42,"id":"o-1","items":[{"name":"Burger","product_id":"p-1","quantity":2}],"seq":1,"status":"Pending","table_number":3}`,
		string(data))
}

func TestDigest_StableAndDomainSeparated(t *testing.T) {
	products := []any{Product{ID: "p-1", Name: "Soup", Quantity: 4}}

	d1, err := Digest(DomainProducts, products)
	require.NoError(t, err)
	d2, err := Digest(DomainProducts, []any{Product{ID: "p-1", Name: "Soup", Quantity: 4}})
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)

	other, err := Digest(DomainOrders, products)
	require.NoError(t, err)
	assert.NotEqual(t, d1, other)

	changed, err := Digest(DomainProducts, []any{Product{ID: "p-1", Name: "Soup", Quantity: 3}})
	require.NoError(t, err)
	assert.NotEqual(t, d1, changed)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "caf\u00e9", NormalizeName("  cafe\u0301 "))
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("order")
	assert.Equal(t, "order-1", gen.NewID())
	assert.Equal(t, "order-2", gen.NewID())
}

func TestUUIDv7Generator(t *testing.T) {
	a := UUIDv7Generator{}.NewID()
	b := UUIDv7Generator{}.NewID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
