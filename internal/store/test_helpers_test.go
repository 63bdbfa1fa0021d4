package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tableside/internal/model"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOrder creates a Pending order with one line item.
func createTestOrder(id string, table int, seq int64) model.Order {
	return model.Order{
		ID:          id,
		TableNumber: table,
		Items:       []model.LineItem{{ProductID: "p-1", Name: "Soup", Quantity: 1}},
		Status:      model.OrderPending,
		CreatedAt:   time.Unix(0, seq*1000).UTC(),
		Seq:         seq,
	}
}

// insertTestOrder inserts o and fails the test if the store assigned a
// different seq than the one o was built with.
func insertTestOrder(t *testing.T, s *Store, o model.Order) {
	t.Helper()
	got, err := s.InsertOrder(context.Background(), o)
	if err != nil {
		t.Fatalf("InsertOrder(%s) failed: %v", o.ID, err)
	}
	if got.Seq != o.Seq {
		t.Fatalf("InsertOrder(%s) seq = %d, want %d", o.ID, got.Seq, o.Seq)
	}
}

// importTestOrder writes o as is, bypassing seq and createdAt assignment.
func importTestOrder(t *testing.T, s *Store, o model.Order) {
	t.Helper()
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		t.Fatalf("marshalItems failed: %v", err)
	}
	_, err = s.DB().Exec(`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.TableNumber, itemsJSON, string(o.Status), toUnixNano(o.CreatedAt), o.Seq)
	if err != nil {
		t.Fatalf("import order %s failed: %v", o.ID, err)
	}
}
