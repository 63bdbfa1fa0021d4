package model

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Kind names an observable collection.
type Kind string

const (
	KindProducts Kind = "products"
	KindTables   Kind = "tables"
	KindOrders   Kind = "orders"
)

// Kinds lists every observable collection in a stable order.
var Kinds = []Kind{KindProducts, KindTables, KindOrders}

// ParseKind converts a user-supplied collection name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindProducts:
		return KindProducts, nil
	case KindTables:
		return KindTables, nil
	case KindOrders:
		return KindOrders, nil
	}
	return "", Errorf(ErrCodeNotFound, "unknown collection %q", s)
}

// DefaultLowStockThreshold matches the ordering screen's "low on stock" badge.
const DefaultLowStockThreshold = 10

// Product is a catalog entry with its quantity on hand.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
	Quantity int    `json:"quantity"`
}

// LowStock reports whether the product is at or below threshold.
func (p Product) LowStock(threshold int) bool {
	return p.Quantity <= threshold
}

// TableStatus is the occupancy of a table.
type TableStatus string

const (
	TableAvailable TableStatus = "Available"
	TableOccupied  TableStatus = "Occupied"
)

// Valid reports whether s is a known table status.
func (s TableStatus) Valid() bool {
	return s == TableAvailable || s == TableOccupied
}

// ParseTableStatus accepts status names case-insensitively.
func ParseTableStatus(s string) (TableStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available":
		return TableAvailable, nil
	case "occupied":
		return TableOccupied, nil
	}
	return "", Errorf(ErrCodeInvalidTable, "unknown table status %q", s)
}

// Table is a physical table in the restaurant.
type Table struct {
	ID          string      `json:"id"`
	Number      int         `json:"number"`
	Status      TableStatus `json:"status"`
	AccessToken string      `json:"access_token,omitempty"`
}

// LineItem is one product/quantity pair of an order. Name is captured at
// placement time so the order stays readable after the product changes.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
}

// RequestedItem is a product/quantity pair submitted by a customer.
type RequestedItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Order is a customer order for one table.
type Order struct {
	ID          string      `json:"id"`
	TableNumber int         `json:"table_number"`
	Items       []LineItem  `json:"items"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Seq         int64       `json:"seq"`
}

// Active reports whether the order blocks new placements for its table.
func (o Order) Active() bool {
	return o.Status.Active()
}

// NormalizeName trims and NFC-normalizes a display name so equal names
// compare byte-equal regardless of how they were typed.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
