package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/tableside/internal/model"
)

// marshalItems converts line items to JSON TEXT for the orders.items column.
func marshalItems(items []model.LineItem) (string, error) {
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal items: %w", err)
	}
	return string(data), nil
}

// unmarshalItems parses the orders.items column.
func unmarshalItems(data string) ([]model.LineItem, error) {
	if data == "" || data == "null" {
		return []model.LineItem{}, nil
	}
	var items []model.LineItem
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	return items, nil
}

func toUnixNano(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
