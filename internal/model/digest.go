package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for snapshot digests.
// Version suffix enables future algorithm migration.
const (
	DomainProducts = "tableside/products/v1"
	DomainTables   = "tableside/tables/v1"
	DomainOrders   = "tableside/orders/v1"
)

// DomainFor returns the digest domain for a collection kind.
func DomainFor(kind Kind) string {
	switch kind {
	case KindProducts:
		return DomainProducts
	case KindTables:
		return DomainTables
	default:
		return DomainOrders
	}
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest fingerprints v's canonical JSON under the given domain.
func Digest(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	return hashWithDomain(domain, data), nil
}

// Canonical implements Canonicaler.
func (p Product) Canonical() map[string]any {
	return map[string]any{
		"id":        p.ID,
		"name":      p.Name,
		"image_url": p.ImageURL,
		"quantity":  p.Quantity,
	}
}

// Canonical implements Canonicaler.
func (t Table) Canonical() map[string]any {
	return map[string]any{
		"id":           t.ID,
		"number":       t.Number,
		"status":       string(t.Status),
		"access_token": t.AccessToken,
	}
}

// Canonical implements Canonicaler.
func (o Order) Canonical() map[string]any {
	items := make([]any, len(o.Items))
	for i, it := range o.Items {
		items[i] = map[string]any{
			"product_id": it.ProductID,
			"name":       it.Name,
			"quantity":   it.Quantity,
		}
	}
	return map[string]any{
		"id":           o.ID,
		"table_number": o.TableNumber,
		"items":        items,
		"status":       string(o.Status),
		"created_at":   o.CreatedAt.UnixNano(),
		"seq":          o.Seq,
	}
}
