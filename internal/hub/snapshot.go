package hub

import (
	"fmt"

	"github.com/roach88/tableside/internal/model"
)

// Snapshot is the full contents of one collection at a point in time.
// Only the slice matching Kind is populated.
//
// Slices may be shared between subscribers and must not be modified.
type Snapshot struct {
	Kind     model.Kind
	Seq      int64
	Digest   string
	Products []model.Product
	Tables   []model.Table
	Orders   []model.Order
}

// Len returns the number of records in the snapshot.
func (s Snapshot) Len() int {
	switch s.Kind {
	case model.KindProducts:
		return len(s.Products)
	case model.KindTables:
		return len(s.Tables)
	default:
		return len(s.Orders)
	}
}

// computeDigest fingerprints the records of s. Seq is excluded, so two
// loads of unchanged data share a digest.
func computeDigest(s Snapshot) (string, error) {
	var records []any
	switch s.Kind {
	case model.KindProducts:
		records = make([]any, len(s.Products))
		for i, p := range s.Products {
			records[i] = p
		}
	case model.KindTables:
		records = make([]any, len(s.Tables))
		for i, t := range s.Tables {
			records[i] = t
		}
	case model.KindOrders:
		records = make([]any, len(s.Orders))
		for i, o := range s.Orders {
			records[i] = o
		}
	default:
		return "", fmt.Errorf("unknown collection %q", s.Kind)
	}
	return model.Digest(model.DomainFor(s.Kind), records)
}
