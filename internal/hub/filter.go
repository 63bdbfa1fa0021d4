package hub

import "github.com/roach88/tableside/internal/model"

// Filter narrows a snapshot for one subscriber. It must return a new
// Snapshot rather than modify the slices of its argument.
type Filter func(Snapshot) Snapshot

// ForTable keeps the orders of one table. On a tables subscription it
// keeps that table's record.
func ForTable(number int) Filter {
	return func(s Snapshot) Snapshot {
		s = OrdersWhere(func(o model.Order) bool { return o.TableNumber == number })(s)
		return TablesWhere(func(t model.Table) bool { return t.Number == number })(s)
	}
}

// ActiveOnly keeps Pending and Delivering orders.
func ActiveOnly() Filter {
	return OrdersWhere(model.Order.Active)
}

// LowStock keeps products at or below threshold.
func LowStock(threshold int) Filter {
	return ProductsWhere(func(p model.Product) bool { return p.LowStock(threshold) })
}

// OrdersWhere keeps the orders matching keep.
func OrdersWhere(keep func(model.Order) bool) Filter {
	return func(s Snapshot) Snapshot {
		s.Orders = where(s.Orders, keep)
		return s
	}
}

// ProductsWhere keeps the products matching keep.
func ProductsWhere(keep func(model.Product) bool) Filter {
	return func(s Snapshot) Snapshot {
		s.Products = where(s.Products, keep)
		return s
	}
}

// TablesWhere keeps the tables matching keep.
func TablesWhere(keep func(model.Table) bool) Filter {
	return func(s Snapshot) Snapshot {
		s.Tables = where(s.Tables, keep)
		return s
	}
}

func where[T any](in []T, keep func(T) bool) []T {
	if in == nil {
		return nil
	}
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
