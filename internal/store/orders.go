package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tableside/internal/model"
)

const orderColumns = `id, table_number, items, status, created_at, seq`

// InsertOrder adds an order and returns it as stored. The caller assigns
// ID, table, items, and status. Seq is assigned inside the insert
// transaction, and CreatedAt is moved one nanosecond past the newest
// stored order when it is not already later, so every handle on the
// database file hands out increasing values.
func (s *Store) InsertOrder(ctx context.Context, o model.Order) (model.Order, error) {
	return s.insertOrder(ctx, o, false)
}

// InsertOrderExclusive is InsertOrder that fails with ActiveOrderExists
// when the table already has a Pending or Delivering order. The check and
// the insert share one transaction.
func (s *Store) InsertOrderExclusive(ctx context.Context, o model.Order) (model.Order, error) {
	return s.insertOrder(ctx, o, true)
}

func (s *Store) insertOrder(ctx context.Context, o model.Order, exclusive bool) (model.Order, error) {
	itemsJSON, err := marshalItems(o.Items)
	if err != nil {
		return model.Order{}, fmt.Errorf("insert order: %w", err)
	}

	err = s.mutate(ctx, func(tx *sql.Tx) error {
		if exclusive {
			var activeID string
			err := tx.QueryRowContext(ctx, `
				SELECT id FROM orders
				WHERE table_number = ? AND status IN ('Pending', 'Delivering')
				ORDER BY created_at DESC, seq DESC
				LIMIT 1
			`, o.TableNumber).Scan(&activeID)
			switch {
			case err == nil:
				return model.Errorf(model.ErrCodeActiveOrderExists,
					"table %d already has active order %s", o.TableNumber, activeID).
					With("order_id", activeID).
					With("table", fmt.Sprint(o.TableNumber))
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("check active order: %w", err)
			}
		}

		var maxSeq, maxCreated int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(created_at), 0) FROM orders
		`).Scan(&maxSeq, &maxCreated)
		if err != nil {
			return fmt.Errorf("read order counters: %w", err)
		}
		o.Seq = maxSeq + 1
		if created := toUnixNano(o.CreatedAt); created <= maxCreated {
			o.CreatedAt = fromUnixNano(maxCreated + 1)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, o.ID, o.TableNumber, itemsJSON, string(o.Status), toUnixNano(o.CreatedAt), o.Seq)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	}, model.KindOrders)
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

// GetOrder retrieves an order by ID.
// Returns a model NotFound error if the order does not exist.
func (s *Store) GetOrder(ctx context.Context, id string) (model.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, model.Errorf(model.ErrCodeNotFound, "order %s", id).With("order_id", id)
	}
	return o, err
}

// ListOrders returns every order, newest first.
func (s *Store) ListOrders(ctx context.Context) ([]model.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		ORDER BY created_at DESC, seq DESC
	`)
}

// ListOrdersByTable returns a table's orders, newest first.
func (s *Store) ListOrdersByTable(ctx context.Context, tableNumber int) ([]model.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_number = ?
		ORDER BY created_at DESC, seq DESC
	`, tableNumber)
}

// ListActiveOrders returns every Pending or Delivering order, newest first.
func (s *Store) ListActiveOrders(ctx context.Context) ([]model.Order, error) {
	return s.queryOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE status IN ('Pending', 'Delivering')
		ORDER BY created_at DESC, seq DESC
	`)
}

// LatestActiveOrder returns the newest Pending or Delivering order of a
// table, or nil if it has none. Ties on created_at are broken by seq.
func (s *Store) LatestActiveOrder(ctx context.Context, tableNumber int) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE table_number = ? AND status IN ('Pending', 'Delivering')
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`, tableNumber)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateOrder performs an atomic read-modify-write of an order's status.
// next receives the current order and returns the new status, or an error
// to abort without writing.
func (s *Store) UpdateOrder(ctx context.Context, id string, next func(current model.Order) (model.OrderStatus, error)) (model.Order, error) {
	var updated model.Order
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
		current, err := scanOrder(row)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Errorf(model.ErrCodeNotFound, "order %s", id).With("order_id", id)
		}
		if err != nil {
			return err
		}

		status, err := next(current)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ? WHERE id = ?`, string(status), id); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		updated = current
		updated.Status = status
		return nil
	}, model.KindOrders)
	if err != nil {
		return model.Order{}, err
	}
	return updated, nil
}

// DeleteOrdersByTable removes every order of a table regardless of status
// and returns the number removed.
func (s *Store) DeleteOrdersByTable(ctx context.Context, tableNumber int) (int64, error) {
	var removed int64
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE table_number = ?`, tableNumber)
		if err != nil {
			return fmt.Errorf("delete orders: %w", err)
		}
		removed, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if removed == 0 {
			return errNothingChanged
		}
		return nil
	}, model.KindOrders)
	if errors.Is(err, errNothingChanged) {
		return 0, nil
	}
	return removed, err
}

// OrderTableNumbers returns the distinct table numbers that have orders.
func (s *Store) OrderTableNumbers(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT table_number FROM orders ORDER BY table_number ASC`)
	if err != nil {
		return nil, fmt.Errorf("query order tables: %w", err)
	}
	defer rows.Close()

	numbers := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scan table number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table numbers: %w", err)
	}
	return numbers, nil
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOrder returns sql.ErrNoRows unwrapped so callers can detect absence.
func scanOrder(row rowScanner) (model.Order, error) {
	var (
		o         model.Order
		itemsJSON string
		status    string
		createdAt int64
	)
	err := row.Scan(&o.ID, &o.TableNumber, &itemsJSON, &status, &createdAt, &o.Seq)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Order{}, sql.ErrNoRows
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("scan order: %w", err)
	}

	o.Items, err = unmarshalItems(itemsJSON)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderStatus(status)
	o.CreatedAt = fromUnixNano(createdAt)
	return o, nil
}
