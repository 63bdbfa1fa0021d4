package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tableside/internal/model"
)

// InsertProduct adds a product. The caller validates fields.
func (s *Store) InsertProduct(ctx context.Context, p model.Product) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, image_url, quantity)
			VALUES (?, ?, ?, ?)
		`, p.ID, p.Name, p.ImageURL, p.Quantity)
		if err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		return nil
	}, model.KindProducts)
}

// GetProduct retrieves a product by ID.
// Returns a model NotFound error if the product does not exist.
func (s *Store) GetProduct(ctx context.Context, id string) (model.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, image_url, quantity FROM products WHERE id = ?
	`, id)
	return scanProduct(row, id)
}

// ListProducts returns every product ordered by name, then id.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, image_url, quantity FROM products
		ORDER BY name COLLATE NOCASE ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Quantity); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// UpdateProduct overwrites name, image URL, and quantity.
// Returns a model NotFound error if the product does not exist.
func (s *Store) UpdateProduct(ctx context.Context, p model.Product) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE products SET name = ?, image_url = ?, quantity = ? WHERE id = ?
		`, p.Name, p.ImageURL, p.Quantity, p.ID)
		if err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return requireRow(res, "product", p.ID)
	}, model.KindProducts)
}

// SetProductQuantity overwrites the quantity on hand.
func (s *Store) SetProductQuantity(ctx context.Context, id string, quantity int) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE products SET quantity = ? WHERE id = ?`, quantity, id)
		if err != nil {
			return fmt.Errorf("set product quantity: %w", err)
		}
		return requireRow(res, "product", id)
	}, model.KindProducts)
}

// DeleteProduct removes a product.
// Returns a model NotFound error if the product does not exist.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete product: %w", err)
		}
		return requireRow(res, "product", id)
	}, model.KindProducts)
}

// DecrementProduct atomically subtracts amount from a product's quantity
// and returns the new quantity.
//
// The conditional UPDATE only matches when enough stock is on hand, so
// concurrent decrements can never drive quantity below zero. On no match
// the current row is read (inside the same transaction) to tell a missing
// product apart from insufficient stock.
func (s *Store) DecrementProduct(ctx context.Context, id string, amount int) (int, error) {
	var remaining int
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE products SET quantity = quantity - ?
			WHERE id = ? AND quantity >= ?
			RETURNING quantity
		`, amount, id, amount).Scan(&remaining)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("decrement product: %w", err)
		}

		var onHand int
		err = tx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id = ?`, id).Scan(&onHand)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Errorf(model.ErrCodeNotFound, "product %s", id).With("product_id", id)
		}
		if err != nil {
			return fmt.Errorf("read product quantity: %w", err)
		}
		return model.Errorf(model.ErrCodeInsufficientStock,
			"product %s: requested %d, available %d", id, amount, onHand).With("product_id", id)
	}, model.KindProducts)
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func scanProduct(row *sql.Row, id string) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.ImageURL, &p.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Product{}, model.Errorf(model.ErrCodeNotFound, "product %s", id).With("product_id", id)
	}
	if err != nil {
		return model.Product{}, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// requireRow turns a zero-row UPDATE/DELETE into a model NotFound error.
func requireRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return model.Errorf(model.ErrCodeNotFound, "%s %s", what, id).With(what+"_id", id)
	}
	return nil
}
