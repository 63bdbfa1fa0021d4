package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/tableside/internal/model"
)

// InsertTable adds a table.
// Returns a model DuplicateTable error if the number is already taken.
func (s *Store) InsertTable(ctx context.Context, t model.Table) error {
	return s.mutate(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dining_tables (id, number, status, access_token)
			VALUES (?, ?, ?, ?)
		`, t.ID, t.Number, string(t.Status), t.AccessToken)
		if isUniqueViolation(err) {
			return model.Errorf(model.ErrCodeDuplicateTable, "table %d already exists", t.Number).
				With("number", fmt.Sprint(t.Number))
		}
		if err != nil {
			return fmt.Errorf("insert table: %w", err)
		}
		return nil
	}, model.KindTables)
}

// GetTable retrieves a table by ID.
func (s *Store) GetTable(ctx context.Context, id string) (model.Table, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, status, access_token FROM dining_tables WHERE id = ?
	`, id)
	return scanTable(row, "table "+id)
}

// GetTableByNumber retrieves a table by its number.
func (s *Store) GetTableByNumber(ctx context.Context, number int) (model.Table, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, number, status, access_token FROM dining_tables WHERE number = ?
	`, number)
	return scanTable(row, fmt.Sprintf("table number %d", number))
}

// ListTables returns every table ordered by number.
func (s *Store) ListTables(ctx context.Context) ([]model.Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, number, status, access_token FROM dining_tables ORDER BY number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	tables := []model.Table{}
	for rows.Next() {
		var t model.Table
		var status string
		if err := rows.Scan(&t.ID, &t.Number, &status, &t.AccessToken); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.Status = model.TableStatus(status)
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	return tables, nil
}

// UpdateTableStatus overwrites a table's status and access token and
// returns the updated row.
func (s *Store) UpdateTableStatus(ctx context.Context, id string, status model.TableStatus, token string) (model.Table, error) {
	var t model.Table
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		var st string
		err := tx.QueryRowContext(ctx, `
			UPDATE dining_tables SET status = ?, access_token = ? WHERE id = ?
			RETURNING id, number, status, access_token
		`, string(status), token, id).Scan(&t.ID, &t.Number, &st, &t.AccessToken)
		if errors.Is(err, sql.ErrNoRows) {
			return model.Errorf(model.ErrCodeNotFound, "table %s", id).With("table_id", id)
		}
		if err != nil {
			return fmt.Errorf("update table status: %w", err)
		}
		t.Status = model.TableStatus(st)
		return nil
	}, model.KindTables)
	return t, err
}

// DeleteTable removes a table. Reports whether a row was removed.
func (s *Store) DeleteTable(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.mutate(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM dining_tables WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete table: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		removed = n > 0
		return nil
	}, model.KindTables)
	return removed, err
}

func scanTable(row *sql.Row, what string) (model.Table, error) {
	var t model.Table
	var status string
	err := row.Scan(&t.ID, &t.Number, &status, &t.AccessToken)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Table{}, model.Errorf(model.ErrCodeNotFound, "%s", what)
	}
	if err != nil {
		return model.Table{}, fmt.Errorf("scan table: %w", err)
	}
	t.Status = model.TableStatus(status)
	return t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
