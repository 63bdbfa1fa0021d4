package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/tableside/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added created_at index for the newest-first order listing
const currentSchemaVersion = 1

// Store provides durable storage for products, tables, and orders.
// Uses SQLite with WAL mode and a single connection, so every transaction
// is serialized and per-record read-modify-write is linearizable.
type Store struct {
	db *sql.DB

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	seen      map[model.Kind]int64
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
// Use ":memory:" for a throwaway database.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and ":memory:" databases
	// exist per connection, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:        db,
		listeners: make(map[int]Listener),
		seen:      make(map[model.Kind]int64),
	}

	versions, err := s.Versions(context.Background())
	if err != nil {
		db.Close()
		return nil, err
	}
	s.seen = versions

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// dsn makes every transaction take the write lock at BEGIN. Other
// processes may write to the same file between a deferred transaction's
// first read and its first write, which SQLite reports as SQLITE_BUSY
// without waiting on busy_timeout.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the index backing the kitchen's newest-first listing.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_orders_created
		ON orders(created_at DESC, seq DESC)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// errNothingChanged lets fn abort a mutation that turned out to be a
// no-op, so versions are not bumped and listeners are not notified.
var errNothingChanged = errors.New("nothing changed")

// mutate runs fn in a transaction, bumps the version of every touched
// collection, commits, and then notifies listeners.
//
// fn must only use tx: the pool holds a single connection, so calling back
// into s.db while the transaction is open would block forever.
func (s *Store) mutate(ctx context.Context, fn func(tx *sql.Tx) error, kinds ...model.Kind) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}

	versions := make(map[model.Kind]int64, len(kinds))
	for _, kind := range kinds {
		var v int64
		err := tx.QueryRowContext(ctx, `
			UPDATE collection_versions SET version = version + 1
			WHERE kind = ?
			RETURNING version
		`, string(kind)).Scan(&v)
		if err != nil {
			return fmt.Errorf("bump %s version: %w", kind, err)
		}
		versions[kind] = v
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.mu.Lock()
	for kind, v := range versions {
		if v > s.seen[kind] {
			s.seen[kind] = v
		}
	}
	s.mu.Unlock()

	for _, kind := range kinds {
		s.notify(kind)
	}
	return nil
}
