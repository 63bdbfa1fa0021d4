// Package tables is the registry of physical tables and their occupancy.
package tables

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/roach88/tableside/internal/model"
)

// Backend is the persistence the registry needs.
// Implemented by *store.Store.
type Backend interface {
	InsertTable(ctx context.Context, t model.Table) error
	GetTable(ctx context.Context, id string) (model.Table, error)
	GetTableByNumber(ctx context.Context, number int) (model.Table, error)
	ListTables(ctx context.Context) ([]model.Table, error)
	UpdateTableStatus(ctx context.Context, id string, status model.TableStatus, token string) (model.Table, error)
	DeleteTable(ctx context.Context, id string) (bool, error)
}

// Registry manages tables.
type Registry struct {
	backend Backend
	ids     model.IDGenerator
	tokens  func() string
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDGenerator sets the generator for new table IDs.
func WithIDGenerator(ids model.IDGenerator) Option {
	return func(r *Registry) {
		r.ids = ids
	}
}

// WithTokenSource sets the function minting ordering access tokens.
func WithTokenSource(tokens func() string) Option {
	return func(r *Registry) {
		r.tokens = tokens
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// New creates a Registry backed by backend.
func New(backend Backend, opts ...Option) *Registry {
	r := &Registry{
		backend: backend,
		ids:     model.UUIDv7Generator{},
		tokens:  model.NewToken,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new Available table.
// Fails with InvalidTable when number is not positive and DuplicateTable
// when the number is taken.
func (r *Registry) Create(ctx context.Context, number int) (model.Table, error) {
	if number <= 0 {
		return model.Table{}, model.Errorf(model.ErrCodeInvalidTable, "table number %d must be positive", number)
	}
	t := model.Table{
		ID:     r.ids.NewID(),
		Number: number,
		Status: model.TableAvailable,
	}
	if err := r.backend.InsertTable(ctx, t); err != nil {
		return model.Table{}, err
	}
	r.logger.Info("table created", "table_id", t.ID, "number", number)
	return t, nil
}

// Get returns the table with the given ID.
func (r *Registry) Get(ctx context.Context, id string) (model.Table, error) {
	return r.backend.GetTable(ctx, id)
}

// GetByNumber returns the table with the given number.
func (r *Registry) GetByNumber(ctx context.Context, number int) (model.Table, error) {
	return r.backend.GetTableByNumber(ctx, number)
}

// List returns every table sorted by number.
func (r *Registry) List(ctx context.Context) ([]model.Table, error) {
	return r.backend.ListTables(ctx)
}

// SetStatus overwrites a table's status. Setting Occupied mints a new
// ordering token; setting Available revokes it.
func (r *Registry) SetStatus(ctx context.Context, id string, status model.TableStatus) (model.Table, error) {
	if !status.Valid() {
		return model.Table{}, model.Errorf(model.ErrCodeInvalidTable, "unknown table status %q", status).
			With("table_id", id)
	}

	var token string
	if status == model.TableOccupied {
		token = r.tokens()
	}

	t, err := r.backend.UpdateTableStatus(ctx, id, status, token)
	if err != nil {
		return model.Table{}, err
	}
	r.logger.Info("table status set", "table_id", id, "number", t.Number, "status", string(status))
	return t, nil
}

// Delete removes a table. Deleting an unknown table is not an error.
func (r *Registry) Delete(ctx context.Context, id string) error {
	removed, err := r.backend.DeleteTable(ctx, id)
	if err != nil {
		return err
	}
	if removed {
		r.logger.Info("table deleted", "table_id", id)
	}
	return nil
}

// OrderingLink returns the customer ordering URL of an Occupied table:
// <baseURL>/tables/<number>?token=<token>.
func OrderingLink(t model.Table, baseURL string) (string, error) {
	if t.Status != model.TableOccupied || t.AccessToken == "" {
		return "", model.Errorf(model.ErrCodeInvalidTable, "table %d is not occupied", t.Number).
			With("table_id", t.ID)
	}
	link, err := url.JoinPath(baseURL, "tables", strconv.Itoa(t.Number))
	if err != nil {
		return "", fmt.Errorf("build ordering link: %w", err)
	}
	return link + "?" + url.Values{"token": {t.AccessToken}}.Encode(), nil
}
