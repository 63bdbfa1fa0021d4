// Package ledger owns orders and their status lifecycle.
//
//	Pending ──serve──▶ Delivering ──receive──▶ Served
//	   │                   │
//	   └──────cancel───────┴──────────────────▶ Cancelled
//
// Served and Cancelled are terminal. Line items never change after
// creation; only the status does.
package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/tableside/internal/model"
)

// Backend is the persistence the ledger needs.
// Implemented by *store.Store.
type Backend interface {
	InsertOrder(ctx context.Context, o model.Order) (model.Order, error)
	InsertOrderExclusive(ctx context.Context, o model.Order) (model.Order, error)
	GetOrder(ctx context.Context, id string) (model.Order, error)
	ListOrders(ctx context.Context) ([]model.Order, error)
	ListOrdersByTable(ctx context.Context, tableNumber int) ([]model.Order, error)
	ListActiveOrders(ctx context.Context) ([]model.Order, error)
	LatestActiveOrder(ctx context.Context, tableNumber int) (*model.Order, error)
	UpdateOrder(ctx context.Context, id string, next func(current model.Order) (model.OrderStatus, error)) (model.Order, error)
	DeleteOrdersByTable(ctx context.Context, tableNumber int) (int64, error)
	OrderTableNumbers(ctx context.Context) ([]int, error)
}

// Ledger creates orders and advances their status.
//
// createdAt is taken from the ledger's clock, and the backend moves it
// past the newest stored order when the clock has not, so it is strictly
// increasing across every process sharing the database. seq is the
// backend's insertion counter used to break createdAt ties of imported
// data.
type Ledger struct {
	backend Backend
	ids     model.IDGenerator
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIDGenerator sets the generator for new order IDs.
func WithIDGenerator(ids model.IDGenerator) Option {
	return func(l *Ledger) {
		l.ids = ids
	}
}

// WithNow sets the wall clock used for createdAt.
func WithNow(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates a Ledger backed by backend.
func New(backend Backend, opts ...Option) *Ledger {
	l := &Ledger{
		backend: backend,
		ids:     model.UUIDv7Generator{},
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create records a new Pending order. Fails with EmptyOrder when items is
// empty, InvalidQuantity when a line quantity is not positive, and
// InvalidTable when tableNumber is not positive.
func (l *Ledger) Create(ctx context.Context, tableNumber int, items []model.LineItem) (model.Order, error) {
	return l.create(ctx, tableNumber, items, l.backend.InsertOrder)
}

// CreateExclusive is Create for a table that must have no active order.
// It fails with ActiveOrderExists otherwise; the check and the insert
// are one atomic step even across processes.
func (l *Ledger) CreateExclusive(ctx context.Context, tableNumber int, items []model.LineItem) (model.Order, error) {
	return l.create(ctx, tableNumber, items, l.backend.InsertOrderExclusive)
}

func (l *Ledger) create(ctx context.Context, tableNumber int, items []model.LineItem,
	insert func(context.Context, model.Order) (model.Order, error)) (model.Order, error) {
	if len(items) == 0 {
		return model.Order{}, model.Errorf(model.ErrCodeEmptyOrder, "order for table %d has no items", tableNumber)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return model.Order{}, model.Errorf(model.ErrCodeInvalidQuantity,
				"product %s: quantity %d must be positive", item.ProductID, item.Quantity).
				With("product_id", item.ProductID)
		}
	}
	if tableNumber <= 0 {
		return model.Order{}, model.Errorf(model.ErrCodeInvalidTable, "table number %d must be positive", tableNumber)
	}

	o, err := insert(ctx, model.Order{
		ID:          l.ids.NewID(),
		TableNumber: tableNumber,
		Items:       append([]model.LineItem(nil), items...),
		Status:      model.OrderPending,
		CreatedAt:   l.now().UTC().Truncate(0),
	})
	if err != nil {
		return model.Order{}, err
	}

	l.logger.Info("order created",
		"order_id", o.ID,
		"table", tableNumber,
		"items", len(items),
		"seq", o.Seq,
	)
	return o, nil
}

// Transition moves an order to next. The check and the write are one
// atomic step, so two racing transitions cannot both succeed from the
// same state. Fails with InvalidTransition or NotFound.
func (l *Ledger) Transition(ctx context.Context, id string, next model.OrderStatus) (model.Order, error) {
	var from model.OrderStatus
	o, err := l.backend.UpdateOrder(ctx, id, func(current model.Order) (model.OrderStatus, error) {
		from = current.Status
		if !current.Status.CanTransition(next) {
			return "", model.Errorf(model.ErrCodeInvalidTransition,
				"order %s: %s -> %s not allowed", id, current.Status, next).
				With("order_id", id).
				With("from", string(current.Status)).
				With("to", string(next))
		}
		return next, nil
	})
	if err != nil {
		return model.Order{}, err
	}

	l.logger.Info("order transitioned",
		"order_id", id,
		"table", o.TableNumber,
		"from", string(from),
		"to", string(next),
	)
	return o, nil
}

// Get returns the order with the given ID.
func (l *Ledger) Get(ctx context.Context, id string) (model.Order, error) {
	return l.backend.GetOrder(ctx, id)
}

// List returns every order, newest first.
func (l *Ledger) List(ctx context.Context) ([]model.Order, error) {
	return l.backend.ListOrders(ctx)
}

// ListByTable returns a table's orders, newest first.
func (l *Ledger) ListByTable(ctx context.Context, tableNumber int) ([]model.Order, error) {
	return l.backend.ListOrdersByTable(ctx, tableNumber)
}

// ListActive returns every Pending or Delivering order, newest first.
func (l *Ledger) ListActive(ctx context.Context) ([]model.Order, error) {
	return l.backend.ListActiveOrders(ctx)
}

// LatestActiveForTable returns the table's most recent active order, or
// nil if it has none.
func (l *Ledger) LatestActiveForTable(ctx context.Context, tableNumber int) (*model.Order, error) {
	return l.backend.LatestActiveOrder(ctx, tableNumber)
}

// PurgeTable deletes every order of a table regardless of status and
// returns how many were removed.
func (l *Ledger) PurgeTable(ctx context.Context, tableNumber int) (int64, error) {
	removed, err := l.backend.DeleteOrdersByTable(ctx, tableNumber)
	if err != nil {
		return 0, err
	}
	l.logger.Info("orders purged", "table", tableNumber, "removed", removed)
	return removed, nil
}

// TableNumbers returns the distinct table numbers that have orders.
func (l *Ledger) TableNumbers(ctx context.Context) ([]int, error) {
	return l.backend.OrderTableNumbers(ctx)
}
