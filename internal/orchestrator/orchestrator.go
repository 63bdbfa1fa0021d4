// Package orchestrator places orders and drives their lifecycle across
// the catalog, the ledger, and the table registry.
//
// Placement and transitions for one table are serialized by a per-table
// lock; different tables proceed in parallel. Stock is validated before
// the order is written, but decrements happen after it, one product at a
// time, and are not rolled back: a failed decrement becomes a
// StockInconsistency warning on an otherwise successful placement.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/tableside/internal/model"
)

const tracerName = "github.com/roach88/tableside/internal/orchestrator"

// Catalog is the product access placement needs.
// Implemented by *catalog.Catalog.
type Catalog interface {
	Get(ctx context.Context, id string) (model.Product, error)
	Decrement(ctx context.Context, id string, amount int) (int, error)
}

// Ledger is the order access the orchestrator needs.
// Implemented by *ledger.Ledger.
type Ledger interface {
	CreateExclusive(ctx context.Context, tableNumber int, items []model.LineItem) (model.Order, error)
	Transition(ctx context.Context, id string, next model.OrderStatus) (model.Order, error)
	Get(ctx context.Context, id string) (model.Order, error)
	ListActive(ctx context.Context) ([]model.Order, error)
	LatestActiveForTable(ctx context.Context, tableNumber int) (*model.Order, error)
	PurgeTable(ctx context.Context, tableNumber int) (int64, error)
}

// Tables is the table access placement needs.
// Implemented by *tables.Registry.
type Tables interface {
	GetByNumber(ctx context.Context, number int) (model.Table, error)
	SetStatus(ctx context.Context, id string, status model.TableStatus) (model.Table, error)
}

// Placement is the result of a successful PlaceOrder.
type Placement struct {
	Order model.Order

	// Warnings lists StockInconsistency errors for line items whose
	// decrement failed after the order was committed.
	Warnings []*model.Error
}

// Orchestrator coordinates order placement and status changes.
type Orchestrator struct {
	catalog Catalog
	ledger  Ledger
	tables  Tables
	logger  *slog.Logger
	tracer  trace.Tracer

	locks *keyedMutex

	mu     sync.Mutex
	active map[int]string // table number -> active order ID
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTracerProvider sets the provider spans are created from.
// Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		o.tracer = tp.Tracer(tracerName)
	}
}

// New creates an Orchestrator and rebuilds the active-order index from
// the ledger. tables may be nil, in which case placement never touches
// table status.
func New(ctx context.Context, catalog Catalog, ledger Ledger, tables Tables, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		catalog: catalog,
		ledger:  ledger,
		tables:  tables,
		logger:  slog.Default(),
		tracer:  otel.Tracer(tracerName),
		locks:   newKeyedMutex(),
		active:  make(map[int]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	active, err := ledger.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild active order index: %w", err)
	}
	// Newest first: the first order seen for a table wins.
	for _, ord := range active {
		if _, ok := o.active[ord.TableNumber]; !ok {
			o.active[ord.TableNumber] = ord.ID
		}
	}
	o.logger.Debug("active order index rebuilt", "tables", len(o.active))
	return o, nil
}

// ActiveOrder returns the indexed active order ID of a table.
func (o *Orchestrator) ActiveOrder(tableNumber int) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, ok := o.active[tableNumber]
	return id, ok
}

// PlaceOrder validates items against current stock, records a Pending
// order, and decrements stock for each line.
//
// Validation failures (EmptyOrder, InvalidQuantity, ActiveOrderExists,
// NotFound, InsufficientStock) leave every collection untouched.
func (o *Orchestrator) PlaceOrder(ctx context.Context, tableNumber int, items []model.RequestedItem) (_ Placement, err error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.PlaceOrder", trace.WithAttributes(
		attribute.Int("table.number", tableNumber),
		attribute.Int("order.lines", len(items)),
	))
	defer func() { endSpan(span, err) }()

	if len(items) == 0 {
		return Placement{}, model.Errorf(model.ErrCodeEmptyOrder, "order for table %d has no items", tableNumber)
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return Placement{}, model.Errorf(model.ErrCodeInvalidQuantity,
				"product %s: quantity %d must be positive", item.ProductID, item.Quantity).
				With("product_id", item.ProductID)
		}
	}

	unlock := o.locks.Lock(tableNumber)
	defer unlock()

	if err := o.checkNoActiveOrder(ctx, tableNumber); err != nil {
		return Placement{}, err
	}

	lines, err := o.validateStock(ctx, items)
	if err != nil {
		return Placement{}, err
	}

	// The ledger repeats the active-order check inside the insert, which
	// covers placements by other processes since checkNoActiveOrder.
	order, err := o.ledger.CreateExclusive(ctx, tableNumber, lines)
	if err != nil {
		return Placement{}, err
	}
	o.setActive(tableNumber, order.ID)
	span.SetAttributes(attribute.String("order.id", order.ID))

	placement := Placement{Order: order}
	for _, line := range lines {
		if _, err := o.catalog.Decrement(ctx, line.ProductID, line.Quantity); err != nil {
			warning := model.Errorf(model.ErrCodeStockInconsistency,
				"order %s committed but product %s was not decremented by %d: %v",
				order.ID, line.ProductID, line.Quantity, err).
				With("order_id", order.ID).
				With("product_id", line.ProductID)
			placement.Warnings = append(placement.Warnings, warning)
			span.AddEvent("stock inconsistency", trace.WithAttributes(
				attribute.String("product.id", line.ProductID),
			))
			o.logger.Warn("stock decrement failed after order commit",
				"order_id", order.ID,
				"product_id", line.ProductID,
				"quantity", line.Quantity,
				"error", err,
			)
		}
	}

	o.occupyTable(ctx, tableNumber)

	o.logger.Info("order placed",
		"order_id", order.ID,
		"table", tableNumber,
		"lines", len(lines),
		"warnings", len(placement.Warnings),
	)
	return placement, nil
}

// ServeOrder moves an order from Pending to Delivering.
func (o *Orchestrator) ServeOrder(ctx context.Context, orderID string) (model.Order, error) {
	return o.transition(ctx, "orchestrator.ServeOrder", orderID, model.OrderDelivering)
}

// ReceiveOrder moves an order from Delivering to Served, freeing its
// table for a new order.
func (o *Orchestrator) ReceiveOrder(ctx context.Context, orderID string) (model.Order, error) {
	return o.transition(ctx, "orchestrator.ReceiveOrder", orderID, model.OrderServed)
}

// CancelOrder moves a Pending or Delivering order to Cancelled, freeing
// its table for a new order.
func (o *Orchestrator) CancelOrder(ctx context.Context, orderID string) (model.Order, error) {
	return o.transition(ctx, "orchestrator.CancelOrder", orderID, model.OrderCancelled)
}

// PurgeTableOrders deletes every order of a table, active or not.
// Purging a table without orders is not an error.
func (o *Orchestrator) PurgeTableOrders(ctx context.Context, tableNumber int) (_ int64, err error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.PurgeTableOrders", trace.WithAttributes(
		attribute.Int("table.number", tableNumber),
	))
	defer func() { endSpan(span, err) }()

	unlock := o.locks.Lock(tableNumber)
	defer unlock()

	removed, err := o.ledger.PurgeTable(ctx, tableNumber)
	if err != nil {
		return 0, err
	}
	o.clearActive(tableNumber, "")
	span.SetAttributes(attribute.Int64("orders.removed", removed))
	return removed, nil
}

func (o *Orchestrator) transition(ctx context.Context, op, orderID string, next model.OrderStatus) (_ model.Order, err error) {
	ctx, span := o.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(next)),
	))
	defer func() { endSpan(span, err) }()

	current, err := o.ledger.Get(ctx, orderID)
	if err != nil {
		return model.Order{}, err
	}
	span.SetAttributes(attribute.Int("table.number", current.TableNumber))

	unlock := o.locks.Lock(current.TableNumber)
	defer unlock()

	updated, err := o.ledger.Transition(ctx, orderID, next)
	if err != nil {
		return model.Order{}, err
	}
	if !updated.Active() {
		o.clearActive(updated.TableNumber, updated.ID)
	}
	return updated, nil
}

// checkNoActiveOrder consults the index and confirms against the
// ledger, which also sees orders written by other processes.
// Caller must hold the table lock.
func (o *Orchestrator) checkNoActiveOrder(ctx context.Context, tableNumber int) error {
	if id, ok := o.ActiveOrder(tableNumber); ok {
		current, err := o.ledger.Get(ctx, id)
		switch {
		case err == nil && current.Active():
			return activeOrderExists(tableNumber, id)
		case err != nil && !errors.Is(err, model.ErrNotFound):
			return err
		}
		o.clearActive(tableNumber, id)
	}

	latest, err := o.ledger.LatestActiveForTable(ctx, tableNumber)
	if err != nil {
		return err
	}
	if latest != nil {
		o.setActive(tableNumber, latest.ID)
		return activeOrderExists(tableNumber, latest.ID)
	}
	return nil
}

// validateStock checks every requested product exists with enough stock,
// summing repeated lines for the same product, and returns the line
// items with product name snapshots.
func (o *Orchestrator) validateStock(ctx context.Context, items []model.RequestedItem) ([]model.LineItem, error) {
	totals := make(map[string]int, len(items))
	products := make(map[string]model.Product, len(items))
	var order []string

	for _, item := range items {
		if _, seen := products[item.ProductID]; !seen {
			p, err := o.catalog.Get(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			products[item.ProductID] = p
			order = append(order, item.ProductID)
		}
		totals[item.ProductID] += item.Quantity
	}

	for _, id := range order {
		p := products[id]
		if totals[id] > p.Quantity {
			return nil, model.Errorf(model.ErrCodeInsufficientStock,
				"product %s: requested %d, available %d", id, totals[id], p.Quantity).
				With("product_id", id)
		}
	}

	lines := make([]model.LineItem, len(items))
	for i, item := range items {
		lines[i] = model.LineItem{
			ProductID: item.ProductID,
			Name:      products[item.ProductID].Name,
			Quantity:  item.Quantity,
		}
	}
	return lines, nil
}

// occupyTable marks a registered Available table Occupied. Unregistered
// tables are allowed to order; failures are logged only.
func (o *Orchestrator) occupyTable(ctx context.Context, tableNumber int) {
	if o.tables == nil {
		return
	}
	t, err := o.tables.GetByNumber(ctx, tableNumber)
	if errors.Is(err, model.ErrNotFound) {
		return
	}
	if err != nil {
		o.logger.Warn("look up table after placement failed", "table", tableNumber, "error", err)
		return
	}
	if t.Status != model.TableAvailable {
		return
	}
	if _, err := o.tables.SetStatus(ctx, t.ID, model.TableOccupied); err != nil {
		o.logger.Warn("mark table occupied failed", "table", tableNumber, "error", err)
	}
}

func (o *Orchestrator) setActive(tableNumber int, orderID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[tableNumber] = orderID
}

// clearActive removes the index entry of a table. A non-empty orderID
// only clears the entry if it still points at that order.
func (o *Orchestrator) clearActive(tableNumber int, orderID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if orderID == "" || o.active[tableNumber] == orderID {
		delete(o.active, tableNumber)
	}
}

func activeOrderExists(tableNumber int, orderID string) error {
	return model.Errorf(model.ErrCodeActiveOrderExists,
		"table %d already has active order %s", tableNumber, orderID).
		With("order_id", orderID).
		With("table", fmt.Sprint(tableNumber))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if code := model.CodeOf(err); code != "" {
			span.SetAttributes(attribute.String("error.code", string(code)))
		}
	}
	span.End()
}
