package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tableside/internal/catalog"
	"github.com/roach88/tableside/internal/ledger"
	"github.com/roach88/tableside/internal/model"
	"github.com/roach88/tableside/internal/orchestrator"
	"github.com/roach88/tableside/internal/store"
	"github.com/roach88/tableside/internal/tables"
	"github.com/roach88/tableside/internal/testutil"
)

// Harness executes one scenario against a fresh set of components.
type Harness struct {
	catalog *catalog.Catalog
	tables  *tables.Registry
	ledger  *ledger.Ledger
	orch    *orchestrator.Orchestrator

	// products maps setup keys to product IDs.
	products map[string]string

	// orders maps "as" bindings to order IDs.
	orders map[string]string

	seq int64
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with sequence IDs
// ("p-1", "t-1", "o-1") and a deterministic clock, so two runs of the
// same scenario produce identical traces.
//
// A non-nil error means the scenario could not be executed at all.
// Unexpected outcomes are reported through Result.Errors instead.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	h, err := newHarness(ctx, st)
	if err != nil {
		return nil, err
	}

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{Ctx: ctx, harness: h}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, st *store.Store) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewDeterministicClock()

	cat := catalog.New(st,
		catalog.WithIDGenerator(model.NewSequenceGenerator("p")),
		catalog.WithLogger(logger),
	)
	tokens := model.NewSequenceGenerator("tok")
	reg := tables.New(st,
		tables.WithIDGenerator(model.NewSequenceGenerator("t")),
		tables.WithTokenSource(tokens.NewID),
		tables.WithLogger(logger),
	)
	led := ledger.New(st,
		ledger.WithIDGenerator(model.NewSequenceGenerator("o")),
		ledger.WithNow(clock.Now),
		ledger.WithLogger(logger),
	)
	orch, err := orchestrator.New(ctx, cat, led, reg, orchestrator.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return &Harness{
		catalog:  cat,
		tables:   reg,
		ledger:   led,
		orch:     orch,
		products: make(map[string]string),
		orders:   make(map[string]string),
	}, nil
}

// executeSetup creates the setup products and tables. Setup is not traced.
func (h *Harness) executeSetup(ctx context.Context, setup Setup) error {
	for i, p := range setup.Products {
		product, err := h.catalog.Create(ctx, p.Name, "", p.Quantity)
		if err != nil {
			return fmt.Errorf("setup.products[%d]: %w", i, err)
		}
		h.products[p.Key] = product.ID
	}
	for i, n := range setup.Tables {
		if _, err := h.tables.Create(ctx, n); err != nil {
			return fmt.Errorf("setup.tables[%d]: %w", i, err)
		}
	}
	return nil
}

// executeFlow runs each step, traces it, and checks its expect clause.
//
// Domain failures are ordinary outcomes and are traced by error code.
// Any other error aborts the run.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		result.AddInvocationTrace(step.Invoke, stepArgs(step), h.next())

		out, err := h.execute(ctx, step)
		got := CaseSuccess
		if err != nil {
			code := model.CodeOf(err)
			if code == "" {
				return fmt.Errorf("flow[%d] %s: %w", i, step.Invoke, err)
			}
			got = string(code)
		}

		var fields map[string]any
		if err == nil {
			fields = out.fields()
		}
		result.AddCompletionTrace(got, fields, h.next())

		if step.Expect != nil {
			for _, msg := range checkExpect(i, step, got, out) {
				result.AddError(msg)
			}
		}
	}
	return nil
}

func (h *Harness) next() int64 {
	h.seq++
	return h.seq
}

// outcome carries what a successful step returned.
type outcome struct {
	order     *model.Order
	warnings  int
	placement bool
	removed   *int64
	quantity  *int
	table     *model.Table
}

func (o outcome) fields() map[string]any {
	switch {
	case o.order != nil:
		m := map[string]any{
			"order_id": o.order.ID,
			"status":   string(o.order.Status),
		}
		if o.placement {
			m["warnings"] = o.warnings
		}
		return m
	case o.removed != nil:
		return map[string]any{"removed": *o.removed}
	case o.quantity != nil:
		return map[string]any{"quantity": *o.quantity}
	case o.table != nil:
		return map[string]any{
			"status": string(o.table.Status),
			"table":  o.table.Number,
		}
	}
	return map[string]any{}
}

func (h *Harness) execute(ctx context.Context, step FlowStep) (outcome, error) {
	switch step.Invoke {
	case ActionPlaceOrder:
		items := make([]model.RequestedItem, len(step.Items))
		for i, it := range step.Items {
			items[i] = model.RequestedItem{ProductID: h.productID(it.Product), Quantity: it.Quantity}
		}
		placed, err := h.orch.PlaceOrder(ctx, step.Table, items)
		if err != nil {
			return outcome{}, err
		}
		if step.As != "" {
			h.orders[step.As] = placed.Order.ID
		}
		return outcome{order: &placed.Order, warnings: len(placed.Warnings), placement: true}, nil

	case ActionServeOrder:
		return orderOutcome(h.orch.ServeOrder(ctx, h.orderID(step.Order)))

	case ActionReceiveOrder:
		return orderOutcome(h.orch.ReceiveOrder(ctx, h.orderID(step.Order)))

	case ActionCancelOrder:
		return orderOutcome(h.orch.CancelOrder(ctx, h.orderID(step.Order)))

	case ActionPurgeTable:
		n, err := h.orch.PurgeTableOrders(ctx, step.Table)
		if err != nil {
			return outcome{}, err
		}
		return outcome{removed: &n}, nil

	case ActionSetQuantity:
		id := h.productID(step.Product)
		if err := h.catalog.SetQuantity(ctx, id, step.Quantity); err != nil {
			return outcome{}, err
		}
		q := step.Quantity
		return outcome{quantity: &q}, nil

	case ActionSetTableStatus:
		status, err := model.ParseTableStatus(step.Status)
		if err != nil {
			return outcome{}, err
		}
		t, err := h.tables.GetByNumber(ctx, step.Table)
		if err != nil {
			return outcome{}, err
		}
		t, err = h.tables.SetStatus(ctx, t.ID, status)
		if err != nil {
			return outcome{}, err
		}
		return outcome{table: &t}, nil
	}
	return outcome{}, fmt.Errorf("unknown action %q", step.Invoke)
}

func orderOutcome(o model.Order, err error) (outcome, error) {
	if err != nil {
		return outcome{}, err
	}
	return outcome{order: &o}, nil
}

// productID resolves a setup key. Unknown keys are used as literal IDs so
// scenarios can exercise missing products.
func (h *Harness) productID(key string) string {
	if id, ok := h.products[key]; ok {
		return id
	}
	return key
}

// orderID resolves an "as" binding. Unknown names are used as literal IDs.
func (h *Harness) orderID(name string) string {
	if id, ok := h.orders[name]; ok {
		return id
	}
	return name
}

// stepArgs renders a step's arguments using scenario names, not IDs.
func stepArgs(step FlowStep) map[string]any {
	args := map[string]any{}
	switch step.Invoke {
	case ActionPlaceOrder:
		items := make([]any, len(step.Items))
		for i, it := range step.Items {
			items[i] = map[string]any{"product": it.Product, "quantity": it.Quantity}
		}
		args["table"] = step.Table
		args["items"] = items
	case ActionServeOrder, ActionReceiveOrder, ActionCancelOrder:
		args["order"] = step.Order
	case ActionPurgeTable:
		args["table"] = step.Table
	case ActionSetQuantity:
		args["product"] = step.Product
		args["quantity"] = step.Quantity
	case ActionSetTableStatus:
		args["table"] = step.Table
		args["status"] = step.Status
	}
	return args
}

func checkExpect(index int, step FlowStep, got string, out outcome) []string {
	var errs []string
	exp := step.Expect
	if got != exp.Case {
		errs = append(errs, fmt.Sprintf("flow[%d] %s: expected case %q, got %q", index, step.Invoke, exp.Case, got))
		return errs
	}
	if exp.Status != "" {
		actual := ""
		switch {
		case out.order != nil:
			actual = string(out.order.Status)
		case out.table != nil:
			actual = string(out.table.Status)
		}
		if actual != exp.Status {
			errs = append(errs, fmt.Sprintf("flow[%d] %s: expected status %q, got %q", index, step.Invoke, exp.Status, actual))
		}
	}
	if out.placement && out.warnings != exp.Warnings {
		errs = append(errs, fmt.Sprintf("flow[%d] %s: expected %d warnings, got %d", index, step.Invoke, exp.Warnings, out.warnings))
	}
	return errs
}
