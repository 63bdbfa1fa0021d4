package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/tableside/internal/model"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			switch event.Type {
			case EventInvocation:
				fmt.Fprintf(&buf, "  [%d] %s %v\n", event.Seq, event.Action, event.Args)
			case EventCompletion:
				fmt.Fprintf(&buf, "  [%d]   -> %s\n", event.Seq, event.Case)
			}
		}
	}

	return buf.String()
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		for _, expected := range assertion.Actions {
			if event.Action == expected && positions[expected] == 0 {
				positions[expected] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Action == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func (h *Harness) assertProductQuantity(ctx context.Context, assertion Assertion) error {
	p, err := h.catalog.Get(ctx, h.productID(assertion.Product))
	if err != nil {
		return &AssertionError{
			Type:     AssertProductQuantity,
			Expected: fmt.Sprintf("product %s with quantity %d", assertion.Product, assertion.Quantity),
			Actual:   err.Error(),
		}
	}
	if p.Quantity != assertion.Quantity {
		return &AssertionError{
			Type:     AssertProductQuantity,
			Expected: fmt.Sprintf("product %s with quantity %d", assertion.Product, assertion.Quantity),
			Actual:   fmt.Sprintf("quantity %d", p.Quantity),
		}
	}
	return nil
}

func (h *Harness) assertOrderStatus(ctx context.Context, assertion Assertion) error {
	expected := fmt.Sprintf("order %s in status %s", assertion.Order, assertion.Status)

	o, err := h.ledger.Get(ctx, h.orderID(assertion.Order))
	switch {
	case errors.Is(err, model.ErrNotFound):
		return &AssertionError{Type: AssertOrderStatus, Expected: expected, Actual: "order not found"}
	case err != nil:
		return err
	}
	want, err := model.ParseOrderStatus(assertion.Status)
	if err != nil {
		return err
	}
	if o.Status != want {
		return &AssertionError{Type: AssertOrderStatus, Expected: expected, Actual: fmt.Sprintf("status %s", o.Status)}
	}
	return nil
}

// assertActiveOrders counts Pending and Delivering orders, optionally for
// one table.
func (h *Harness) assertActiveOrders(ctx context.Context, assertion Assertion) error {
	active, err := h.ledger.ListActive(ctx)
	if err != nil {
		return err
	}
	return compareCount(AssertActiveOrders, "active orders", assertion, countForTable(active, assertion.Table))
}

// assertOrderCount counts orders of any status, optionally for one table.
func (h *Harness) assertOrderCount(ctx context.Context, assertion Assertion) error {
	all, err := h.ledger.List(ctx)
	if err != nil {
		return err
	}
	return compareCount(AssertOrderCount, "orders", assertion, countForTable(all, assertion.Table))
}

func (h *Harness) assertTableStatus(ctx context.Context, assertion Assertion) error {
	expected := fmt.Sprintf("table %d %s", assertion.Table, assertion.Status)

	t, err := h.tables.GetByNumber(ctx, assertion.Table)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return &AssertionError{Type: AssertTableStatus, Expected: expected, Actual: "table not found"}
	case err != nil:
		return err
	}
	if string(t.Status) != assertion.Status {
		return &AssertionError{Type: AssertTableStatus, Expected: expected, Actual: string(t.Status)}
	}
	return nil
}

func countForTable(orders []model.Order, table int) int {
	if table == 0 {
		return len(orders)
	}
	n := 0
	for _, o := range orders {
		if o.TableNumber == table {
			n++
		}
	}
	return n
}

func compareCount(kind, noun string, assertion Assertion, got int) error {
	if got == assertion.Count {
		return nil
	}
	scope := ""
	if assertion.Table != 0 {
		scope = fmt.Sprintf(" for table %d", assertion.Table)
	}
	return &AssertionError{
		Type:     kind,
		Expected: fmt.Sprintf("%d %s%s", assertion.Count, noun, scope),
		Actual:   fmt.Sprintf("%d %s", got, noun),
	}
}

// AssertionContext provides state access for evaluating assertions.
type AssertionContext struct {
	Ctx     context.Context
	harness *Harness
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// State assertions need a non-nil actx; trace assertions do not.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertProductQuantity, AssertOrderStatus, AssertActiveOrders, AssertOrderCount, AssertTableStatus:
			if actx == nil || actx.harness == nil {
				err = fmt.Errorf("assertion[%d]: %s requires state context", i, assertion.Type)
				break
			}
			err = actx.harness.assertState(actx.Ctx, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (h *Harness) assertState(ctx context.Context, assertion Assertion) error {
	switch assertion.Type {
	case AssertProductQuantity:
		return h.assertProductQuantity(ctx, assertion)
	case AssertOrderStatus:
		return h.assertOrderStatus(ctx, assertion)
	case AssertActiveOrders:
		return h.assertActiveOrders(ctx, assertion)
	case AssertOrderCount:
		return h.assertOrderCount(ctx, assertion)
	case AssertTableStatus:
		return h.assertTableStatus(ctx, assertion)
	}
	return fmt.Errorf("unknown state assertion %q", assertion.Type)
}
