package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/model"
)

// NewOrderCommand creates the order command group.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place orders and move them through service",
	}

	cmd.AddCommand(newOrderPlaceCommand(rootOpts))
	cmd.AddCommand(newOrderTransitionCommand(rootOpts, "serve", "Start delivering a pending order", "delivering"))
	cmd.AddCommand(newOrderTransitionCommand(rootOpts, "receive", "Mark a delivering order served", "served"))
	cmd.AddCommand(newOrderTransitionCommand(rootOpts, "cancel", "Cancel an active order", "cancelled"))
	cmd.AddCommand(newOrderPurgeCommand(rootOpts))
	cmd.AddCommand(newOrderLsCommand(rootOpts))
	return cmd
}

// placeResult is the JSON payload of a placement.
type placeResult struct {
	Order    model.Order    `json:"order"`
	Warnings []*model.Error `json:"warnings,omitempty"`
}

func newOrderPlaceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "place <table> <product-id>=<qty>...",
		Short: "Place an order for a table",
		Long: `Place an order for a table. Each item is a product ID and a
quantity joined by "=". Stock is checked for every item before anything
is written; a table with an active order is refused.`,
		Example: "  tableside order place 3 p-burger=2 p-fries=1",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseTableNumber(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			items, err := parseItems(args[1:])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(err)
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				placed, err := a.orch.PlaceOrder(ctx, number, items)
				if err != nil {
					return err
				}
				for _, w := range placed.Warnings {
					fmt.Fprintf(out.GetErrWriter(), "Warning [%s]: %s\n", ErrorCode(w.Code), w.Message)
				}
				return out.Success(placeResult{Order: placed.Order, Warnings: placed.Warnings},
					fmt.Sprintf("Placed %s for table %d (%s)", placed.Order.ID, number, placed.Order.Status))
			})
		},
	}
}

// parseItems parses "<product-id>=<qty>" arguments.
func parseItems(args []string) ([]model.RequestedItem, error) {
	items := make([]model.RequestedItem, 0, len(args))
	for _, arg := range args {
		id, qty, ok := strings.Cut(arg, "=")
		if !ok || id == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid item %q: want <product-id>=<qty>", arg))
		}
		n, err := strconv.Atoi(qty)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid quantity in %q", arg), err)
		}
		items = append(items, model.RequestedItem{ProductID: id, Quantity: n})
	}
	return items, nil
}

func newOrderTransitionCommand(rootOpts *RootOptions, use, short, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <order-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				var (
					o   model.Order
					err error
				)
				switch use {
				case "serve":
					o, err = a.orch.ServeOrder(ctx, args[0])
				case "receive":
					o, err = a.orch.ReceiveOrder(ctx, args[0])
				default:
					o, err = a.orch.CancelOrder(ctx, args[0])
				}
				if err != nil {
					return err
				}
				return out.Success(o, fmt.Sprintf("Order %s %s", o.ID, verb))
			})
		},
	}
}

func newOrderPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <table>",
		Short: "Delete every order of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseTableNumber(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				removed, err := a.orch.PurgeTableOrders(ctx, number)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"table": number, "removed": removed},
					fmt.Sprintf("Removed %d order(s) of table %d", removed, number))
			})
		},
	}
}

func newOrderLsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		table      int
		activeOnly bool
		numbers    bool
	)

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				if numbers {
					ns, err := a.ledger.TableNumbers(ctx)
					if err != nil {
						return err
					}
					return out.Success(ns, formatNumbers(ns))
				}

				var (
					orders []model.Order
					err    error
				)
				switch {
				case activeOnly:
					orders, err = a.ledger.ListActive(ctx)
				case table != 0:
					orders, err = a.ledger.ListByTable(ctx, table)
				default:
					orders, err = a.ledger.List(ctx)
				}
				if err != nil {
					return err
				}
				if activeOnly && table != 0 {
					orders = ordersForTable(orders, table)
				}
				return out.Success(orders, formatOrders(orders))
			})
		},
	}

	cmd.Flags().IntVarP(&table, "table", "t", 0, "only orders of this table")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only Pending and Delivering orders")
	cmd.Flags().BoolVar(&numbers, "tables", false, "print the distinct table numbers that have orders")
	return cmd
}

func ordersForTable(orders []model.Order, table int) []model.Order {
	kept := orders[:0:0]
	for _, o := range orders {
		if o.TableNumber == table {
			kept = append(kept, o)
		}
	}
	return kept
}

func formatOrders(orders []model.Order) string {
	if len(orders) == 0 {
		return "No orders."
	}
	var b strings.Builder
	for _, o := range orders {
		fmt.Fprintf(&b, "%s  table %-3d %-10s %s\n", o.ID, o.TableNumber, o.Status, o.CreatedAt.Format(time.DateTime))
		for _, it := range o.Items {
			fmt.Fprintf(&b, "    %3d x %s\n", it.Quantity, it.Name)
		}
	}
	return b.String()
}

func formatNumbers(ns []int) string {
	if len(ns) == 0 {
		return "No orders."
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}
