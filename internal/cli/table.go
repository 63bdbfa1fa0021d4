package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/model"
	"github.com/roach88/tableside/internal/tables"
)

// NewTableCommand creates the table admin command group. Tables are
// addressed by number.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Manage restaurant tables",
	}

	cmd.AddCommand(newTableAddCommand(rootOpts))
	cmd.AddCommand(newTableStatusCommand(rootOpts))
	cmd.AddCommand(newTableRmCommand(rootOpts))
	cmd.AddCommand(newTableLsCommand(rootOpts))
	cmd.AddCommand(newTableLinkCommand(rootOpts))
	return cmd
}

// parseTableNumber parses a positional table number argument.
func parseTableNumber(rootOpts *RootOptions, cmd *cobra.Command, arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, rootOpts.formatter(cmd).Fail(
			WrapExitError(ExitCommandError, fmt.Sprintf("invalid table number %q", arg), err))
	}
	return n, nil
}

func newTableAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <number>",
		Short: "Register a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseTableNumber(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				t, err := a.tables.Create(ctx, number)
				if err != nil {
					return err
				}
				return out.Success(t, fmt.Sprintf("Added table %d (%s)", t.Number, t.ID))
			})
		},
	}
}

func newTableStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <number> <Available|Occupied>",
		Short: "Set a table's status",
		Long: `Set a table's status. Marking a table Occupied issues a fresh
ordering token; marking it Available revokes the token.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseTableNumber(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				status, err := model.ParseTableStatus(args[1])
				if err != nil {
					return err
				}
				t, err := a.tables.GetByNumber(ctx, number)
				if err != nil {
					return err
				}
				t, err = a.tables.SetStatus(ctx, t.ID, status)
				if err != nil {
					return err
				}
				return out.Success(t, fmt.Sprintf("Table %d is %s", t.Number, t.Status))
			})
		},
	}
}

func newTableRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <number>",
		Short: "Remove a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseTableNumber(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				t, err := a.tables.GetByNumber(ctx, number)
				if err != nil {
					return err
				}
				if err := a.tables.Delete(ctx, t.ID); err != nil {
					return err
				}
				return out.Success(t, fmt.Sprintf("Removed table %d", t.Number))
			})
		},
	}
}

func newTableLsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				list, err := a.tables.List(ctx)
				if err != nil {
					return err
				}
				return out.Success(list, formatTables(list))
			})
		},
	}
}

func newTableLinkCommand(rootOpts *RootOptions) *cobra.Command {
	var baseURL string

	cmd := &cobra.Command{
		Use:   "link <number>",
		Short: "Print the customer ordering link of an occupied table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseTableNumber(rootOpts, cmd, args[0])
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app, out *OutputFormatter) error {
				t, err := a.tables.GetByNumber(ctx, number)
				if err != nil {
					return err
				}
				base := a.cfg.OrderingBaseURL
				if baseURL != "" {
					base = baseURL
				}
				link, err := tables.OrderingLink(t, base)
				if err != nil {
					return err
				}
				return out.Success(map[string]any{"table": t.Number, "link": link}, link)
			})
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "ordering site base URL (overrides config)")
	return cmd
}

func formatTables(list []model.Table) string {
	if len(list) == 0 {
		return "No tables."
	}
	var b strings.Builder
	for _, t := range list {
		fmt.Fprintf(&b, "%4d  %-10s %s\n", t.Number, t.Status, t.ID)
	}
	return b.String()
}
