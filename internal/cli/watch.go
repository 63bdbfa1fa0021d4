package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/hub"
	"github.com/roach88/tableside/internal/model"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Table    int  // only this table's orders or table record
	Active   bool // only Pending and Delivering orders
	LowStock bool // only products at or below the low-stock threshold
	Count    int  // exit after this many snapshots (0 = run until interrupted)
}

// snapshotOutput is the JSON form of one snapshot.
type snapshotOutput struct {
	Kind    model.Kind `json:"kind"`
	Seq     int64      `json:"seq"`
	Digest  string     `json:"digest"`
	Records any        `json:"records"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <products|tables|orders>",
		Short: "Print a collection and reprint it whenever it changes",
		Long: `Print the current contents of a collection, then a fresh snapshot
every time it changes, including changes made by other processes.

With --format json each snapshot is one JSON object per line.`,
		Example: `  tableside watch orders --active
  tableside watch orders --table 3
  tableside watch products --low-stock --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Table, "table", "t", 0, "only this table")
	cmd.Flags().BoolVar(&opts.Active, "active", false, "only Pending and Delivering orders")
	cmd.Flags().BoolVar(&opts.LowStock, "low-stock", false, "only low-stock products")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 0, "exit after this many snapshots")
	return cmd
}

func runWatch(opts *WatchOptions, kindArg string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	kind, err := model.ParseKind(kindArg)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "invalid collection", err))
	}

	ctx, stop := signalContext(commandContext(cmd))
	defer stop()

	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer a.Close()

	var filters []hub.Filter
	if opts.Table != 0 {
		filters = append(filters, hub.ForTable(opts.Table))
	}
	if opts.Active {
		filters = append(filters, hub.ActiveOnly())
	}
	if opts.LowStock {
		filters = append(filters, hub.LowStock(a.cfg.LowStockThreshold))
	}

	h := hub.New(a.store, hub.WithLogger(a.logger))
	sub, err := h.Subscribe(kind, filters...)
	if err != nil {
		return out.Fail(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printSnapshots := func(ctx context.Context) error {
		defer sub.Close()
		seen := 0
		for snap := range sub.Snapshots(ctx) {
			if err := writeSnapshot(out, snap, a.cfg.LowStockThreshold); err != nil {
				return err
			}
			seen++
			if opts.Count > 0 && seen >= opts.Count {
				cancel()
				return nil
			}
		}
		return subscriptionErr(ctx, sub)
	}

	if err := runHub(ctx, a, h, printSnapshots); err != nil {
		return out.Fail(WrapExitError(ExitFailure, "watch stopped", err))
	}
	return nil
}

func writeSnapshot(out *OutputFormatter, snap hub.Snapshot, threshold int) error {
	if out.Format == "json" {
		var records any
		switch snap.Kind {
		case model.KindProducts:
			records = nonNil(snap.Products)
		case model.KindTables:
			records = nonNil(snap.Tables)
		default:
			records = nonNil(snap.Orders)
		}
		return json.NewEncoder(out.Writer).Encode(snapshotOutput{
			Kind:    snap.Kind,
			Seq:     snap.Seq,
			Digest:  snap.Digest,
			Records: records,
		})
	}

	fmt.Fprintf(out.Writer, "--- %s #%d (%d)\n", snap.Kind, snap.Seq, snap.Len())
	var body string
	switch snap.Kind {
	case model.KindProducts:
		body = formatProducts(snap.Products, threshold)
	case model.KindTables:
		body = formatTables(snap.Tables)
	default:
		body = formatOrders(snap.Orders)
	}
	_, err := io.WriteString(out.Writer, ensureNewline(body))
	return err
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func ensureNewline(s string) string {
	if s == "" || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}
