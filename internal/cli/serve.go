package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tableside/internal/hub"
	"github.com/roach88/tableside/internal/model"
	"github.com/roach88/tableside/internal/seed"
	"github.com/roach88/tableside/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Seed string // seed file applied before serving (overrides config)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the long-lived process that keeps dashboards current",
		Long: `Run the subscription hub against the database until interrupted.

The process watches for commits made by this and other tableside
processes, republishes snapshots, and logs low-stock products and the
active order count as they change. When an OTLP endpoint is configured,
order operations are traced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Seed, "seed", "", "seed file to apply before serving")
	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	ctx, stop := signalContext(commandContext(cmd))
	defer stop()

	a, err := openApp(ctx, opts.RootOptions, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer a.Close()

	shutdown, err := telemetry.Setup(ctx, a.cfg.OTLPEndpoint)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to set up tracing", err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	seedPath := a.cfg.Seed
	if opts.Seed != "" {
		seedPath = opts.Seed
	}
	if seedPath != "" {
		f, err := seed.Load(seedPath)
		if err != nil {
			return out.Fail(WrapExitError(ExitCommandError, "invalid seed file", err))
		}
		res, err := seed.Apply(ctx, f, a.catalog, a.tables)
		if err != nil {
			return out.Fail(err)
		}
		a.logger.Info("seed applied", "file", seedPath,
			"products_created", res.ProductsCreated, "products_updated", res.ProductsUpdated,
			"tables_created", res.TablesCreated, "tables_skipped", res.TablesSkipped)
	}

	h := hub.New(a.store, hub.WithLogger(a.logger))
	lowStock, err := h.Subscribe(model.KindProducts, hub.LowStock(a.cfg.LowStockThreshold))
	if err != nil {
		return out.Fail(err)
	}
	active, err := h.Subscribe(model.KindOrders, hub.ActiveOnly())
	if err != nil {
		return out.Fail(err)
	}

	a.logger.Info("serving", "db", a.cfg.Database, "poll_interval", a.cfg.PollInterval)
	fmt.Fprintln(cmd.OutOrStdout(), "tableside serving. Press Ctrl-C to stop.")

	err = runHub(ctx, a, h,
		func(ctx context.Context) error { return logLowStock(ctx, a.logger, lowStock) },
		func(ctx context.Context) error { return logActiveOrders(ctx, a.logger, active) },
	)
	if err != nil {
		return out.Fail(WrapExitError(ExitFailure, "serve stopped", err))
	}

	a.logger.Info("stopped gracefully")
	return nil
}

// runHub wires h to the store and runs it, the external-commit poller,
// and each consumer until ctx is cancelled or one of them fails.
// Cancellation is a clean exit.
func runHub(ctx context.Context, a *app, h *hub.Hub, consumers ...func(context.Context) error) error {
	cancelListen := a.store.Listen(h.Notify)
	defer cancelListen()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return h.Run(gctx) })
	g.Go(func() error { return a.store.Poll(gctx, a.cfg.PollInterval) })
	for _, consume := range consumers {
		g.Go(func() error { return consume(gctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func logLowStock(ctx context.Context, logger *slog.Logger, sub *hub.Subscription) error {
	defer sub.Close()
	for snap := range sub.Snapshots(ctx) {
		for _, p := range snap.Products {
			logger.Warn("low stock", "product_id", p.ID, "name", p.Name, "quantity", p.Quantity)
		}
	}
	return subscriptionErr(ctx, sub)
}

func logActiveOrders(ctx context.Context, logger *slog.Logger, sub *hub.Subscription) error {
	defer sub.Close()
	for snap := range sub.Snapshots(ctx) {
		logger.Info("active orders", "count", len(snap.Orders), "seq", snap.Seq)
	}
	return subscriptionErr(ctx, sub)
}

// subscriptionErr reports why a snapshot loop ended. A cancelled context
// or a stopped hub is a clean end.
func subscriptionErr(ctx context.Context, sub *hub.Subscription) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	err := sub.Err()
	if err == nil || errors.Is(err, hub.ErrUnsubscribed) || errors.Is(err, hub.ErrStopped) {
		return nil
	}
	return err
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
