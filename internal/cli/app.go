package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/catalog"
	"github.com/roach88/tableside/internal/config"
	"github.com/roach88/tableside/internal/ledger"
	"github.com/roach88/tableside/internal/orchestrator"
	"github.com/roach88/tableside/internal/store"
	"github.com/roach88/tableside/internal/tables"
)

// app bundles the components every command works against.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	catalog *catalog.Catalog
	tables  *tables.Registry
	ledger  *ledger.Ledger
	orch    *orchestrator.Orchestrator
}

// loadConfig resolves configuration for a command: defaults, config file,
// environment, then global flags.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// openApp loads configuration, opens the store, and wires the components.
// Logs go to stderr so they never mix with command output.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(cmd.ErrOrStderr())

	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %s", cfg.Database), err)
	}

	cat := catalog.New(st, catalog.WithLogger(logger))
	reg := tables.New(st, tables.WithLogger(logger))
	led := ledger.New(st, ledger.WithLogger(logger))
	orch, err := orchestrator.New(ctx, cat, led, reg, orchestrator.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start orchestrator", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		catalog: cat,
		tables:  reg,
		ledger:  led,
		orch:    orch,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (as in tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp opens the app, runs fn, and closes the app. Errors returned by
// fn are reported through the formatter.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app, out *OutputFormatter) error) error {
	out := opts.formatter(cmd)
	ctx := commandContext(cmd)

	a, err := openApp(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer a.Close()

	if err := fn(ctx, a, out); err != nil {
		return out.Fail(err)
	}
	return nil
}
