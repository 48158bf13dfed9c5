// Package app provides top-level application lifecycle management. It wires
// the scanner, route optimizer, risk ledger, strategy weighting, and
// orchestrator together and runs the configured operating mode.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aineonlabs/arbd/internal/config"
	"github.com/aineonlabs/arbd/internal/domain"
	"github.com/aineonlabs/arbd/internal/executor"
)

// App is the root application object. It owns the configuration, logger, and
// a cleanup stack run in reverse order on shutdown.
type App struct {
	cfg      *config.Config
	executor domain.Executor
	logger   *slog.Logger
	closers  []func()
}

// New creates an App. executor is the external execution collaborator; it may
// be nil, in which case only scan mode is available.
func New(cfg *config.Config, executor domain.Executor, logger *slog.Logger) *App {
	return &App{
		cfg:      cfg,
		executor: executor,
		logger:   logger.With(slog.String("component", "app")),
	}
}

// Run wires dependencies, selects the operating mode, and blocks until the
// context is cancelled.
func (a *App) Run(ctx context.Context) error {
	mode := strings.ToLower(a.cfg.Mode)
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", mode),
		slog.Int("venues", len(a.cfg.Venues)),
		slog.Int("pairs", len(a.cfg.Scanner.Pairs)),
	)

	exec := a.executor
	if mode == "trade" && exec == nil {
		if !a.cfg.Execution.Paper {
			return fmt.Errorf("app: trade mode requires an executor (or execution.paper = true)")
		}
		exec = executor.NewPaper(executor.PaperConfig{
			FillLatency:  a.cfg.Execution.PaperLatency(),
			SlippagePct:  a.cfg.Execution.PaperSlippagePct,
			FailureRate:  a.cfg.Execution.PaperFailureRate,
			GasUsedUnits: a.cfg.Router.GasBaseUnits,
		}, a.logger)
		a.logger.Warn("no executor wired, using the paper executor")
	}

	deps, cleanup, err := Wire(ctx, a.cfg, exec, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case "scan":
		return a.ScanMode(ctx, deps)
	case "trade":
		return a.TradeMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
