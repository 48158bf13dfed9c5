package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aineonlabs/arbd/internal/domain"
	"github.com/aineonlabs/arbd/internal/orchestrator"
)

// externalConfidence is the AI collaborator's scalar weight applied on top of
// the scanner-local confidence. Until a model endpoint is wired it is the
// identity weight; the admission math and threshold gating are unchanged.
const externalConfidence = 1.0

// ScanMode runs detection only: scan cycles plus route comparison, logging
// each opportunity without admitting anything.
func (a *App) ScanMode(ctx context.Context, deps *Deps) error {
	a.logger.Info("scan mode started")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	a.startSweeper(ctx, g, deps)
	a.startOps(ctx, g, deps)

	g.Go(func() error {
		err := a.scanLoop(ctx, deps, func(ctx context.Context, opp domain.Opportunity) {
			routes, err := deps.Router.CompareRoutes(ctx, opp.Pair, opp.SuggestedAmount)
			if err != nil {
				if !errors.Is(err, domain.ErrNoRoute) {
					a.logger.Warn("route comparison failed", slog.String("error", err.Error()))
				}
				return
			}
			best := routes[0]
			a.logger.Info("opportunity detected",
				slog.Uint64("id", opp.ID),
				slog.String("pair", opp.Pair.String()),
				slog.String("buy_venue", opp.BuyVenue),
				slog.String("sell_venue", opp.SellVenue),
				slog.Float64("spread_pct", opp.SpreadPct),
				slog.Float64("confidence", opp.Confidence),
				slog.Int("route_hops", len(best.Hops)),
				slog.Float64("route_net_profit", best.NetProfit()),
			)
		})
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("scan loop: %w", err)
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// TradeMode runs the full pipeline: scanning, route enrichment, admission,
// dispatch, and settlement.
func (a *App) TradeMode(ctx context.Context, deps *Deps) error {
	a.logger.Info("trade mode started")

	g, ctx := errgroup.WithContext(ctx)
	a.startFeeds(ctx, g, deps)
	a.startSweeper(ctx, g, deps)
	a.startOps(ctx, g, deps)

	if deps.Alerts != nil {
		g.Go(func() error {
			err := deps.Alerts.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("alert watcher: %w", err)
		})
	}

	g.Go(func() error {
		err := deps.Weights.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("weights provider: %w", err)
	})
	g.Go(func() error {
		err := deps.Orchestrator.Dispatch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dispatch loop: %w", err)
	})
	g.Go(func() error {
		err := deps.Orchestrator.Settle(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("settlement loop: %w", err)
	})

	// Daily reset ticker; the ledger also rolls lazily under its own lock.
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				snap := deps.Ledger.CurrentSnapshot()
				if !time.Now().Before(snap.ResetBoundary) {
					deps.Ledger.ResetDaily()
				}
			}
		}
	})

	g.Go(func() error {
		err := a.scanLoop(ctx, deps, func(ctx context.Context, opp domain.Opportunity) {
			routes, err := deps.Router.CompareRoutes(ctx, opp.Pair, opp.SuggestedAmount)
			if err != nil {
				if !errors.Is(err, domain.ErrNoRoute) {
					a.logger.Warn("route comparison failed", slog.String("error", err.Error()))
				}
				return
			}
			route, ok := deps.Orchestrator.SelectRoute(routes)
			if !ok || route.NetProfit() <= 0 {
				return
			}
			// Rejections are expected outcomes; Admit logs them at debug.
			_, _ = deps.Orchestrator.Admit(ctx, opp, route, externalConfidence)
		})
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("scan loop: %w", err)
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// scanLoop runs scan cycles on the configured cadence, handing each emitted
// opportunity to handle in admission order. A cycle that overruns the cadence
// completes with whatever quotes arrived; the next tick simply fires later.
func (a *App) scanLoop(ctx context.Context, deps *Deps, handle func(context.Context, domain.Opportunity)) error {
	ticker := time.NewTicker(a.cfg.Scanner.ScanInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			opps, err := deps.Scanner.ScanCycle(ctx, deps.Pairs)
			if err != nil {
				a.logger.Warn("scan cycle failed", slog.String("error", err.Error()))
				continue
			}
			orchestrator.SortCandidates(opps)
			for _, opp := range opps {
				handle(ctx, opp)
			}
		}
	}
}

// startFeeds launches a Run loop per streaming venue. Feed loops only end on
// context cancellation; reconnection is internal to the feed.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Deps) {
	for _, feed := range deps.Feeds {
		feed := feed
		g.Go(func() error {
			err := feed.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("feed %s: %w", feed.Name(), err)
		})
	}
}

// startOps serves the read-only operations API when configured.
func (a *App) startOps(ctx context.Context, g *errgroup.Group, deps *Deps) {
	if deps.Ops == nil {
		return
	}
	g.Go(func() error {
		err := deps.Ops.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	})
}

// startSweeper bounds in-memory cache growth on long uptimes.
func (a *App) startSweeper(ctx context.Context, g *errgroup.Group, deps *Deps) {
	if deps.MemoryCache == nil {
		return
	}
	ttl := a.cfg.Scanner.QuoteTTL()
	g.Go(func() error {
		ticker := time.NewTicker(10 * ttl)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				deps.MemoryCache.Sweep(ttl, time.Now())
			}
		}
	})
}
