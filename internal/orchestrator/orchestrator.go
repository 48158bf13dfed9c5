// Package orchestrator admits scan opportunities against the risk ledger and
// turns them into execution signals, dispatches admitted signals to the
// executor, and settles results back into the ledger.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aineonlabs/arbd/internal/domain"
	"github.com/aineonlabs/arbd/internal/risk"
)

// WeightsSource serves the current strategy-weights snapshot and accepts
// settled outcomes. Implemented by strategy.Provider.
type WeightsSource interface {
	Current() domain.StrategyWeights
	ReportOutcome(res domain.ExecutionResult, strategyName string)
}

// Config holds orchestrator tunables.
type Config struct {
	Strategy          string
	ExecutionDeadline time.Duration
	Gasless           bool
	GasPriceUSD       float64
}

// Orchestrator gates opportunities through the ledger and owns the dispatch
// and settlement loops. Admission for one opportunity is synchronous; the
// ledger's single lock keeps same-pair admissions serial while different
// pairs proceed in parallel.
type Orchestrator struct {
	ledger   *risk.Ledger
	weights  WeightsSource
	executor domain.Executor
	cfg      Config
	logger   *slog.Logger

	signalCh chan domain.ExecutionSignal
	resultCh chan domain.ExecutionResult
	now      func() time.Time

	mu         sync.Mutex
	dispatched map[string]bool // at-most-once submission per signal ID
}

// New creates an Orchestrator. executor may be nil when running in scan-only
// mode; Dispatch must not be started in that case.
func New(ledger *risk.Ledger, weights WeightsSource, executor domain.Executor, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:     ledger,
		weights:    weights,
		executor:   executor,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
		signalCh:   make(chan domain.ExecutionSignal, 64),
		resultCh:   make(chan domain.ExecutionResult, 64),
		now:        time.Now,
		dispatched: make(map[string]bool),
	}
}

// Results returns the channel external executors may also push results into.
func (o *Orchestrator) Results() chan<- domain.ExecutionResult {
	return o.resultCh
}

// SortCandidates orders opportunities for admission: confidence descending,
// then ID ascending. This is the authoritative tie-break for equal spreads.
func SortCandidates(opps []domain.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].Confidence != opps[j].Confidence {
			return opps[i].Confidence > opps[j].Confidence
		}
		return opps[i].ID < opps[j].ID
	})
}

// SelectRoute picks the best route from a ranked candidate list after
// penalizing gas: multi-hop routes report higher gas estimates and the
// optimizer deliberately leaves pricing that cost to this caller.
func (o *Orchestrator) SelectRoute(routes []domain.Route) (domain.Route, bool) {
	if len(routes) == 0 {
		return domain.Route{}, false
	}
	best := routes[0]
	bestNet := best.NetProfit() - float64(best.GasEstimate)*o.cfg.GasPriceUSD
	for _, r := range routes[1:] {
		net := r.NetProfit() - float64(r.GasEstimate)*o.cfg.GasPriceUSD
		if net > bestNet {
			best, bestNet = r, net
		}
	}
	return best, true
}

// Admit applies the admission rules to an opportunity enriched with a route
// and the external AI confidence weight. On success the ledger has atomically
// reserved a position and the returned signal is queued for dispatch; on
// failure the rejection names the first failed check.
func (o *Orchestrator) Admit(ctx context.Context, opp domain.Opportunity, route domain.Route, externalConfidence float64) (domain.ExecutionSignal, *risk.Rejection) {
	now := o.now()
	if opp.Expired(now) {
		return domain.ExecutionSignal{}, &risk.Rejection{Reason: "opportunity expired"}
	}

	weights := o.weights.Current()
	effective := opp.Confidence * externalConfidence

	signalID := uuid.New().String()
	_, rej := o.ledger.Reserve(risk.ReserveRequest{
		SignalID:            signalID,
		Pair:                opp.Pair,
		Amount:              opp.SuggestedAmount,
		Strategy:            o.cfg.Strategy,
		EffectiveConfidence: effective,
		ConfidenceThreshold: weights.ConfidenceThreshold,
	})
	if rej != nil {
		o.logger.Debug("opportunity rejected",
			slog.Uint64("opportunity_id", opp.ID),
			slog.String("pair", opp.Pair.String()),
			slog.String("reason", rej.Reason),
		)
		return domain.ExecutionSignal{}, rej
	}

	priority := 2
	if effective > 0.85 {
		priority = 1
	}

	sig := domain.ExecutionSignal{
		ID:               signalID,
		OpportunityID:    opp.ID,
		Route:            route,
		Amount:           opp.SuggestedAmount,
		Strategy:         o.cfg.Strategy,
		Priority:         priority,
		Confidence:       effective,
		RiskScore:        riskScore(opp),
		GaslessRequested: o.cfg.Gasless,
		CreatedAt:        now,
		Deadline:         now.Add(o.cfg.ExecutionDeadline),
	}

	select {
	case o.signalCh <- sig:
	case <-ctx.Done():
		// Shutdown between reservation and enqueue: release the position.
		o.ledger.SettleExpired(sig.ID)
		return domain.ExecutionSignal{}, &risk.Rejection{Reason: "shutting down"}
	}

	o.logger.Info("signal admitted",
		slog.String("signal_id", sig.ID),
		slog.Uint64("opportunity_id", opp.ID),
		slog.String("pair", opp.Pair.String()),
		slog.Float64("amount", sig.Amount),
		slog.Int("priority", sig.Priority),
		slog.Float64("confidence", effective),
	)
	return sig, nil
}

// riskScore blends the spread and the scanner's risk flags into [0,1].
// Thin liquidity raises it; a wide spread (likelier to be stale or toxic)
// raises it slightly too.
func riskScore(opp domain.Opportunity) float64 {
	score := 0.1
	if opp.HasFlag(domain.FlagLowLiquidityBuy) {
		score += 0.3
	}
	if opp.HasFlag(domain.FlagLowLiquiditySell) {
		score += 0.3
	}
	score += opp.SpreadPct / 100
	if score > 1 {
		score = 1
	}
	return score
}

// Dispatch consumes admitted signals until ctx is cancelled. A signal whose
// deadline has passed is never submitted: it settles as SETTLED_EXPIRED.
// Each signal is submitted at most once; the executor's own concurrency cap
// governs parallelism beyond the one goroutine per in-flight submission.
func (o *Orchestrator) Dispatch(ctx context.Context) error {
	o.logger.Info("dispatch loop started")
	defer o.logger.Info("dispatch loop stopped")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-o.signalCh:
			now := o.now()
			if sig.Expired(now) {
				o.ledger.SettleExpired(sig.ID)
				o.logger.Info("signal expired before dispatch",
					slog.String("signal_id", sig.ID),
					slog.Time("deadline", sig.Deadline),
				)
				continue
			}
			if !o.markDispatched(sig.ID) {
				continue
			}
			wg.Add(1)
			go func(sig domain.ExecutionSignal) {
				defer wg.Done()
				o.submit(ctx, sig)
			}(sig)
		}
	}
}

// markDispatched records the signal ID, returning false if already sent.
func (o *Orchestrator) markDispatched(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dispatched[id] {
		return false
	}
	o.dispatched[id] = true
	return true
}

func (o *Orchestrator) submit(ctx context.Context, sig domain.ExecutionSignal) {
	subCtx, cancel := context.WithDeadline(ctx, sig.Deadline)
	defer cancel()

	res, err := o.executor.Submit(subCtx, sig)
	if err != nil {
		o.logger.Warn("executor submit failed",
			slog.String("signal_id", sig.ID),
			slog.String("error", err.Error()),
		)
		// No result will ever arrive for this signal; release the position
		// without touching P&L.
		res = domain.ExecutionResult{SignalID: sig.ID, Status: domain.ExecExpired}
	}
	select {
	case o.resultCh <- res:
	case <-ctx.Done():
	}
}

// Settle consumes execution results until ctx is cancelled, settling each
// into the ledger exactly once and reporting the outcome to the weighting
// collaborator best-effort.
func (o *Orchestrator) Settle(ctx context.Context) error {
	o.logger.Info("settlement loop started")
	defer o.logger.Info("settlement loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-o.resultCh:
			status := o.ledger.Settle(res)
			if status == "" {
				continue // unknown or already settled
			}
			o.weights.ReportOutcome(res, o.cfg.Strategy)
		}
	}
}
