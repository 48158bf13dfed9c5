// Package executor provides the built-in paper executor. Production
// deployments plug a real execution collaborator into the orchestrator; the
// paper executor simulates fills so trade mode can run end to end without
// touching capital.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

// PaperConfig tunes the simulated fill model.
type PaperConfig struct {
	// FillLatency is how long a simulated submission takes. A latency past the
	// signal deadline produces an expired result, like a real venue would.
	FillLatency time.Duration
	// SlippagePct is the mean adverse slippage applied to the expected output.
	SlippagePct float64
	// FailureRate is the fraction of submissions that fail outright, in [0,1].
	FailureRate float64
	// GasUsedUnits is reported on confirmed fills.
	GasUsedUnits uint64
	// Seed fixes the random source; zero seeds from the clock.
	Seed int64
}

// Paper simulates signal execution: it fills after FillLatency at the route's
// expected output minus slippage, fails a configured fraction of submissions,
// and reports expiry when the deadline passes first.
type Paper struct {
	cfg    PaperConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPaper creates a paper executor.
func NewPaper(cfg PaperConfig, logger *slog.Logger) *Paper {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Paper{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "paper_executor")),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Submit simulates the execution of one signal. It never returns an error for
// a simulated venue failure; failures come back as a FAILED result so the
// settlement path sees the same shapes a real executor produces.
func (p *Paper) Submit(ctx context.Context, sig domain.ExecutionSignal) (domain.ExecutionResult, error) {
	start := time.Now()

	if p.cfg.FillLatency > 0 {
		timer := time.NewTimer(p.cfg.FillLatency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return domain.ExecutionResult{}, fmt.Errorf("paper executor: %w", ctx.Err())
		}
	}

	now := time.Now()
	elapsed := now.Sub(start).Milliseconds()

	if sig.Expired(now) {
		p.logger.Info("simulated fill missed the deadline",
			slog.String("signal_id", sig.ID),
			slog.Time("deadline", sig.Deadline),
		)
		return domain.ExecutionResult{
			SignalID:        sig.ID,
			Status:          domain.ExecExpired,
			ExecutionTimeMs: elapsed,
		}, nil
	}

	if p.roll() < p.cfg.FailureRate {
		p.logger.Warn("simulated execution failed",
			slog.String("signal_id", sig.ID),
			slog.String("pair", sig.Route.Hops[0].TokenIn+"/"+sig.Route.Hops[len(sig.Route.Hops)-1].TokenOut),
		)
		return domain.ExecutionResult{
			SignalID:        sig.ID,
			Status:          domain.ExecFailed,
			ActualProfit:    0,
			ExecutionTimeMs: elapsed,
		}, nil
	}

	// Slippage eats into the expected output; the realized profit is the
	// route's net minus the slipped notional.
	slip := p.cfg.SlippagePct * p.roll()
	slipCost := sig.Route.ExpectedOut * slip / 100
	profit := sig.Route.NetProfit() - slipCost

	p.logger.Info("simulated fill",
		slog.String("signal_id", sig.ID),
		slog.Float64("profit", profit),
		slog.Float64("slippage_pct", slip),
		slog.Int64("execution_ms", elapsed),
	)
	return domain.ExecutionResult{
		SignalID:        sig.ID,
		Status:          domain.ExecConfirmed,
		ActualProfit:    profit,
		SlippagePct:     slip,
		GasUsed:         p.cfg.GasUsedUnits,
		FeePaid:         sig.Route.TotalFees,
		ExecutionTimeMs: elapsed,
	}, nil
}

// roll returns a uniform value in [0,1) from the executor's own source.
func (p *Paper) roll() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64()
}

// Compile-time interface check.
var _ domain.Executor = (*Paper)(nil)
