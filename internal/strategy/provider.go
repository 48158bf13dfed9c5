// Package strategy bridges the core to the external strategy-weighting
// collaborator. The core reads an immutable weights snapshot per decision and
// feeds execution outcomes back fire-and-forget; it never blocks on a
// recomputation.
package strategy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

// Outcome pairs an execution result with the strategy that produced it.
type Outcome struct {
	Result   domain.ExecutionResult
	Strategy string
}

// Recomputer recomputes strategy weights from trailing outcomes. Implemented
// externally, or by TrailingRecomputer when no external endpoint is wired.
type Recomputer interface {
	Recompute(ctx context.Context, outcomes []Outcome) (domain.StrategyWeights, error)
}

// Provider owns the current weights snapshot and the outcome buffer. Current
// never blocks; ReportOutcome drops on a full buffer rather than stall the
// settlement path.
type Provider struct {
	recomputer Recomputer
	interval   time.Duration
	windowSize int
	logger     *slog.Logger

	mu      sync.RWMutex
	current domain.StrategyWeights

	outcomeCh chan Outcome
	window    []Outcome
}

// NewProvider creates a Provider seeded with initial. The seed snapshot is
// served until the first successful recomputation.
func NewProvider(recomputer Recomputer, initial domain.StrategyWeights, interval time.Duration, windowSize int, logger *slog.Logger) *Provider {
	if windowSize <= 0 {
		windowSize = 200
	}
	return &Provider{
		recomputer: recomputer,
		interval:   interval,
		windowSize: windowSize,
		logger:     logger.With(slog.String("component", "strategy_weights")),
		current:    initial.Clone(),
		outcomeCh:  make(chan Outcome, 256),
	}
}

// Current returns the latest weights snapshot as an immutable copy.
func (p *Provider) Current() domain.StrategyWeights {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// ReportOutcome forwards one settled outcome to the recomputation window.
// Best-effort: when the buffer is full the outcome is dropped and counted in
// the next refresh log line.
func (p *Provider) ReportOutcome(res domain.ExecutionResult, strategyName string) {
	select {
	case p.outcomeCh <- Outcome{Result: res, Strategy: strategyName}:
	default:
	}
}

// Run drains reported outcomes and refreshes the snapshot every interval
// until ctx is cancelled. A failed recomputation keeps the last snapshot.
func (p *Provider) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out := <-p.outcomeCh:
			p.window = append(p.window, out)
			if len(p.window) > p.windowSize {
				p.window = p.window[len(p.window)-p.windowSize:]
			}
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Provider) refresh(ctx context.Context) {
	if p.recomputer == nil || len(p.window) == 0 {
		return
	}
	outcomes := make([]Outcome, len(p.window))
	copy(outcomes, p.window)

	next, err := p.recomputer.Recompute(ctx, outcomes)
	if err != nil {
		p.logger.Warn("weights recomputation failed, keeping last snapshot",
			slog.String("error", err.Error()),
		)
		return
	}

	p.mu.Lock()
	next.Version = p.current.Version + 1
	p.current = next
	p.mu.Unlock()

	p.logger.Info("strategy weights refreshed",
		slog.Uint64("version", next.Version),
		slog.Float64("confidence_threshold", next.ConfidenceThreshold),
		slog.Int("window", len(outcomes)),
	)
}
