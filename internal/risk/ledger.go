// Package risk owns all mutable trading state: daily P&L totals, open
// positions, and the circuit breakers gating admission. The Ledger is the
// single process-wide instance; every check-then-act sequence happens under
// one lock so concurrent admissions can never jointly violate a limit.
package risk

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

// Rejection reasons returned by Reserve. These are user-visible values, not
// errors.
const (
	ReasonDailyLossLimit     = "daily loss limit reached"
	ReasonPositionSize       = "position size exceeds limit"
	ReasonPositionLimit      = "position limit reached"
	ReasonCorrelatedExposure = "correlated exposure limit reached"
	ReasonLowConfidence      = "confidence below threshold"
	ReasonCircuitBreaker     = "circuit breaker active"
)

// Limits holds the ledger's admission limits.
type Limits struct {
	MaxPositionUSD         float64
	MaxDailyLossUSD        float64
	PositionLimitPerPair   int
	CircuitBreakerFailures int
}

// ReserveRequest carries everything the ledger needs to decide one admission.
type ReserveRequest struct {
	SignalID            string
	Pair                domain.Pair
	Amount              float64
	Strategy            string
	EffectiveConfidence float64
	ConfidenceThreshold float64
}

// Rejection names the first failed admission check.
type Rejection struct {
	Reason string
}

// Snapshot is a read-only summary of ledger state for logging and status.
type Snapshot struct {
	DailyProfit         float64
	DailyLoss           float64
	OpenPositions       int
	ConsecutiveFailures int
	BreakerTripped      bool
	ResetBoundary       time.Time
}

// Ledger tracks daily P&L and open positions. All fields are guarded by mu;
// no other component mutates them.
type Ledger struct {
	limits Limits
	logger *slog.Logger
	now    func() time.Time

	mu                  sync.Mutex
	dailyProfit         float64
	dailyLoss           float64
	positions           map[string]domain.Position // keyed by signal ID
	settled             map[string]bool            // signal IDs already settled today
	consecutiveFailures int
	breakerTripped      bool
	resetBoundary       time.Time // next UTC midnight
}

// New creates the process-wide Ledger. It is created at process start, reset
// at each UTC-midnight boundary, and torn down at process stop.
func New(limits Limits, logger *slog.Logger) *Ledger {
	l := &Ledger{
		limits:    limits,
		logger:    logger.With(slog.String("component", "risk_ledger")),
		now:       time.Now,
		positions: make(map[string]domain.Position),
		settled:   make(map[string]bool),
	}
	l.resetBoundary = nextUTCMidnight(l.now())
	return l
}

func nextUTCMidnight(now time.Time) time.Time {
	u := now.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// maybeResetLocked rolls the daily counters when the boundary has passed.
// Callers must hold mu.
func (l *Ledger) maybeResetLocked(now time.Time) {
	if now.Before(l.resetBoundary) {
		return
	}
	l.dailyProfit = 0
	l.dailyLoss = 0
	l.consecutiveFailures = 0
	l.breakerTripped = false
	l.settled = make(map[string]bool)
	l.resetBoundary = nextUTCMidnight(now)
	l.logger.Info("daily counters reset", slog.Time("next_boundary", l.resetBoundary))
}

// ResetDaily forces the daily roll. The app's boundary ticker calls it;
// admissions and settlements also roll lazily so correctness never depends on
// the ticker firing.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetBoundary = l.now() // force
	l.maybeResetLocked(l.now())
}

// ResetBreaker clears the consecutive-failure circuit breaker, e.g. after
// operator review. The daily-loss gate is not affected.
func (l *Ledger) ResetBreaker() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consecutiveFailures = 0
	l.breakerTripped = false
	l.logger.Warn("circuit breaker manually cleared")
}

// Reserve runs the admission checks in order and, when all pass, atomically
// opens a position reserving the requested capital. The first failed check
// wins. The check and the insert happen under one lock, so two concurrent
// admissions for the same pair cannot jointly exceed the position limit.
func (l *Ledger) Reserve(req ReserveRequest) (domain.Position, *Rejection) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeResetLocked(now)

	// 1. Daily loss circuit breaker: sticky until the next reset boundary.
	if l.dailyLoss >= l.limits.MaxDailyLossUSD {
		return domain.Position{}, &Rejection{Reason: ReasonDailyLossLimit}
	}

	// 2. Per-position capital cap.
	if req.Amount > l.limits.MaxPositionUSD {
		return domain.Position{}, &Rejection{Reason: ReasonPositionSize}
	}

	// 3. Per-pair concurrency cap.
	samePair, sameBase := 0, 0
	for _, p := range l.positions {
		if p.Pair == req.Pair {
			samePair++
		}
		if p.Pair.Base() == req.Pair.Base() {
			sameBase++
		}
	}
	if samePair >= l.limits.PositionLimitPerPair {
		return domain.Position{}, &Rejection{Reason: ReasonPositionLimit}
	}

	// 4. Correlation guard: cap concentrated same-base exposure.
	if sameBase >= l.limits.PositionLimitPerPair {
		return domain.Position{}, &Rejection{Reason: ReasonCorrelatedExposure}
	}

	// 5. Confidence threshold from the current strategy-weights snapshot.
	if req.EffectiveConfidence < req.ConfidenceThreshold {
		return domain.Position{}, &Rejection{Reason: ReasonLowConfidence}
	}

	// Consecutive-failure breaker halts admissions independently of the
	// daily-loss gate.
	if l.breakerTripped {
		return domain.Position{}, &Rejection{Reason: ReasonCircuitBreaker}
	}

	pos := domain.Position{
		ID:       req.SignalID,
		SignalID: req.SignalID,
		Pair:     req.Pair,
		Amount:   req.Amount,
		Strategy: req.Strategy,
		OpenedAt: now,
	}
	l.positions[req.SignalID] = pos
	return pos, nil
}

// Settle consumes an execution result exactly once, releasing the matching
// position and updating daily P&L. Results for unknown or already-settled
// signal IDs are ignored. It returns the terminal position status, or "" for
// an ignored result.
func (l *Ledger) Settle(res domain.ExecutionResult) domain.PositionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeResetLocked(now)

	if l.settled[res.SignalID] {
		return ""
	}
	pos, ok := l.positions[res.SignalID]
	if !ok {
		return ""
	}
	delete(l.positions, res.SignalID)
	l.settled[res.SignalID] = true

	var status domain.PositionStatus
	switch res.Status {
	case domain.ExecConfirmed:
		if res.ActualProfit >= 0 {
			l.dailyProfit += res.ActualProfit
			l.consecutiveFailures = 0
			status = domain.PositionSettledWin
		} else {
			l.dailyLoss += -res.ActualProfit
			l.consecutiveFailures++
			status = domain.PositionSettledLoss
		}
	case domain.ExecExpired:
		status = domain.PositionSettledExpired
	default: // FAILED
		loss := -res.ActualProfit
		if loss < 0 {
			loss = 0
		}
		l.dailyLoss += loss
		l.consecutiveFailures++
		status = domain.PositionSettledLoss
	}

	if l.limits.CircuitBreakerFailures > 0 && l.consecutiveFailures >= l.limits.CircuitBreakerFailures {
		if !l.breakerTripped {
			l.breakerTripped = true
			l.logger.Error("circuit breaker tripped",
				slog.Int("consecutive_failures", l.consecutiveFailures),
			)
		}
	}
	if l.dailyLoss >= l.limits.MaxDailyLossUSD {
		l.logger.Error("daily loss limit reached, admissions halted",
			slog.Float64("daily_loss", l.dailyLoss),
			slog.Float64("limit", l.limits.MaxDailyLossUSD),
		)
	}

	l.logger.Info("position settled",
		slog.String("signal_id", res.SignalID),
		slog.String("status", string(status)),
		slog.String("pair", pos.Pair.String()),
		slog.Float64("actual_profit", res.ActualProfit),
		slog.Float64("daily_profit", l.dailyProfit),
		slog.Float64("daily_loss", l.dailyLoss),
	)
	return status
}

// SettleExpired releases the position for a signal whose deadline passed with
// no execution result. Daily P&L is untouched. Idempotent like Settle.
func (l *Ledger) SettleExpired(signalID string) domain.PositionStatus {
	return l.Settle(domain.ExecutionResult{SignalID: signalID, Status: domain.ExecExpired})
}

// AllPositions returns a copy of every open position, oldest first.
func (l *Ledger) AllPositions() []domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

// OpenPositions returns the count of open positions for pair.
func (l *Ledger) OpenPositions(pair domain.Pair) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, p := range l.positions {
		if p.Pair == pair {
			n++
		}
	}
	return n
}

// CurrentSnapshot returns a read-only summary of ledger state.
func (l *Ledger) CurrentSnapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		DailyProfit:         l.dailyProfit,
		DailyLoss:           l.dailyLoss,
		OpenPositions:       len(l.positions),
		ConsecutiveFailures: l.consecutiveFailures,
		BreakerTripped:      l.breakerTripped,
		ResetBoundary:       l.resetBoundary,
	}
}
