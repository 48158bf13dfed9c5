package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/aineonlabs/arbd/internal/risk"
)

// SnapshotSource serves the current risk-ledger summary. Implemented by
// risk.Ledger.
type SnapshotSource interface {
	CurrentSnapshot() risk.Snapshot
}

// AlertWatcher polls the ledger and raises an alert once per transition: when
// the circuit breaker trips, when the daily-loss gate engages, and when the
// daily counters roll.
type AlertWatcher struct {
	ledger          SnapshotSource
	notifier        *Notifier
	maxDailyLossUSD float64
	interval        time.Duration

	breakerSeen bool
	haltSeen    bool
	boundary    time.Time
}

// NewAlertWatcher creates a watcher over ledger, alerting through notifier.
func NewAlertWatcher(ledger SnapshotSource, notifier *Notifier, maxDailyLossUSD float64, interval time.Duration) *AlertWatcher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &AlertWatcher{
		ledger:          ledger,
		notifier:        notifier,
		maxDailyLossUSD: maxDailyLossUSD,
		interval:        interval,
	}
}

// Run polls until ctx is cancelled.
func (w *AlertWatcher) Run(ctx context.Context) error {
	w.boundary = w.ledger.CurrentSnapshot().ResetBoundary

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *AlertWatcher) check(ctx context.Context) {
	snap := w.ledger.CurrentSnapshot()

	if !snap.ResetBoundary.Equal(w.boundary) {
		w.boundary = snap.ResetBoundary
		w.breakerSeen = false
		w.haltSeen = false
		_ = w.notifier.Notify(ctx, EventDailyReset,
			"Daily counters reset",
			fmt.Sprintf("Next boundary: %s", snap.ResetBoundary.Format(time.RFC3339)),
		)
	}

	if snap.BreakerTripped && !w.breakerSeen {
		w.breakerSeen = true
		_ = w.notifier.Notify(ctx, EventBreakerTripped,
			"Circuit breaker tripped",
			fmt.Sprintf("Consecutive failures: %d. Admissions halted until reset.", snap.ConsecutiveFailures),
		)
	}
	if !snap.BreakerTripped {
		w.breakerSeen = false
	}

	if snap.DailyLoss >= w.maxDailyLossUSD && !w.haltSeen {
		w.haltSeen = true
		_ = w.notifier.Notify(ctx, EventDailyLossHalt,
			"Daily loss limit reached",
			fmt.Sprintf("Daily loss $%.2f at limit $%.2f. New positions halted until the next UTC day.",
				snap.DailyLoss, w.maxDailyLossUSD),
		)
	}
}
