package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aineonlabs/arbd/internal/risk"
)

type fakeSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (f *fakeSender) Send(_ context.Context, title, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.titles = append(f.titles, title)
	return nil
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) sent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.titles)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierEventFilter(t *testing.T) {
	s := &fakeSender{}
	n := New([]Sender{s}, []string{EventBreakerTripped}, discardLogger())

	if err := n.Notify(context.Background(), EventDailyReset, "reset", "body"); err != nil {
		t.Fatalf("filtered notify returned error: %v", err)
	}
	if s.sent() != 0 {
		t.Fatalf("filtered event was delivered")
	}

	if err := n.Notify(context.Background(), EventBreakerTripped, "tripped", "body"); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if s.sent() != 1 {
		t.Fatalf("allowed event not delivered")
	}
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	s := &fakeSender{}
	n := New([]Sender{s}, nil, discardLogger())

	_ = n.Notify(context.Background(), EventDailyReset, "reset", "body")
	_ = n.Notify(context.Background(), EventStartup, "up", "body")
	if s.sent() != 2 {
		t.Fatalf("expected 2 deliveries, got %d", s.sent())
	}
}

func TestNotifierPartialFailure(t *testing.T) {
	ok := &fakeSender{}
	bad := &fakeSender{err: errors.New("boom")}
	n := New([]Sender{bad, ok}, nil, discardLogger())

	err := n.Notify(context.Background(), EventStartup, "up", "body")
	if err == nil {
		t.Fatalf("expected combined error")
	}
	// The failing sender must not block the healthy one.
	if ok.sent() != 1 {
		t.Fatalf("healthy sender skipped")
	}
}

// fakeLedger serves canned snapshots.
type fakeLedger struct {
	mu   sync.Mutex
	snap risk.Snapshot
}

func (f *fakeLedger) CurrentSnapshot() risk.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeLedger) set(snap risk.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
}

func TestAlertWatcherBreakerTransition(t *testing.T) {
	boundary := time.Now().Add(time.Hour)
	ledger := &fakeLedger{snap: risk.Snapshot{ResetBoundary: boundary}}
	s := &fakeSender{}
	w := NewAlertWatcher(ledger, New([]Sender{s}, nil, discardLogger()), 1000, time.Second)
	w.boundary = boundary

	ctx := context.Background()

	w.check(ctx)
	if s.sent() != 0 {
		t.Fatalf("healthy ledger produced an alert")
	}

	ledger.set(risk.Snapshot{BreakerTripped: true, ConsecutiveFailures: 5, ResetBoundary: boundary})
	w.check(ctx)
	w.check(ctx)
	if s.sent() != 1 {
		t.Fatalf("expected exactly one breaker alert, got %d", s.sent())
	}

	// Breaker clears and trips again: a fresh alert fires.
	ledger.set(risk.Snapshot{ResetBoundary: boundary})
	w.check(ctx)
	ledger.set(risk.Snapshot{BreakerTripped: true, ConsecutiveFailures: 5, ResetBoundary: boundary})
	w.check(ctx)
	if s.sent() != 2 {
		t.Fatalf("re-trip not alerted, got %d", s.sent())
	}
}

func TestAlertWatcherDailyLossAndReset(t *testing.T) {
	boundary := time.Now().Add(time.Hour)
	ledger := &fakeLedger{snap: risk.Snapshot{DailyLoss: 1000, ResetBoundary: boundary}}
	s := &fakeSender{}
	w := NewAlertWatcher(ledger, New([]Sender{s}, nil, discardLogger()), 1000, time.Second)
	w.boundary = boundary

	ctx := context.Background()

	w.check(ctx)
	w.check(ctx)
	if s.sent() != 1 {
		t.Fatalf("expected one daily loss alert, got %d", s.sent())
	}

	// Boundary rolls: a reset alert fires and the halt latch clears.
	ledger.set(risk.Snapshot{ResetBoundary: boundary.Add(24 * time.Hour)})
	w.check(ctx)
	if s.sent() != 2 {
		t.Fatalf("expected reset alert, got %d", s.sent())
	}

	ledger.set(risk.Snapshot{DailyLoss: 1000, ResetBoundary: boundary.Add(24 * time.Hour)})
	w.check(ctx)
	if s.sent() != 3 {
		t.Fatalf("halt latch did not clear on reset, got %d", s.sent())
	}
}
