package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedWeights() domain.StrategyWeights {
	return domain.StrategyWeights{
		Version:             1,
		Weights:             map[string]float64{"cross_venue_spread": 1},
		ConfidenceThreshold: 0.7,
		ComputedAt:          time.Now().UTC(),
	}
}

func win(strategy string) Outcome {
	return Outcome{
		Result:   domain.ExecutionResult{Status: domain.ExecConfirmed, ActualProfit: 10},
		Strategy: strategy,
	}
}

func loss(strategy string) Outcome {
	return Outcome{
		Result:   domain.ExecutionResult{Status: domain.ExecFailed, ActualProfit: -10},
		Strategy: strategy,
	}
}

func TestCurrentReturnsIndependentCopy(t *testing.T) {
	p := NewProvider(nil, seedWeights(), time.Minute, 10, discardLogger())

	snap := p.Current()
	snap.Weights["cross_venue_spread"] = 0

	again := p.Current()
	if again.Weights["cross_venue_spread"] != 1 {
		t.Fatalf("snapshot mutation leaked into provider: %f", again.Weights["cross_venue_spread"])
	}
}

func TestRefreshBumpsVersion(t *testing.T) {
	p := NewProvider(NewTrailingRecomputer(0.6, 0.9), seedWeights(), time.Minute, 10, discardLogger())

	p.window = []Outcome{win("cross_venue_spread"), loss("cross_venue_spread")}
	p.refresh(context.Background())

	snap := p.Current()
	if snap.Version != 2 {
		t.Fatalf("expected version 2 after refresh, got %d", snap.Version)
	}
}

type failingRecomputer struct{}

func (failingRecomputer) Recompute(context.Context, []Outcome) (domain.StrategyWeights, error) {
	return domain.StrategyWeights{}, errors.New("endpoint unavailable")
}

func TestRefreshKeepsSnapshotOnError(t *testing.T) {
	p := NewProvider(failingRecomputer{}, seedWeights(), time.Minute, 10, discardLogger())

	p.window = []Outcome{win("cross_venue_spread")}
	p.refresh(context.Background())

	snap := p.Current()
	if snap.Version != 1 || snap.ConfidenceThreshold != 0.7 {
		t.Fatalf("failed refresh replaced the snapshot: %+v", snap)
	}
}

func TestReportOutcomeNeverBlocks(t *testing.T) {
	p := NewProvider(nil, seedWeights(), time.Minute, 10, discardLogger())

	// Nothing drains outcomeCh here; filling well past its capacity must not
	// stall the caller.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			p.ReportOutcome(domain.ExecutionResult{SignalID: "s", Status: domain.ExecConfirmed}, "cross_venue_spread")
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ReportOutcome blocked on a full buffer")
	}
}

func TestTrailingWeightsSumToOne(t *testing.T) {
	r := NewTrailingRecomputer(0.6, 0.9)

	outcomes := []Outcome{
		win("cross_venue_spread"), win("cross_venue_spread"), loss("cross_venue_spread"),
		win("bridge_hop"), loss("bridge_hop"), loss("bridge_hop"),
	}
	snap, err := r.Recompute(context.Background(), outcomes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sum float64
	for _, w := range snap.Weights {
		if w <= 0 {
			t.Fatalf("non-positive weight: %+v", snap.Weights)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum to %f", sum)
	}
	if snap.Weights["cross_venue_spread"] <= snap.Weights["bridge_hop"] {
		t.Fatalf("better win rate did not earn more weight: %+v", snap.Weights)
	}
}

func TestTrailingThresholdTightensWithFailures(t *testing.T) {
	r := NewTrailingRecomputer(0.6, 0.9)

	allWins, err := r.Recompute(context.Background(), []Outcome{
		win("cross_venue_spread"), win("cross_venue_spread"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allWins.ConfidenceThreshold != 0.6 {
		t.Fatalf("all-win threshold should stay at the floor, got %f", allWins.ConfidenceThreshold)
	}

	allLosses, err := r.Recompute(context.Background(), []Outcome{
		loss("cross_venue_spread"), loss("cross_venue_spread"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allLosses.ConfidenceThreshold != 0.9 {
		t.Fatalf("all-loss threshold should hit the cap, got %f", allLosses.ConfidenceThreshold)
	}
}

func TestRunWindowTrimming(t *testing.T) {
	p := NewProvider(nil, seedWeights(), time.Hour, 3, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	for i := 0; i < 10; i++ {
		p.ReportOutcome(domain.ExecutionResult{Status: domain.ExecConfirmed, ActualProfit: 1}, "cross_venue_spread")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.outcomeCh) == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if len(p.window) > 3 {
		t.Fatalf("window not trimmed: %d entries", len(p.window))
	}
}
