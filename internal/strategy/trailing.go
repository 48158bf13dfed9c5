package strategy

import (
	"context"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

// TrailingRecomputer derives strategy weights from trailing win rates. It is
// the built-in fallback used when no external weighting endpoint is
// configured: each strategy's weight is proportional to a smoothed win rate
// over the outcome window, and the confidence threshold tightens as the
// overall failure rate rises.
type TrailingRecomputer struct {
	// BaseThreshold is the floor for the confidence threshold.
	BaseThreshold float64
	// MaxThreshold caps how far a losing streak can push the threshold.
	MaxThreshold float64
}

// NewTrailingRecomputer creates a recomputer with the given threshold band.
func NewTrailingRecomputer(baseThreshold, maxThreshold float64) *TrailingRecomputer {
	return &TrailingRecomputer{BaseThreshold: baseThreshold, MaxThreshold: maxThreshold}
}

// Recompute builds a fresh snapshot from the outcome window. Weights sum to 1
// across the strategies present in the window.
func (r *TrailingRecomputer) Recompute(_ context.Context, outcomes []Outcome) (domain.StrategyWeights, error) {
	wins := make(map[string]float64)
	totals := make(map[string]float64)
	var failed float64

	for _, o := range outcomes {
		totals[o.Strategy]++
		if o.Result.Status == domain.ExecConfirmed && o.Result.ActualProfit >= 0 {
			wins[o.Strategy]++
		} else {
			failed++
		}
	}

	// Laplace-smoothed win rate so a single outcome cannot pin a strategy
	// to weight 0 or 1.
	scores := make(map[string]float64, len(totals))
	var sum float64
	for name, total := range totals {
		score := (wins[name] + 1) / (total + 2)
		scores[name] = score
		sum += score
	}
	weights := make(map[string]float64, len(scores))
	for name, score := range scores {
		weights[name] = score / sum
	}

	threshold := r.BaseThreshold
	if len(outcomes) > 0 {
		failureRate := failed / float64(len(outcomes))
		threshold += (r.MaxThreshold - r.BaseThreshold) * failureRate
	}

	return domain.StrategyWeights{
		Weights:             weights,
		ConfidenceThreshold: threshold,
		ComputedAt:          time.Now().UTC(),
	}, nil
}

// Compile-time interface check.
var _ Recomputer = (*TrailingRecomputer)(nil)
