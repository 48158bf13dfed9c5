package domain

import "time"

// StrategyWeights is the periodically recomputed capital-allocation snapshot
// from the strategy-weighting collaborator. Snapshots are replaced wholesale,
// never merged, and read immutably per decision cycle.
type StrategyWeights struct {
	Version             uint64
	Weights             map[string]float64 // strategy -> weight in [0,1], sums to 1
	ConfidenceThreshold float64            // [0,1]
	ComputedAt          time.Time
}

// WeightFor returns the allocation weight for strategy, or 0 when unknown.
func (w StrategyWeights) WeightFor(strategy string) float64 {
	return w.Weights[strategy]
}

// Clone returns a deep copy so callers can hold a snapshot without aliasing
// the provider's map.
func (w StrategyWeights) Clone() StrategyWeights {
	out := w
	out.Weights = make(map[string]float64, len(w.Weights))
	for k, v := range w.Weights {
		out.Weights[k] = v
	}
	return out
}
