package domain

import "time"

// ExecutionSignal is an admitted, capital-bounded execution instruction. It is
// created only after the risk ledger admits the underlying opportunity and is
// immutable afterwards. A signal must never be executed past Deadline.
type ExecutionSignal struct {
	ID               string
	OpportunityID    uint64
	Route            Route
	Amount           float64 // USD notional
	Strategy         string
	Priority         int     // 1 (highest) .. 5
	Confidence       float64 // effective confidence at admission time
	RiskScore        float64 // [0,1], higher is riskier
	GaslessRequested bool
	CreatedAt        time.Time
	Deadline         time.Time
}

// Expired reports whether the signal's hard deadline has passed.
func (s ExecutionSignal) Expired(now time.Time) bool {
	return now.After(s.Deadline)
}

// ExecutionStatus is the terminal status reported by the executor.
type ExecutionStatus string

const (
	ExecConfirmed ExecutionStatus = "CONFIRMED"
	ExecFailed    ExecutionStatus = "FAILED"
	ExecExpired   ExecutionStatus = "EXPIRED"
)

// ExecutionResult is produced exactly once per signal by the external
// executor and consumed exactly once by the risk ledger.
type ExecutionResult struct {
	SignalID        string
	Status          ExecutionStatus
	ActualProfit    float64 // USD, negative on loss
	SlippagePct     float64
	GasUsed         uint64
	FeePaid         float64
	ExecutionTimeMs int64
}
