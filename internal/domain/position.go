package domain

import "time"

// PositionStatus tracks a reserved position's lifecycle. A position opens when
// a signal is admitted and reaches exactly one terminal status on settlement.
type PositionStatus string

const (
	PositionOpen           PositionStatus = "OPEN"
	PositionSettledWin     PositionStatus = "SETTLED_WIN"
	PositionSettledLoss    PositionStatus = "SETTLED_LOSS"
	PositionSettledExpired PositionStatus = "SETTLED_EXPIRED"
)

// Position reserves capital against a pair's position limit. All positions
// are owned by the risk ledger; no other component mutates them.
type Position struct {
	ID       string
	SignalID string
	Pair     Pair
	Amount   float64 // USD notional
	Strategy string
	OpenedAt time.Time
}
