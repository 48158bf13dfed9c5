package domain

import "time"

// Risk flags attached to an Opportunity by the scanner. They inform downstream
// risk scoring; they never block emission.
const (
	FlagLowLiquidityBuy  = "low_liquidity_buy"
	FlagLowLiquiditySell = "low_liquidity_sell"
)

// Opportunity is a price discrepancy between two venues for the same pair.
// It is derived purely from fresh quotes, lives for a single scan cycle, and
// is never persisted.
type Opportunity struct {
	ID              uint64 // unique and monotonic within the process
	Pair            Pair
	BuyVenue        string
	SellVenue       string
	BuyPrice        float64
	SellPrice       float64
	SpreadPct       float64
	SuggestedAmount float64 // USD notional
	Confidence      float64 // scanner-local score in [0,1]
	RiskFlags       []string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the opportunity is past its validity window.
func (o Opportunity) Expired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// HasFlag reports whether the given risk flag is set.
func (o Opportunity) HasFlag(flag string) bool {
	for _, f := range o.RiskFlags {
		if f == flag {
			return true
		}
	}
	return false
}
