package domain

import "time"

// Quote is a single price/liquidity/fee observation from one venue for one
// pair. Quotes are immutable once created; a newer Quote for the same
// (venue, pair) key supersedes an older one, it never mutates it.
type Quote struct {
	Venue        string
	Pair         Pair
	Price        float64 // TokenOut per TokenIn
	LiquidityUSD float64
	FeeRate      float64 // taker fee fraction, e.g. 0.003
	Reliability  float64 // venue reliability score in [0,1]
	ObservedAt   time.Time
}

// Fresh reports whether the quote is still usable at now given the cache TTL.
func (q Quote) Fresh(ttl time.Duration, now time.Time) bool {
	return now.Sub(q.ObservedAt) < ttl
}
