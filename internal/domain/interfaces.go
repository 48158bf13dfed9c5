package domain

import (
	"context"
	"time"
)

// VenueClient fetches one price/liquidity/fee quote from a single venue for a
// pair. Implementations must honor ctx deadlines; a timeout is a normal
// outcome, not an exceptional one.
type VenueClient interface {
	Name() string
	Quote(ctx context.Context, pair Pair) (Quote, error)
}

// QuoteCache stores the latest quote per (venue, pair) key. Entries older
// than the TTL are treated as absent.
type QuoteCache interface {
	Put(ctx context.Context, q Quote) error
	Get(ctx context.Context, venue string, pair Pair) (Quote, error)
	// FreshQuotes returns all quotes for pair across the given venues that
	// are still fresh at now. Missing or stale entries are omitted.
	FreshQuotes(ctx context.Context, pair Pair, venues []string, ttl time.Duration, now time.Time) ([]Quote, error)
}

// Executor is the external execution collaborator. Submit has at-most-once
// semantics from the core's perspective: a dispatched signal is never retried.
type Executor interface {
	Submit(ctx context.Context, sig ExecutionSignal) (ExecutionResult, error)
}
