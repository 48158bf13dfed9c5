// Package cache provides the in-process quote cache used by the scanner.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

type quoteKey struct {
	venue string
	pair  domain.Pair
}

// Memory is an in-memory quote cache keyed by (venue, pair). Entries are
// superseded by newer quotes and lazily dropped once older than the sweep TTL.
type Memory struct {
	mu     sync.RWMutex
	quotes map[quoteKey]domain.Quote
}

// NewMemory creates an empty in-memory quote cache.
func NewMemory() *Memory {
	return &Memory{quotes: make(map[quoteKey]domain.Quote)}
}

// Put stores q, superseding any older quote for the same (venue, pair). An
// older quote never overwrites a newer one.
func (m *Memory) Put(_ context.Context, q domain.Quote) error {
	key := quoteKey{venue: q.Venue, pair: q.Pair}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.quotes[key]; ok && prev.ObservedAt.After(q.ObservedAt) {
		return nil
	}
	m.quotes[key] = q
	return nil
}

// Get returns the latest quote for (venue, pair), or domain.ErrNotFound.
func (m *Memory) Get(_ context.Context, venue string, pair domain.Pair) (domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotes[quoteKey{venue: venue, pair: pair}]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

// FreshQuotes returns the quotes for pair across venues that are still fresh
// at now. Missing or stale entries are omitted.
func (m *Memory) FreshQuotes(_ context.Context, pair domain.Pair, venues []string, ttl time.Duration, now time.Time) ([]domain.Quote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Quote, 0, len(venues))
	for _, v := range venues {
		q, ok := m.quotes[quoteKey{venue: v, pair: pair}]
		if !ok || !q.Fresh(ttl, now) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// Sweep drops entries older than ttl. Run it periodically to bound memory on
// long uptimes; correctness never depends on it, reads check freshness.
func (m *Memory) Sweep(ttl time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, q := range m.quotes {
		if !q.Fresh(ttl, now) {
			delete(m.quotes, k)
			removed++
		}
	}
	return removed
}

// Compile-time interface check.
var _ domain.QuoteCache = (*Memory)(nil)
