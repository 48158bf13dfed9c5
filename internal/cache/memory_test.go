package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

func quoteAt(venue string, pair domain.Pair, price float64, at time.Time) domain.Quote {
	return domain.Quote{
		Venue:        venue,
		Pair:         pair,
		Price:        price,
		LiquidityUSD: 1_000_000,
		FeeRate:      0.003,
		Reliability:  0.9,
		ObservedAt:   at,
	}
}

func TestPutNewerWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pair := domain.Pair{TokenIn: "LINK", TokenOut: "USDC"}
	now := time.Now().UTC()

	if err := m.Put(ctx, quoteAt("venue_a", pair, 15.00, now)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := m.Put(ctx, quoteAt("venue_a", pair, 15.10, now.Add(time.Second))); err != nil {
		t.Fatalf("put: %v", err)
	}

	q, err := m.Get(ctx, "venue_a", pair)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if q.Price != 15.10 {
		t.Fatalf("newer quote not stored: %f", q.Price)
	}

	// A late-arriving older quote must not clobber the newer one.
	if err := m.Put(ctx, quoteAt("venue_a", pair, 14.00, now.Add(-time.Second))); err != nil {
		t.Fatalf("put: %v", err)
	}
	q, _ = m.Get(ctx, "venue_a", pair)
	if q.Price != 15.10 {
		t.Fatalf("stale quote overwrote newer one: %f", q.Price)
	}
}

func TestGetMissing(t *testing.T) {
	m := NewMemory()
	pair := domain.Pair{TokenIn: "LINK", TokenOut: "USDC"}

	_, err := m.Get(context.Background(), "venue_a", pair)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFreshQuotesExcludesStale(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pair := domain.Pair{TokenIn: "LINK", TokenOut: "USDC"}
	now := time.Now().UTC()
	ttl := 5 * time.Second

	m.Put(ctx, quoteAt("venue_a", pair, 15.00, now))
	m.Put(ctx, quoteAt("venue_b", pair, 15.05, now.Add(-6*time.Second)))
	m.Put(ctx, quoteAt("venue_c", pair, 15.10, now.Add(-time.Second)))

	quotes, err := m.FreshQuotes(ctx, pair, []string{"venue_a", "venue_b", "venue_c", "venue_d"}, ttl, now)
	if err != nil {
		t.Fatalf("fresh quotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 fresh quotes, got %d", len(quotes))
	}
	for _, q := range quotes {
		if q.Venue == "venue_b" {
			t.Fatalf("stale quote returned")
		}
	}
}

func TestSweepDropsOnlyStale(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	pair := domain.Pair{TokenIn: "LINK", TokenOut: "USDC"}
	now := time.Now().UTC()
	ttl := 5 * time.Second

	m.Put(ctx, quoteAt("venue_a", pair, 15.00, now))
	m.Put(ctx, quoteAt("venue_b", pair, 15.05, now.Add(-time.Minute)))

	if removed := m.Sweep(ttl, now); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := m.Get(ctx, "venue_a", pair); err != nil {
		t.Fatalf("fresh entry swept: %v", err)
	}
	if _, err := m.Get(ctx, "venue_b", pair); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("stale entry survived sweep: %v", err)
	}
}
