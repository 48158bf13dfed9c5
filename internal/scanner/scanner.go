// Package scanner discovers cross-venue price discrepancies. Each scan cycle
// fans out one quote fetch per (pair, venue), caches the results, and derives
// spread opportunities from pairs with at least two fresh quotes.
package scanner

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aineonlabs/arbd/internal/domain"
)

// Config holds scanner tunables.
type Config struct {
	MinSpreadPct      float64
	QuoteTTL          time.Duration
	PerVenueTimeout   time.Duration
	LiquidityFloorUSD float64
	LiquidityNormUSD  float64
	OpportunityTTL    time.Duration
	DepthFraction     float64
	MaxPositionUSD    float64
}

// Scanner runs scan cycles against a fixed venue set.
type Scanner struct {
	venues []domain.VenueClient
	cache  domain.QuoteCache
	cfg    Config
	logger *slog.Logger

	seq atomic.Uint64 // monotonic opportunity IDs

	// now is swappable in tests.
	now func() time.Time
}

// New creates a Scanner. All quote reads and writes go through cache.
func New(venues []domain.VenueClient, cache domain.QuoteCache, cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		venues: venues,
		cache:  cache,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
		now:    time.Now,
	}
}

// Stats summarizes one scan cycle.
type Stats struct {
	Pairs         int
	QuotesFetched int
	VenuesFailed  int
	Opportunities int
	Elapsed       time.Duration
}

// ScanCycle fetches quotes for every configured pair across all venues
// concurrently and derives spread opportunities. Venue errors and timeouts
// are logged and swallowed; an empty result is not an error. Opportunities
// within a cycle carry no ordering guarantee.
func (s *Scanner) ScanCycle(ctx context.Context, pairs []domain.Pair) ([]domain.Opportunity, error) {
	start := s.now()
	stats := s.fetchQuotes(ctx, pairs)

	var opps []domain.Opportunity
	for _, pair := range pairs {
		derived, err := s.derivePair(ctx, pair)
		if err != nil {
			s.logger.Warn("derive failed", slog.String("pair", pair.String()), slog.String("error", err.Error()))
			continue
		}
		opps = append(opps, derived...)
	}

	stats.Pairs = len(pairs)
	stats.Opportunities = len(opps)
	stats.Elapsed = s.now().Sub(start)
	s.logger.Info("scan cycle complete",
		slog.Int("pairs", stats.Pairs),
		slog.Int("quotes", stats.QuotesFetched),
		slog.Int("venues_failed", stats.VenuesFailed),
		slog.Int("opportunities", stats.Opportunities),
		slog.Duration("elapsed", stats.Elapsed),
	)
	return opps, nil
}

// fetchQuotes issues one bounded fetch per (pair, venue) and stores accepted
// quotes in the cache. A failed venue contributes nothing for this cycle.
func (s *Scanner) fetchQuotes(ctx context.Context, pairs []domain.Pair) Stats {
	var fetched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for _, pair := range pairs {
		for _, vc := range s.venues {
			pair, vc := pair, vc
			g.Go(func() error {
				callCtx, cancel := context.WithTimeout(gctx, s.cfg.PerVenueTimeout)
				defer cancel()

				q, err := vc.Quote(callCtx, pair)
				if err != nil {
					failed.Add(1)
					s.logger.Debug("venue quote failed",
						slog.String("venue", vc.Name()),
						slog.String("pair", pair.String()),
						slog.String("error", err.Error()),
					)
					return nil // non-fatal, omit this venue for the cycle
				}
				if err := s.cache.Put(gctx, q); err != nil {
					s.logger.Warn("quote cache put failed",
						slog.String("venue", vc.Name()),
						slog.String("error", err.Error()),
					)
					return nil
				}
				fetched.Add(1)
				return nil
			})
		}
	}
	_ = g.Wait()

	return Stats{
		QuotesFetched: int(fetched.Load()),
		VenuesFailed:  int(failed.Load()),
	}
}

// derivePair builds opportunities for one pair from its fresh quotes. Fewer
// than two fresh quotes yields none.
func (s *Scanner) derivePair(ctx context.Context, pair domain.Pair) ([]domain.Opportunity, error) {
	now := s.now()
	venueNames := make([]string, 0, len(s.venues))
	for _, vc := range s.venues {
		venueNames = append(venueNames, vc.Name())
	}

	quotes, err := s.cache.FreshQuotes(ctx, pair, venueNames, s.cfg.QuoteTTL, now)
	if err != nil {
		return nil, err
	}
	if len(quotes) < 2 {
		return nil, nil
	}

	// Stable venue order keeps pairwise iteration deterministic for tests.
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Venue < quotes[j].Venue })

	var opps []domain.Opportunity
	for i := 0; i < len(quotes); i++ {
		for j := i + 1; j < len(quotes); j++ {
			buy, sell := quotes[i], quotes[j]
			if buy.Price > sell.Price {
				buy, sell = sell, buy
			}
			if buy.Price <= 0 || buy.Price == sell.Price {
				continue
			}
			spreadPct := (sell.Price - buy.Price) / buy.Price * 100
			if spreadPct <= s.cfg.MinSpreadPct {
				continue
			}
			opps = append(opps, s.buildOpportunity(pair, buy, sell, spreadPct, now))
		}
	}
	return opps, nil
}

func (s *Scanner) buildOpportunity(pair domain.Pair, buy, sell domain.Quote, spreadPct float64, now time.Time) domain.Opportunity {
	combined := buy.LiquidityUSD + sell.LiquidityUSD
	liqScore := combined / s.cfg.LiquidityNormUSD
	if liqScore > 1 {
		liqScore = 1
	}
	confidence := 0.5*(buy.Reliability+sell.Reliability)/2 + 0.3*liqScore

	var flags []string
	if buy.LiquidityUSD < s.cfg.LiquidityFloorUSD {
		flags = append(flags, domain.FlagLowLiquidityBuy)
	}
	if sell.LiquidityUSD < s.cfg.LiquidityFloorUSD {
		flags = append(flags, domain.FlagLowLiquiditySell)
	}

	// Size against the thinner side so the suggested amount is fillable.
	thin := buy.LiquidityUSD
	if sell.LiquidityUSD < thin {
		thin = sell.LiquidityUSD
	}
	amount := thin * s.cfg.DepthFraction
	if amount > s.cfg.MaxPositionUSD {
		amount = s.cfg.MaxPositionUSD
	}

	return domain.Opportunity{
		ID:              s.seq.Add(1),
		Pair:            pair,
		BuyVenue:        buy.Venue,
		SellVenue:       sell.Venue,
		BuyPrice:        buy.Price,
		SellPrice:       sell.Price,
		SpreadPct:       spreadPct,
		SuggestedAmount: amount,
		Confidence:      confidence,
		RiskFlags:       flags,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.OpportunityTTL),
	}
}
