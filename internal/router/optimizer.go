// Package router evaluates direct and bridge-token routes for a pair and
// ranks them deterministically by net profit.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aineonlabs/arbd/internal/domain"
)

// Multi-hop swaps cost roughly 2.6x a single hop in gas.
const multiHopGasFactor = 2.6

// Config holds optimizer tunables.
type Config struct {
	BridgeTokens     []string
	LiquidityNormUSD float64
	GasBaseUnits     uint64
	PerVenueTimeout  time.Duration
}

// Optimizer finds the best direct and two-hop routes across the venue set.
// It only reports gas estimates; penalizing multi-hop gas in route choice is
// the caller's job.
type Optimizer struct {
	venues []domain.VenueClient
	cfg    Config
	logger *slog.Logger
}

// New creates an Optimizer over the given venues.
func New(venues []domain.VenueClient, cfg Config, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		venues: venues,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "route_optimizer")),
	}
}

// venueQuote is one venue's answer for a hop, kept in stable venue order.
type venueQuote struct {
	order int
	quote domain.Quote
}

// quoteHop fetches quotes for (tokenIn -> tokenOut) from every venue
// concurrently and returns them in stable venue order. Venues that fail to
// quote are omitted.
func (o *Optimizer) quoteHop(ctx context.Context, pair domain.Pair) []venueQuote {
	results := make([]*venueQuote, len(o.venues))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, vc := range o.venues {
		i, vc := i, vc
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, o.cfg.PerVenueTimeout)
			defer cancel()
			q, err := vc.Quote(callCtx, pair)
			if err != nil || q.Price <= 0 {
				return nil
			}
			mu.Lock()
			results[i] = &venueQuote{order: i, quote: q}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	out := make([]venueQuote, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// bestHop picks the venue with the highest fee-adjusted output for the hop,
// breaking ties by stable venue order.
func bestHop(quotes []venueQuote, amountIn float64) (venueQuote, bool) {
	best := venueQuote{}
	bestOut := -1.0
	found := false
	for _, vq := range quotes {
		out := amountIn * vq.quote.Price * (1 - vq.quote.FeeRate)
		if out > bestOut {
			best, bestOut, found = vq, out, true
		}
	}
	return best, found
}

// CompareRoutes evaluates the best direct route and one two-hop candidate per
// bridge token, returning them ranked by net profit descending with quality
// score as the tie-break. The result is deterministic for identical quotes.
func (o *Optimizer) CompareRoutes(ctx context.Context, pair domain.Pair, amountIn float64) ([]domain.Route, error) {
	if amountIn <= 0 {
		return nil, fmt.Errorf("router: non-positive amount %f", amountIn)
	}

	var routes []domain.Route

	if direct, ok := o.directRoute(ctx, pair, amountIn); ok {
		routes = append(routes, direct)
	}
	for _, bridge := range o.cfg.BridgeTokens {
		if bridge == pair.TokenIn || bridge == pair.TokenOut {
			continue
		}
		if hopped, ok := o.bridgeRoute(ctx, pair, bridge, amountIn); ok {
			routes = append(routes, hopped)
		}
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("router: %w for %s", domain.ErrNoRoute, pair)
	}

	sort.SliceStable(routes, func(i, j int) bool {
		ni, nj := routes[i].NetProfit(), routes[j].NetProfit()
		if ni != nj {
			return ni > nj
		}
		return routes[i].QualityScore > routes[j].QualityScore
	})
	return routes, nil
}

// BestRoute returns the top-ranked route for pair and amountIn.
func (o *Optimizer) BestRoute(ctx context.Context, pair domain.Pair, amountIn float64) (domain.Route, error) {
	routes, err := o.CompareRoutes(ctx, pair, amountIn)
	if err != nil {
		return domain.Route{}, err
	}
	return routes[0], nil
}

// directRoute builds the single best direct route, if any venue quotes the
// pair.
func (o *Optimizer) directRoute(ctx context.Context, pair domain.Pair, amountIn float64) (domain.Route, bool) {
	quotes := o.quoteHop(ctx, pair)
	best, ok := bestHop(quotes, amountIn)
	if !ok {
		return domain.Route{}, false
	}
	q := best.quote

	expectedOut := amountIn * q.Price * (1 - q.FeeRate)
	fees := amountIn * q.Price * q.FeeRate
	route := domain.Route{
		Hops: []domain.RouteHop{{
			Venue:    q.Venue,
			TokenIn:  pair.TokenIn,
			TokenOut: pair.TokenOut,
			FeeRate:  q.FeeRate,
		}},
		AmountIn:     amountIn,
		ExpectedOut:  expectedOut,
		TotalFees:    fees,
		GasEstimate:  o.cfg.GasBaseUnits,
		QualityScore: o.qualityScore(q),
	}
	return route, true
}

// bridgeRoute builds a two-hop route through bridge, choosing the best venue
// independently for each hop. A hop nobody can quote kills the candidate;
// a zero-output hop is never returned.
func (o *Optimizer) bridgeRoute(ctx context.Context, pair domain.Pair, bridge string, amountIn float64) (domain.Route, bool) {
	hop1Pair := domain.Pair{TokenIn: pair.TokenIn, TokenOut: bridge}
	hop2Pair := domain.Pair{TokenIn: bridge, TokenOut: pair.TokenOut}

	hop1, ok := bestHop(o.quoteHop(ctx, hop1Pair), amountIn)
	if !ok {
		return domain.Route{}, false
	}
	q1 := hop1.quote
	mid := amountIn * q1.Price * (1 - q1.FeeRate)
	if mid <= 0 {
		return domain.Route{}, false
	}

	hop2, ok := bestHop(o.quoteHop(ctx, hop2Pair), mid)
	if !ok {
		return domain.Route{}, false
	}
	q2 := hop2.quote
	expectedOut := mid * q2.Price * (1 - q2.FeeRate)
	if expectedOut <= 0 {
		return domain.Route{}, false
	}

	fees := amountIn*q1.Price*q1.FeeRate + mid*q2.Price*q2.FeeRate
	route := domain.Route{
		Hops: []domain.RouteHop{
			{Venue: q1.Venue, TokenIn: pair.TokenIn, TokenOut: bridge, FeeRate: q1.FeeRate},
			{Venue: q2.Venue, TokenIn: bridge, TokenOut: pair.TokenOut, FeeRate: q2.FeeRate},
		},
		AmountIn:     amountIn,
		ExpectedOut:  expectedOut,
		TotalFees:    fees,
		GasEstimate:  uint64(float64(o.cfg.GasBaseUnits) * multiHopGasFactor),
		QualityScore: (o.qualityScore(q1) + o.qualityScore(q2)) / 2,
	}
	if err := route.Validate(); err != nil {
		o.logger.Warn("discarding invalid bridge route", slog.String("error", err.Error()))
		return domain.Route{}, false
	}
	return route, true
}

// qualityScore blends reliability, liquidity, and fee cost into [0,1].
func (o *Optimizer) qualityScore(q domain.Quote) float64 {
	liq := q.LiquidityUSD / o.cfg.LiquidityNormUSD
	if liq > 1 {
		liq = 1
	}
	feeTerm := 1 - q.FeeRate*10
	if feeTerm < 0 {
		feeTerm = 0
	}
	if feeTerm > 1 {
		feeTerm = 1
	}
	return 0.4*q.Reliability + 0.3*liq + 0.3*feeTerm
}
