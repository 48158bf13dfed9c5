package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aineonlabs/arbd/internal/domain"
)

// QuoteCache implements domain.QuoteCache using Redis hashes. Each quote is
// stored at key "quote:{venue}:{pair}" with fields for price, liquidity, fee,
// reliability, and a Unix nanosecond observation timestamp. Keys carry a
// server-side expiry as a backstop; freshness is always re-checked on read.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache backed by the given Client. ttl bounds
// the server-side key expiry.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteCacheKey(venue string, pair domain.Pair) string {
	return "quote:" + venue + ":" + pair.String()
}

// Put stores the quote, superseding any previous entry for the same key.
func (qc *QuoteCache) Put(ctx context.Context, q domain.Quote) error {
	key := quoteCacheKey(q.Venue, q.Pair)
	fields := map[string]interface{}{
		"price":       strconv.FormatFloat(q.Price, 'f', -1, 64),
		"liquidity":   strconv.FormatFloat(q.LiquidityUSD, 'f', -1, 64),
		"fee":         strconv.FormatFloat(q.FeeRate, 'f', -1, 64),
		"reliability": strconv.FormatFloat(q.Reliability, 'f', -1, 64),
		"ts":          strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}
	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	// Double the TTL so a slightly stale entry is still readable for
	// diagnostics; reads enforce the real freshness window.
	pipe.Expire(ctx, key, 2*qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put quote %s: %w", key, err)
	}
	return nil
}

// Get retrieves the latest quote for (venue, pair). It returns
// domain.ErrNotFound when the key does not exist.
func (qc *QuoteCache) Get(ctx context.Context, venue string, pair domain.Pair) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteCacheKey(venue, pair)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s %s: %w", venue, pair, err)
	}
	return parseQuote(venue, pair, vals)
}

// FreshQuotes returns the fresh quotes for pair across venues using a single
// pipeline round trip. Missing, stale, or unparsable entries are omitted.
func (qc *QuoteCache) FreshQuotes(ctx context.Context, pair domain.Pair, venues []string, ttl time.Duration, now time.Time) ([]domain.Quote, error) {
	if len(venues) == 0 {
		return nil, nil
	}

	pipe := qc.rdb.Pipeline()
	cmds := make(map[string]*redis.MapStringStringCmd, len(venues))
	for _, v := range venues {
		cmds[v] = pipe.HGetAll(ctx, quoteCacheKey(v, pair))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: fresh quotes pipeline: %w", err)
	}

	out := make([]domain.Quote, 0, len(venues))
	for _, v := range venues {
		vals, err := cmds[v].Result()
		if err != nil {
			continue
		}
		q, err := parseQuote(v, pair, vals)
		if err != nil {
			continue
		}
		if q.Fresh(ttl, now) {
			out = append(out, q)
		}
	}
	return out, nil
}

func parseQuote(venue string, pair domain.Pair, vals map[string]string) (domain.Quote, error) {
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}
	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse price: %w", err)
	}
	liquidity, err := strconv.ParseFloat(vals["liquidity"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse liquidity: %w", err)
	}
	fee, err := strconv.ParseFloat(vals["fee"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse fee: %w", err)
	}
	reliability, err := strconv.ParseFloat(vals["reliability"], 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse reliability: %w", err)
	}
	tsNano, err := strconv.ParseInt(vals["ts"], 10, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse ts: %w", err)
	}
	return domain.Quote{
		Venue:        venue,
		Pair:         pair,
		Price:        price,
		LiquidityUSD: liquidity,
		FeeRate:      fee,
		Reliability:  reliability,
		ObservedAt:   time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
