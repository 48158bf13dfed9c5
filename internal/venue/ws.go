package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aineonlabs/arbd/internal/domain"
)

const (
	wsHandshakeTimeout = 15 * time.Second
	wsWriteWait        = 10 * time.Second
	wsPongWait         = 60 * time.Second
	wsPingPeriod       = (wsPongWait * 9) / 10
	wsReconnectDelay   = 2 * time.Second
)

// WSFeed maintains a streaming connection to a venue's quote feed and serves
// the latest streamed quote per pair. It implements domain.VenueClient: Quote
// answers from the in-memory snapshot rather than a network round trip, so a
// stalled feed surfaces as domain.ErrNoQuote during scanning instead of a
// blocking call.
type WSFeed struct {
	name        string
	wsURL       string
	feeRate     float64
	reliability float64
	pairs       []domain.Pair
	logger      *slog.Logger

	mu     sync.RWMutex
	latest map[domain.Pair]domain.Quote
}

// NewWSFeed creates a feed that subscribes to quote updates for pairs.
func NewWSFeed(name, wsURL string, feeRate, reliability float64, pairs []domain.Pair, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		name:        name,
		wsURL:       wsURL,
		feeRate:     feeRate,
		reliability: reliability,
		pairs:       pairs,
		logger:      logger.With(slog.String("component", "ws_feed"), slog.String("venue", name)),
		latest:      make(map[domain.Pair]domain.Quote),
	}
}

// Name returns the configured venue name.
func (f *WSFeed) Name() string { return f.name }

// Quote returns the most recently streamed quote for pair. Freshness against
// the cache TTL is the scanner's concern; the feed only refuses pairs it has
// never seen.
func (f *WSFeed) Quote(_ context.Context, pair domain.Pair) (domain.Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.latest[pair]
	if !ok {
		return domain.Quote{}, fmt.Errorf("venue %s: %w for %s", f.name, domain.ErrNoQuote, pair)
	}
	return q, nil
}

// Run connects, subscribes to the configured pairs, and keeps reading until
// ctx is cancelled. Reconnects with a fixed delay on disconnect.
func (f *WSFeed) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("feed disconnected, reconnecting", slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wsReconnectDelay):
		}
	}
}

// subscribeCommand is the JSON command sent after connecting.
type subscribeCommand struct {
	Op    string   `json:"op"`
	Pairs []string `json:"pairs"`
}

// quoteEvent is the JSON shape of one streamed quote update.
type quoteEvent struct {
	Event        string  `json:"event"`
	Pair         string  `json:"pair"`
	Price        float64 `json:"price"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	FeeRate      float64 `json:"fee_rate"`
	Timestamp    string  `json:"timestamp"`
}

func (f *WSFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("venue %s: connect: %w", f.name, err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	symbols := make([]string, 0, len(f.pairs))
	for _, p := range f.pairs {
		symbols = append(symbols, p.String())
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(subscribeCommand{Op: "subscribe", Pairs: symbols}); err != nil {
		return fmt.Errorf("venue %s: subscribe: %w", f.name, err)
	}
	f.logger.Info("feed subscribed", slog.Int("pairs", len(symbols)))

	// Ping loop ends when ctx is cancelled or the connection dies.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("venue %s: read: %w", f.name, err)
		}
		if err := f.handleMessage(data); err != nil {
			f.logger.Warn("feed message dropped", slog.String("error", err.Error()))
		}
	}
}

func (f *WSFeed) handleMessage(data []byte) error {
	var ev quoteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	if ev.Event != "quote" || ev.Price <= 0 {
		return nil
	}
	pair, err := domain.ParsePair(ev.Pair)
	if err != nil {
		return err
	}

	ts := time.Now().UTC()
	if ev.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
			ts = t
		}
	}
	fee := ev.FeeRate
	if fee == 0 {
		fee = f.feeRate
	}

	f.mu.Lock()
	f.latest[pair] = domain.Quote{
		Venue:        f.name,
		Pair:         pair,
		Price:        ev.Price,
		LiquidityUSD: ev.LiquidityUSD,
		FeeRate:      fee,
		Reliability:  f.reliability,
		ObservedAt:   ts,
	}
	f.mu.Unlock()
	return nil
}

// Compile-time interface check.
var _ domain.VenueClient = (*WSFeed)(nil)
