package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aineonlabs/arbd/internal/cache"
	redisc "github.com/aineonlabs/arbd/internal/cache/redis"
	"github.com/aineonlabs/arbd/internal/config"
	"github.com/aineonlabs/arbd/internal/domain"
	"github.com/aineonlabs/arbd/internal/notify"
	"github.com/aineonlabs/arbd/internal/orchestrator"
	"github.com/aineonlabs/arbd/internal/risk"
	"github.com/aineonlabs/arbd/internal/router"
	"github.com/aineonlabs/arbd/internal/scanner"
	"github.com/aineonlabs/arbd/internal/server"
	"github.com/aineonlabs/arbd/internal/strategy"
	"github.com/aineonlabs/arbd/internal/venue"
)

// Deps holds every constructed dependency the operating modes need.
type Deps struct {
	Pairs        []domain.Pair
	Venues       []domain.VenueClient
	Feeds        []*venue.WSFeed // streaming venues needing a Run loop
	QuoteCache   domain.QuoteCache
	MemoryCache  *cache.Memory // nil when Redis is configured
	Scanner      *scanner.Scanner
	Router       *router.Optimizer
	Ledger       *risk.Ledger
	Weights      *strategy.Provider
	Orchestrator *orchestrator.Orchestrator
	Alerts       *notify.AlertWatcher // nil when no alert channel is configured
	Ops          *server.Server       // nil when the ops API is disabled
}

// Wire constructs the full dependency graph from configuration. The returned
// cleanup closes venue connections and the Redis client; call it once the
// application stops. executor may be nil in scan mode.
func Wire(ctx context.Context, cfg *config.Config, executor domain.Executor, logger *slog.Logger) (*Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pairs, err := cfg.Scanner.ParsedPairs()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: parse pairs: %w", err)
	}

	// Quote cache: Redis when configured, in-memory otherwise.
	var quoteCache domain.QuoteCache
	var memCache *cache.Memory
	if cfg.Redis.Addr != "" {
		client, err := redisc.New(ctx, redisc.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: redis: %w", err)
		}
		closers = append(closers, func() { _ = client.Close() })
		quoteCache = redisc.NewQuoteCache(client, cfg.Scanner.QuoteTTL())
	} else {
		memCache = cache.NewMemory()
		quoteCache = memCache
	}

	// Venue clients.
	venues := make([]domain.VenueClient, 0, len(cfg.Venues))
	var feeds []*venue.WSFeed
	for _, vc := range cfg.Venues {
		switch vc.Kind {
		case "rest":
			venues = append(venues, venue.NewRESTClient(vc.Name, vc.BaseURL, vc.FeeRate, vc.Reliability))
		case "ws":
			feed := venue.NewWSFeed(vc.Name, vc.WsURL, vc.FeeRate, vc.Reliability, pairs, logger)
			venues = append(venues, feed)
			feeds = append(feeds, feed)
		case "onchain":
			oc, err := venue.NewOnchainClient(ctx, venue.OnchainConfig{
				Name:         vc.Name,
				RPCURL:       vc.RPCURL,
				RouterAddr:   vc.RouterAddr,
				Tokens:       vc.Tokens,
				Decimals:     vc.TokenDecimals,
				FeeRate:      vc.FeeRate,
				Reliability:  vc.Reliability,
				LiquidityUSD: vc.LiquidityUSD,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("app: venue %s: %w", vc.Name, err)
			}
			closers = append(closers, oc.Close)
			venues = append(venues, oc)
		}
	}

	scn := scanner.New(venues, quoteCache, scanner.Config{
		MinSpreadPct:      cfg.Scanner.MinSpreadPct,
		QuoteTTL:          cfg.Scanner.QuoteTTL(),
		PerVenueTimeout:   cfg.Scanner.PerVenueTimeout(),
		LiquidityFloorUSD: cfg.Scanner.LiquidityFloorUSD,
		LiquidityNormUSD:  cfg.Scanner.LiquidityNormUSD,
		OpportunityTTL:    time.Duration(cfg.Scanner.OpportunityTTLMs) * time.Millisecond,
		DepthFraction:     cfg.Scanner.DepthFraction,
		MaxPositionUSD:    cfg.Risk.MaxPositionUSD,
	}, logger)

	opt := router.New(venues, router.Config{
		BridgeTokens:     cfg.Router.BridgeTokens,
		LiquidityNormUSD: cfg.Router.LiquidityNormUSD,
		GasBaseUnits:     cfg.Router.GasBaseUnits,
		PerVenueTimeout:  cfg.Scanner.PerVenueTimeout(),
	}, logger)

	ledger := risk.New(risk.Limits{
		MaxPositionUSD:         cfg.Risk.MaxPositionUSD,
		MaxDailyLossUSD:        cfg.Risk.MaxDailyLossUSD,
		PositionLimitPerPair:   cfg.Risk.PositionLimitPerPair,
		CircuitBreakerFailures: cfg.Risk.CircuitBreakerFailures,
	}, logger)

	initial := domain.StrategyWeights{
		Weights:             map[string]float64{cfg.Execution.Strategy: 1},
		ConfidenceThreshold: cfg.Weights.ConfidenceThreshold,
		ComputedAt:          time.Now().UTC(),
	}
	recomputer := strategy.NewTrailingRecomputer(cfg.Weights.ConfidenceThreshold, 0.9)
	weights := strategy.NewProvider(recomputer, initial, cfg.Weights.RefreshInterval(), cfg.Weights.WindowSize, logger)

	orch := orchestrator.New(ledger, weights, executor, orchestrator.Config{
		Strategy:          cfg.Execution.Strategy,
		ExecutionDeadline: cfg.Execution.Deadline(),
		Gasless:           cfg.Execution.Gasless,
		GasPriceUSD:       cfg.Router.GasPriceUSD,
	}, logger)

	var alerts *notify.AlertWatcher
	if cfg.Notify.Enabled() {
		var senders []notify.Sender
		if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
			senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
		}
		if cfg.Notify.DiscordWebhookURL != "" {
			senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
		}
		notifier := notify.New(senders, cfg.Notify.Events, logger)
		alerts = notify.NewAlertWatcher(ledger, notifier, cfg.Risk.MaxDailyLossUSD, cfg.Notify.PollInterval())
	}

	var ops *server.Server
	if cfg.Server.Port > 0 {
		ops = server.New(server.Config{Port: cfg.Server.Port, APIKey: cfg.Server.APIKey}, ledger, weights, logger)
	}

	return &Deps{
		Pairs:        pairs,
		Venues:       venues,
		Feeds:        feeds,
		QuoteCache:   quoteCache,
		MemoryCache:  memCache,
		Scanner:      scn,
		Router:       opt,
		Ledger:       ledger,
		Weights:      weights,
		Orchestrator: orch,
		Alerts:       alerts,
		Ops:          ops,
	}, cleanup, nil
}
