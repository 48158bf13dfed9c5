// Package config defines the top-level configuration for the arbitrage daemon
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/aineonlabs/arbd/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ARBD_* environment variables.
type Config struct {
	Scanner   ScannerConfig   `toml:"scanner"`
	Router    RouterConfig    `toml:"router"`
	Risk      RiskConfig      `toml:"risk"`
	Execution ExecutionConfig `toml:"execution"`
	Weights   WeightsConfig   `toml:"weights"`
	Venues    []VenueConfig   `toml:"venues"`
	Redis     RedisConfig     `toml:"redis"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ScannerConfig holds scan-cycle parameters.
type ScannerConfig struct {
	Pairs             []string `toml:"pairs"` // "WETH/USDC" symbols
	MinSpreadPct      float64  `toml:"min_spread_pct"`
	QuoteTTLMs        int      `toml:"quote_ttl_ms"`
	PerVenueTimeoutMs int      `toml:"per_venue_timeout_ms"`
	ScanCycleMs       int      `toml:"scan_cycle_ms"`
	LiquidityFloorUSD float64  `toml:"liquidity_floor_usd"`
	LiquidityNormUSD  float64  `toml:"liquidity_norm_usd"`
	OpportunityTTLMs  int      `toml:"opportunity_ttl_ms"`
	DepthFraction     float64  `toml:"depth_fraction"` // fraction of thin-side liquidity to size against
}

// RouterConfig holds route-optimizer parameters.
type RouterConfig struct {
	BridgeTokens     []string `toml:"bridge_tokens"`
	LiquidityNormUSD float64  `toml:"liquidity_norm_usd"`
	GasBaseUnits     uint64   `toml:"gas_base_units"` // single-hop gas estimate
	GasPriceUSD      float64  `toml:"gas_price_usd"`  // USD cost per gas unit, for caller-side comparison
}

// RiskConfig holds risk-ledger limits.
type RiskConfig struct {
	MaxPositionUSD          float64 `toml:"max_position_usd"`
	MaxDailyLossUSD         float64 `toml:"max_daily_loss_usd"`
	PositionLimitPerPair    int     `toml:"position_limit_per_pair"`
	CircuitBreakerFailures  int     `toml:"circuit_breaker_failures"`
}

// ExecutionConfig holds signal dispatch parameters.
type ExecutionConfig struct {
	DeadlineMs int    `toml:"execution_deadline_ms"`
	Gasless    bool   `toml:"gasless"`
	Strategy   string `toml:"strategy"` // strategy label stamped on signals

	// Paper runs trade mode against the built-in simulated executor instead
	// of a real execution collaborator.
	Paper            bool    `toml:"paper"`
	PaperLatencyMs   int     `toml:"paper_latency_ms"`
	PaperSlippagePct float64 `toml:"paper_slippage_pct"`
	PaperFailureRate float64 `toml:"paper_failure_rate"`
}

// WeightsConfig holds strategy-weighting refresh parameters.
type WeightsConfig struct {
	RefreshMs           int     `toml:"refresh_ms"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"` // initial snapshot
	WindowSize          int     `toml:"window_size"`          // trailing outcomes per recomputation
}

// VenueConfig describes one quote source. Kind selects the client
// implementation: "rest", "ws", or "onchain".
type VenueConfig struct {
	Name        string  `toml:"name"`
	Kind        string  `toml:"kind"`
	BaseURL     string  `toml:"base_url"` // rest
	WsURL       string  `toml:"ws_url"`   // ws
	RPCURL      string  `toml:"rpc_url"`  // onchain
	RouterAddr  string  `toml:"router_addr"`
	FeeRate     float64 `toml:"fee_rate"`
	Reliability float64 `toml:"reliability"`

	// Onchain venues quote via the chain but carry pool metadata from config.
	Tokens        map[string]string `toml:"tokens"` // symbol -> contract address
	TokenDecimals map[string]int    `toml:"token_decimals"`
	LiquidityUSD  float64           `toml:"liquidity_usd"`
}

// ServerConfig holds the optional operations HTTP API parameters. A zero Port
// disables the server.
type ServerConfig struct {
	Port   int    `toml:"port"`
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds optional operator alert channels. All empty means
// alerting is disabled.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"` // empty allows all events
	PollIntervalMs    int      `toml:"poll_interval_ms"`
}

// RedisConfig holds optional shared quote-cache parameters. When Addr is
// empty the in-memory cache is used.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// Defaults returns a Config with sane defaults for every tunable.
func Defaults() Config {
	return Config{
		Scanner: ScannerConfig{
			MinSpreadPct:      0.3,
			QuoteTTLMs:        5000,
			PerVenueTimeoutMs: 3000,
			ScanCycleMs:       1000,
			LiquidityFloorUSD: 100_000,
			LiquidityNormUSD:  1_000_000,
			OpportunityTTLMs:  10_000,
			DepthFraction:     0.01,
		},
		Router: RouterConfig{
			BridgeTokens:     []string{"WETH"},
			LiquidityNormUSD: 1_000_000,
			GasBaseUnits:     150_000,
			GasPriceUSD:      0.00000005,
		},
		Risk: RiskConfig{
			MaxPositionUSD:         50_000,
			MaxDailyLossUSD:        1_500_000,
			PositionLimitPerPair:   5,
			CircuitBreakerFailures: 5,
		},
		Execution: ExecutionConfig{
			DeadlineMs:       5000,
			Gasless:          true,
			Strategy:         "cross_venue_spread",
			PaperLatencyMs:   250,
			PaperSlippagePct: 0.05,
			PaperFailureRate: 0.02,
		},
		Weights: WeightsConfig{
			RefreshMs:           15 * 60 * 1000,
			ConfidenceThreshold: 0.6,
			WindowSize:          200,
		},
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Notify: NotifyConfig{
			PollIntervalMs: 15_000,
		},
		Mode:     "scan",
		LogLevel: "info",
	}
}

// ParsedPairs parses and returns the configured pair list.
func (c *ScannerConfig) ParsedPairs() ([]domain.Pair, error) {
	pairs := make([]domain.Pair, 0, len(c.Pairs))
	for _, sym := range c.Pairs {
		p, err := domain.ParsePair(sym)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// QuoteTTL returns the quote TTL as a duration.
func (c *ScannerConfig) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLMs) * time.Millisecond
}

// PerVenueTimeout returns the per-call timeout as a duration.
func (c *ScannerConfig) PerVenueTimeout() time.Duration {
	return time.Duration(c.PerVenueTimeoutMs) * time.Millisecond
}

// ScanInterval returns the scan cadence as a duration.
func (c *ScannerConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanCycleMs) * time.Millisecond
}

// Deadline returns the execution deadline as a duration.
func (c *ExecutionConfig) Deadline() time.Duration {
	return time.Duration(c.DeadlineMs) * time.Millisecond
}

// PaperLatency returns the simulated fill latency as a duration.
func (c *ExecutionConfig) PaperLatency() time.Duration {
	return time.Duration(c.PaperLatencyMs) * time.Millisecond
}

// PollInterval returns the alert poll cadence as a duration.
func (c *NotifyConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// Enabled reports whether any alert channel is configured.
func (c *NotifyConfig) Enabled() bool {
	return (c.TelegramToken != "" && c.TelegramChatID != "") || c.DiscordWebhookURL != ""
}

// RefreshInterval returns the weights refresh cadence as a duration.
func (c *WeightsConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// Validate checks the configuration for fatal errors. It is called once at
// startup; any error here halts the process.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "scan", "trade":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if len(c.Scanner.Pairs) == 0 {
		return fmt.Errorf("config: scanner.pairs must not be empty")
	}
	if _, err := c.Scanner.ParsedPairs(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Scanner.MinSpreadPct <= 0 {
		return fmt.Errorf("config: scanner.min_spread_pct must be positive")
	}
	if c.Scanner.QuoteTTLMs <= 0 || c.Scanner.PerVenueTimeoutMs <= 0 || c.Scanner.ScanCycleMs <= 0 {
		return fmt.Errorf("config: scanner timeouts must be positive")
	}
	if c.Scanner.LiquidityNormUSD <= 0 {
		return fmt.Errorf("config: scanner.liquidity_norm_usd must be positive")
	}

	if c.Router.LiquidityNormUSD <= 0 {
		return fmt.Errorf("config: router.liquidity_norm_usd must be positive")
	}
	for _, b := range c.Router.BridgeTokens {
		if strings.TrimSpace(b) == "" {
			return fmt.Errorf("config: router.bridge_tokens contains an empty token")
		}
	}

	if c.Risk.MaxPositionUSD <= 0 {
		return fmt.Errorf("config: risk.max_position_usd must be positive")
	}
	if c.Risk.MaxDailyLossUSD <= 0 {
		return fmt.Errorf("config: risk.max_daily_loss_usd must be positive")
	}
	if c.Risk.PositionLimitPerPair <= 0 {
		return fmt.Errorf("config: risk.position_limit_per_pair must be positive")
	}

	if c.Execution.DeadlineMs <= 0 {
		return fmt.Errorf("config: execution.execution_deadline_ms must be positive")
	}
	if c.Execution.PaperFailureRate < 0 || c.Execution.PaperFailureRate > 1 {
		return fmt.Errorf("config: execution.paper_failure_rate must be in [0,1]")
	}
	if c.Weights.ConfidenceThreshold < 0 || c.Weights.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: weights.confidence_threshold must be in [0,1]")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be in [0,65535]")
	}

	if len(c.Venues) < 2 {
		return fmt.Errorf("config: at least two venues are required")
	}
	names := make(map[string]bool, len(c.Venues))
	for i, v := range c.Venues {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("config: venues[%d].name must not be empty", i)
		}
		if names[v.Name] {
			return fmt.Errorf("config: duplicate venue name %q", v.Name)
		}
		names[v.Name] = true
		if v.Reliability < 0 || v.Reliability > 1 {
			return fmt.Errorf("config: venue %q reliability must be in [0,1]", v.Name)
		}
		switch v.Kind {
		case "rest":
			if v.BaseURL == "" {
				return fmt.Errorf("config: venue %q requires base_url", v.Name)
			}
		case "ws":
			if v.WsURL == "" {
				return fmt.Errorf("config: venue %q requires ws_url", v.Name)
			}
		case "onchain":
			if v.RPCURL == "" || v.RouterAddr == "" {
				return fmt.Errorf("config: venue %q requires rpc_url and router_addr", v.Name)
			}
		default:
			return fmt.Errorf("config: venue %q has unsupported kind %q", v.Name, v.Kind)
		}
	}

	return nil
}
