package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBD_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This lets
// operators inject endpoints and limits at deploy time without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "ARBD_MODE")
	setStr(&cfg.LogLevel, "ARBD_LOG_LEVEL")

	setFloat64(&cfg.Scanner.MinSpreadPct, "ARBD_SCANNER_MIN_SPREAD_PCT")
	setInt(&cfg.Scanner.QuoteTTLMs, "ARBD_SCANNER_QUOTE_TTL_MS")
	setInt(&cfg.Scanner.PerVenueTimeoutMs, "ARBD_SCANNER_PER_VENUE_TIMEOUT_MS")
	setInt(&cfg.Scanner.ScanCycleMs, "ARBD_SCANNER_SCAN_CYCLE_MS")
	setFloat64(&cfg.Scanner.LiquidityFloorUSD, "ARBD_SCANNER_LIQUIDITY_FLOOR_USD")

	setFloat64(&cfg.Risk.MaxPositionUSD, "ARBD_RISK_MAX_POSITION_USD")
	setFloat64(&cfg.Risk.MaxDailyLossUSD, "ARBD_RISK_MAX_DAILY_LOSS_USD")
	setInt(&cfg.Risk.PositionLimitPerPair, "ARBD_RISK_POSITION_LIMIT_PER_PAIR")
	setInt(&cfg.Risk.CircuitBreakerFailures, "ARBD_RISK_CIRCUIT_BREAKER_FAILURES")

	setInt(&cfg.Execution.DeadlineMs, "ARBD_EXECUTION_DEADLINE_MS")
	setBool(&cfg.Execution.Gasless, "ARBD_EXECUTION_GASLESS")
	setBool(&cfg.Execution.Paper, "ARBD_EXECUTION_PAPER")

	setInt(&cfg.Server.Port, "ARBD_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "ARBD_SERVER_API_KEY")

	setStr(&cfg.Notify.TelegramToken, "ARBD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBD_NOTIFY_DISCORD_WEBHOOK_URL")

	setStr(&cfg.Redis.Addr, "ARBD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBD_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "ARBD_REDIS_TLS_ENABLED")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
