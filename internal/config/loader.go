package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BRIDGEBOT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known BRIDGEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Deluthium ──
	setStr(&cfg.Deluthium.BaseURL, "BRIDGEBOT_DELUTHIUM_BASE_URL")
	setStr(&cfg.Deluthium.APIKey, "BRIDGEBOT_DELUTHIUM_API_KEY")
	setStr(&cfg.Deluthium.EncryptedKeyPath, "BRIDGEBOT_DELUTHIUM_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Deluthium.KeyPassword, "BRIDGEBOT_DELUTHIUM_KEY_PASSWORD")
	setInt(&cfg.Deluthium.ChainID, "BRIDGEBOT_DELUTHIUM_CHAIN_ID")
	setStr(&cfg.Deluthium.WalletAddress, "BRIDGEBOT_DELUTHIUM_WALLET_ADDRESS")
	setInt(&cfg.Deluthium.RetryAttempts, "BRIDGEBOT_DELUTHIUM_RETRY_ATTEMPTS")

	// ── Clob ──
	setStr(&cfg.Clob.BaseURL, "BRIDGEBOT_CLOB_BASE_URL")
	setStr(&cfg.Clob.WsURL, "BRIDGEBOT_CLOB_WS_URL")
	setStr(&cfg.Clob.APIKey, "BRIDGEBOT_CLOB_API_KEY")
	setStr(&cfg.Clob.APISecret, "BRIDGEBOT_CLOB_API_SECRET")

	// ── Bridge ──
	setDuration(&cfg.Bridge.RefreshInterval, "BRIDGEBOT_BRIDGE_REFRESH_INTERVAL")
	setInt(&cfg.Bridge.MaxOrdersPerTicker, "BRIDGEBOT_BRIDGE_MAX_ORDERS_PER_TICKER")
	setFloat64(&cfg.Bridge.PriceDeviationThresholdBps, "BRIDGEBOT_BRIDGE_PRICE_DEVIATION_THRESHOLD_BPS")
	setStr(&cfg.Bridge.Strategy, "BRIDGEBOT_BRIDGE_STRATEGY")
	setInt(&cfg.Bridge.QuoteRetryAttempts, "BRIDGEBOT_BRIDGE_QUOTE_RETRY_ATTEMPTS")
	setDuration(&cfg.Bridge.QuoteRetryWait, "BRIDGEBOT_BRIDGE_QUOTE_RETRY_WAIT")
	setDuration(&cfg.Bridge.PruneAfter, "BRIDGEBOT_BRIDGE_PRUNE_AFTER")

	// ── Arbitrage ──
	setBool(&cfg.Arbitrage.Enabled, "BRIDGEBOT_ARBITRAGE_ENABLED")
	setDuration(&cfg.Arbitrage.ScanInterval, "BRIDGEBOT_ARBITRAGE_SCAN_INTERVAL")
	setFloat64(&cfg.Arbitrage.MinSpreadBps, "BRIDGEBOT_ARBITRAGE_MIN_SPREAD_BPS")
	setFloat64(&cfg.Arbitrage.TargetFeeBps, "BRIDGEBOT_ARBITRAGE_TARGET_FEE_BPS")
	setFloat64(&cfg.Arbitrage.SourceFeeBps, "BRIDGEBOT_ARBITRAGE_SOURCE_FEE_BPS")
	setFloat64(&cfg.Arbitrage.GasCostUSD, "BRIDGEBOT_ARBITRAGE_GAS_COST_USD")
	setFloat64(&cfg.Arbitrage.MaxPositionUSD, "BRIDGEBOT_ARBITRAGE_MAX_POSITION_USD")
	setFloat64(&cfg.Arbitrage.MinProfitUSD, "BRIDGEBOT_ARBITRAGE_MIN_PROFIT_USD")
	setInt(&cfg.Arbitrage.QuoteRetryAttempts, "BRIDGEBOT_ARBITRAGE_QUOTE_RETRY_ATTEMPTS")
	setDuration(&cfg.Arbitrage.QuoteRetryWait, "BRIDGEBOT_ARBITRAGE_QUOTE_RETRY_WAIT")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "BRIDGEBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "BRIDGEBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BRIDGEBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BRIDGEBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BRIDGEBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BRIDGEBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BRIDGEBOT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "BRIDGEBOT_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "BRIDGEBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "BRIDGEBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "BRIDGEBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "BRIDGEBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "BRIDGEBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "BRIDGEBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "BRIDGEBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "BRIDGEBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "BRIDGEBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "BRIDGEBOT_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "BRIDGEBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "BRIDGEBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BRIDGEBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "BRIDGEBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BRIDGEBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BRIDGEBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BRIDGEBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BRIDGEBOT_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "BRIDGEBOT_S3_PREFIX")
	setDuration(&cfg.S3.FlushInterval, "BRIDGEBOT_S3_FLUSH_INTERVAL")

	// ── Pipeline ──
	setBool(&cfg.Pipeline.Enabled, "BRIDGEBOT_PIPELINE_ENABLED")
	setDuration(&cfg.Pipeline.PairSyncInterval, "BRIDGEBOT_PIPELINE_PAIR_SYNC_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "BRIDGEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "BRIDGEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "BRIDGEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "BRIDGEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "BRIDGEBOT_MODE")
	setStr(&cfg.LogLevel, "BRIDGEBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
