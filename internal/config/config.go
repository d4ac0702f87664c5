// Package config defines the top-level configuration for the bridge bot and
// provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/deluthium/bridgebot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BRIDGEBOT_* environment variables.
type Config struct {
	Deluthium DeluthiumConfig `toml:"deluthium"`
	Clob      ClobConfig      `toml:"clob"`
	Bridge    BridgeConfig    `toml:"bridge"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Redis     RedisConfig     `toml:"redis"`
	Postgres  PostgresConfig  `toml:"postgres"`
	S3        S3Config        `toml:"s3"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DeluthiumConfig holds RFQ API endpoints and credentials.
type DeluthiumConfig struct {
	BaseURL          string `toml:"base_url"`
	APIKey           string `toml:"api_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	ChainID          int    `toml:"chain_id"`
	WalletAddress    string `toml:"wallet_address"`
	RetryAttempts    int    `toml:"retry_attempts"`
}

// ClobConfig holds target-book exchange endpoints and credentials.
type ClobConfig struct {
	BaseURL   string `toml:"base_url"`
	WsURL     string `toml:"ws_url"`
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

// MappingConfig is one bridged pair in TOML form. ProbeAmount is a decimal
// string in the token's smallest unit.
type MappingConfig struct {
	Ticker       string `toml:"ticker"`
	TokenIn      string `toml:"token_in"`
	TokenOut     string `toml:"token_out"`
	ChainID      int    `toml:"chain_id"`
	Side         string `toml:"side"`
	BaseDecimals int    `toml:"base_decimals"`
	ProbeAmount  string `toml:"probe_amount"`
}

// ToDomain converts the mapping to its domain form, validating addresses and
// the probe amount.
func (m MappingConfig) ToDomain() (domain.PairMapping, error) {
	if !common.IsHexAddress(m.TokenIn) {
		return domain.PairMapping{}, fmt.Errorf("mapping %s: invalid token_in %q", m.Ticker, m.TokenIn)
	}
	if !common.IsHexAddress(m.TokenOut) {
		return domain.PairMapping{}, fmt.Errorf("mapping %s: invalid token_out %q", m.Ticker, m.TokenOut)
	}
	amount, ok := new(big.Int).SetString(m.ProbeAmount, 10)
	if !ok || amount.Sign() <= 0 {
		return domain.PairMapping{}, fmt.Errorf("mapping %s: invalid probe_amount %q", m.Ticker, m.ProbeAmount)
	}

	decimals := m.BaseDecimals
	if decimals == 0 {
		decimals = 18
	}

	return domain.PairMapping{
		TokenIn:      common.HexToAddress(m.TokenIn),
		TokenOut:     common.HexToAddress(m.TokenOut),
		Ticker:       m.Ticker,
		ChainID:      m.ChainID,
		Side:         domain.OrderSide(strings.ToLower(m.Side)),
		BaseDecimals: decimals,
		ProbeAmount:  amount,
	}, nil
}

// BridgeConfig holds the order bridge parameters.
type BridgeConfig struct {
	RefreshInterval            duration        `toml:"refresh_interval"`
	MaxOrdersPerTicker         int             `toml:"max_orders_per_ticker"`
	PriceDeviationThresholdBps float64         `toml:"price_deviation_threshold_bps"`
	Strategy                   string          `toml:"strategy"`
	QuoteRetryAttempts         int             `toml:"quote_retry_attempts"`
	QuoteRetryWait             duration        `toml:"quote_retry_wait"`
	PruneAfter                 duration        `toml:"prune_after"`
	Mappings                   []MappingConfig `toml:"mappings"`
}

// ArbPairConfig is one scanned pair in TOML form.
type ArbPairConfig struct {
	Ticker       string `toml:"ticker"`
	TokenIn      string `toml:"token_in"`
	TokenOut     string `toml:"token_out"`
	ChainID      int    `toml:"chain_id"`
	BaseDecimals int    `toml:"base_decimals"`
	ProbeAmount  string `toml:"probe_amount"`
}

// ToDomain converts the pair to its domain form.
func (p ArbPairConfig) ToDomain() (domain.ArbPair, error) {
	if !common.IsHexAddress(p.TokenIn) {
		return domain.ArbPair{}, fmt.Errorf("pair %s: invalid token_in %q", p.Ticker, p.TokenIn)
	}
	if !common.IsHexAddress(p.TokenOut) {
		return domain.ArbPair{}, fmt.Errorf("pair %s: invalid token_out %q", p.Ticker, p.TokenOut)
	}
	amount, ok := new(big.Int).SetString(p.ProbeAmount, 10)
	if !ok || amount.Sign() <= 0 {
		return domain.ArbPair{}, fmt.Errorf("pair %s: invalid probe_amount %q", p.Ticker, p.ProbeAmount)
	}

	decimals := p.BaseDecimals
	if decimals == 0 {
		decimals = 18
	}

	return domain.ArbPair{
		Ticker:       p.Ticker,
		TokenIn:      common.HexToAddress(p.TokenIn),
		TokenOut:     common.HexToAddress(p.TokenOut),
		ChainID:      p.ChainID,
		BaseDecimals: decimals,
		ProbeAmount:  amount,
	}, nil
}

// ArbitrageConfig holds the spread scanner parameters.
type ArbitrageConfig struct {
	Enabled            bool            `toml:"enabled"`
	ScanInterval       duration        `toml:"scan_interval"`
	MinSpreadBps       float64         `toml:"min_spread_bps"`
	TargetFeeBps       float64         `toml:"target_fee_bps"`
	SourceFeeBps       float64         `toml:"source_fee_bps"`
	GasCostUSD         float64         `toml:"gas_cost_usd"`
	MaxPositionUSD     float64         `toml:"max_position_usd"`
	MinProfitUSD       float64         `toml:"min_profit_usd"`
	QuoteRetryAttempts int             `toml:"quote_retry_attempts"`
	QuoteRetryWait     duration        `toml:"quote_retry_wait"`
	Pairs              []ArbPairConfig `toml:"pairs"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the pair catalog.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for the quote
// archive.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	Prefix         string   `toml:"prefix"`
	FlushInterval  duration `toml:"flush_interval"`
}

// PipelineConfig holds background job parameters.
type PipelineConfig struct {
	Enabled          bool     `toml:"enabled"`
	PairSyncInterval duration `toml:"pair_sync_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Deluthium: DeluthiumConfig{
			BaseURL:       "https://rfq-api.deluthium.ai",
			ChainID:       56,
			RetryAttempts: 3,
		},
		Clob: ClobConfig{
			BaseURL: "https://clob.deluthium.ai",
			WsURL:   "wss://clob.deluthium.ai/ws/market",
		},
		Bridge: BridgeConfig{
			RefreshInterval:            duration{2000 * time.Millisecond},
			MaxOrdersPerTicker:         10,
			PriceDeviationThresholdBps: 20.0,
			Strategy:                   "mirror",
			QuoteRetryAttempts:         2,
			QuoteRetryWait:             duration{500 * time.Millisecond},
			PruneAfter:                 duration{5 * time.Minute},
		},
		Arbitrage: ArbitrageConfig{
			Enabled:            false,
			ScanInterval:       duration{5000 * time.Millisecond},
			MinSpreadBps:       30.0,
			TargetFeeBps:       5.0,
			SourceFeeBps:       10.0,
			GasCostUSD:         2.0,
			MaxPositionUSD:     10000.0,
			MinProfitUSD:       5.0,
			QuoteRetryAttempts: 2,
			QuoteRetryWait:     duration{1000 * time.Millisecond},
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "bridgebot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bridgebot-data",
			UseSSL:         false,
			ForcePathStyle: true,
			Prefix:         "quotes",
			FlushInterval:  duration{time.Minute},
		},
		Pipeline: PipelineConfig{
			Enabled:          false,
			PairSyncInterval: duration{10 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"bridge:filled", "bridge:error", "arbitrage:detected"},
		},
		Mode:     "bridge",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"bridge":    true,
	"arbitrage": true,
	"full":      true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validStrategies enumerates the accepted bridge pricing strategies.
var validStrategies = map[string]bool{
	"":        true,
	"mirror":  true,
	"spread":  true,
	"dynamic": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: bridge, arbitrage, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Deluthium
	if c.Deluthium.BaseURL == "" {
		errs = append(errs, "deluthium: base_url must not be empty")
	}
	if c.Deluthium.APIKey == "" && c.Deluthium.EncryptedKeyPath == "" {
		errs = append(errs, "deluthium: either api_key or encrypted_key_path must be set")
	}
	if c.Deluthium.EncryptedKeyPath != "" && c.Deluthium.KeyPassword == "" {
		errs = append(errs, "deluthium: key_password is required when encrypted_key_path is set")
	}
	if c.Deluthium.ChainID <= 0 {
		errs = append(errs, "deluthium: chain_id must be positive")
	}
	if c.Deluthium.WalletAddress != "" && !common.IsHexAddress(c.Deluthium.WalletAddress) {
		errs = append(errs, fmt.Sprintf("deluthium: invalid wallet_address %q", c.Deluthium.WalletAddress))
	}

	// Clob — needed whenever the bridge places orders.
	bridging := c.Mode == "bridge" || c.Mode == "full"
	if bridging {
		if c.Clob.BaseURL == "" {
			errs = append(errs, "clob: base_url is required for mode "+c.Mode)
		}
		if c.Clob.APIKey == "" || c.Clob.APISecret == "" {
			errs = append(errs, "clob: api_key and api_secret are required for mode "+c.Mode)
		}
	}
	scanning := c.Mode == "arbitrage" || (c.Mode == "full" && c.Arbitrage.Enabled)
	if (bridging && c.Bridge.Strategy == "dynamic") || scanning {
		if c.Clob.WsURL == "" {
			errs = append(errs, "clob: ws_url is required when the target book is consulted")
		}
	}

	// Bridge
	if !validStrategies[strings.ToLower(c.Bridge.Strategy)] {
		errs = append(errs, fmt.Sprintf("bridge: unknown strategy %q (valid: mirror, spread, dynamic)", c.Bridge.Strategy))
	}
	if c.Bridge.PriceDeviationThresholdBps < 0 {
		errs = append(errs, "bridge: price_deviation_threshold_bps must be >= 0")
	}
	if bridging && len(c.Bridge.Mappings) == 0 {
		errs = append(errs, "bridge: at least one mapping is required for mode "+c.Mode)
	}
	for _, m := range c.Bridge.Mappings {
		if _, err := m.ToDomain(); err != nil {
			errs = append(errs, "bridge: "+err.Error())
		}
	}

	// Arbitrage
	if scanning {
		if len(c.Arbitrage.Pairs) == 0 {
			errs = append(errs, "arbitrage: at least one pair is required for mode "+c.Mode)
		}
		if c.Arbitrage.MaxPositionUSD <= 0 {
			errs = append(errs, "arbitrage: max_position_usd must be > 0")
		}
	}
	for _, p := range c.Arbitrage.Pairs {
		if _, err := p.ToDomain(); err != nil {
			errs = append(errs, "arbitrage: "+err.Error())
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
