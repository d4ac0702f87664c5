package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/deluthium/bridgebot/internal/blob/s3"
	"github.com/deluthium/bridgebot/internal/cache/redis"
	"github.com/deluthium/bridgebot/internal/config"
	"github.com/deluthium/bridgebot/internal/crypto"
	"github.com/deluthium/bridgebot/internal/domain"
	"github.com/deluthium/bridgebot/internal/events"
	"github.com/deluthium/bridgebot/internal/marketdata"
	"github.com/deluthium/bridgebot/internal/notify"
	"github.com/deluthium/bridgebot/internal/platform/clob"
	"github.com/deluthium/bridgebot/internal/platform/deluthium"
	"github.com/deluthium/bridgebot/internal/store/postgres"
)

// eventsChannel is the Redis channel events are mirrored to.
const eventsChannel = "bridgebot:events"

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Venue clients
	Quotes *deluthium.Client
	Venue  *clob.Client
	Feed   *clob.WSClient

	// Shared state
	Market  *marketdata.View
	Emitter *events.Emitter

	// Optional infrastructure
	PairStore domain.PairStore
	Archiver  *s3blob.QuoteArchiver
	Notifier  *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Deluthium RFQ client ---
	apiKey, err := crypto.LoadCredential(crypto.CredentialConfig{
		Raw:           cfg.Deluthium.APIKey,
		EncryptedPath: cfg.Deluthium.EncryptedKeyPath,
		Password:      cfg.Deluthium.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: deluthium credential: %w", err)
	}
	var quoteOpts []deluthium.Option
	if cfg.Deluthium.RetryAttempts > 0 {
		quoteOpts = append(quoteOpts, deluthium.WithRetry(cfg.Deluthium.RetryAttempts, 0))
	}
	deps.Quotes = deluthium.NewClient(cfg.Deluthium.BaseURL, apiKey, quoteOpts...)

	// --- Target book clients ---
	bridging := cfg.Mode == "bridge" || cfg.Mode == "full"
	if bridging {
		auth := &crypto.HMACAuth{
			Key:    cfg.Clob.APIKey,
			Secret: cfg.Clob.APISecret,
		}
		deps.Venue = clob.NewClient(cfg.Clob.BaseURL, auth)
	}
	if cfg.Clob.WsURL != "" {
		deps.Feed = clob.NewWSClient(cfg.Clob.WsURL)
		closers = append(closers, func() { _ = deps.Feed.Close() })
	}

	// --- Market view and event emitter ---
	deps.Market = marketdata.NewView(logger)
	deps.Emitter = events.NewEmitter(logger)

	// --- Redis (price cache write-through + event mirror) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Market.WithPriceCache(redis.NewPriceCache(redisClient))
		deps.Emitter.WithPublisher(redis.NewSignalBus(redisClient), eventsChannel)
	}

	// --- PostgreSQL (pair catalog) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.PairStore = postgres.NewPairStore(pgClient.Pool())
	}

	// --- S3 quote archive ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewQuoteArchiver(s3blob.NewWriter(s3Client), cfg.S3.Prefix, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	}

	wireListeners(deps, cfg)

	return deps, cleanup, nil
}

// wireListeners registers the optional event listeners: notifications for the
// configured event types, and the quote archiver for order events.
func wireListeners(deps *Dependencies, cfg *config.Config) {
	if deps.Notifier != nil {
		listener := notify.NewEventListener(deps.Notifier)
		for _, ev := range cfg.Notify.Events {
			deps.Emitter.Subscribe(domain.EventType(strings.TrimSpace(ev)), listener.HandleEvent)
		}
	}

	if deps.Archiver != nil {
		deps.Emitter.Subscribe(domain.EventBridgePlaced, deps.Archiver.HandleEvent)
		deps.Emitter.Subscribe(domain.EventBridgeFilled, deps.Archiver.HandleEvent)
	}
}
