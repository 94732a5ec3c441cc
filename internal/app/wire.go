package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/Degen-Markets/degen-markets-solana/internal/blob/s3"
	"github.com/Degen-Markets/degen-markets-solana/internal/cache/local"
	"github.com/Degen-Markets/degen-markets-solana/internal/cache/redis"
	"github.com/Degen-Markets/degen-markets-solana/internal/config"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/metrics"
	"github.com/Degen-Markets/degen-markets-solana/internal/notify"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/handler"
	"github.com/Degen-Markets/degen-markets-solana/internal/store/memory"
	"github.com/Degen-Markets/degen-markets-solana/internal/store/postgres"
)

// localStreamMaxLen caps the in-process ledger stream.
const localStreamMaxLen = 10000

// Dependencies bundles the concrete implementations the modes run on. It is
// built by Wire and released by the cleanup function Wire returns.
type Dependencies struct {
	// Stores
	Ledger domain.LedgerStore
	Audit  domain.AuditStore

	// Caches and coordination. Redis backs these when enabled, otherwise
	// the in-process implementations do.
	PoolCache   domain.PoolCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus
	ReplayGuard domain.ReplayGuard

	// Blob storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	Metrics *metrics.Metrics

	// Checks are the health probes of every external backend.
	Checks map[string]handler.Check
}

// Wire constructs every dependency the configuration asks for and returns
// them with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New(),
		Checks:  make(map[string]handler.Check),
	}

	// --- Ledger store ---
	if strings.EqualFold(cfg.Ledger.Store, "postgres") {
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

		deps.Ledger = postgres.NewLedgerStore(pgClient.Pool())
		deps.Audit = postgres.NewAuditStore(pgClient.Pool())
		deps.Checks["postgres"] = pgClient.Ping
	} else {
		logger.WarnContext(ctx, "wire: using in-memory ledger, state is lost on exit")
		deps.Ledger = memory.NewLedgerStore()
		deps.Audit = memory.NewAuditStore()
	}

	// --- Redis ---
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

		deps.PoolCache = redis.NewPoolCache(redisClient, cfg.Redis.PoolCacheTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient, cfg.Redis.StreamMaxLen)
		deps.ReplayGuard = redis.NewReplayGuard(redisClient, cfg.Server.ReplayTTL.Duration)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		// Without a pool cache the service reads the store directly.
		deps.RateLimiter = local.NewRateLimiter()
		deps.LockManager = local.NewLockManager()
		deps.SignalBus = local.NewSignalBus(localStreamMaxLen)
		deps.ReplayGuard = local.NewReplayGuard(cfg.Server.ReplayTTL.Duration)
	}

	// --- S3 archive ---
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

		store := s3blob.NewStore(s3Client)
		deps.Archiver = s3blob.NewArchiver(store, store, deps.Audit)
		deps.Checks["s3"] = s3Client.Health
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

	return deps, cleanup, nil
}
