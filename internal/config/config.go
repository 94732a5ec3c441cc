// Package config defines the configuration of the pool ledger service and
// its validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by DEGENPOOLS_* environment variables.
type Config struct {
	Ledger   LedgerConfig   `toml:"ledger"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Archive  ArchiveConfig  `toml:"archive"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// LedgerConfig holds the pool program parameters.
type LedgerConfig struct {
	// Admin is the base58 address allowed to run administrative operations.
	Admin string `toml:"admin"`
	// ProgramID scopes every derived address.
	ProgramID           string `toml:"program_id"`
	Store               string `toml:"store"`
	FaucetEnabled       bool   `toml:"faucet_enabled"`
	AllowWinnerOverride bool   `toml:"allow_winner_override"`
	MaxTextLen          int    `toml:"max_text_len"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters. When disabled the service
// uses in-process caches, locks and event bus.
type RedisConfig struct {
	Enabled      bool     `toml:"enabled"`
	Addr         string   `toml:"addr"`
	Password     string   `toml:"password"`
	DB           int      `toml:"db"`
	PoolSize     int      `toml:"pool_size"`
	MaxRetries   int      `toml:"max_retries"`
	TLSEnabled   bool     `toml:"tls_enabled"`
	PoolCacheTTL duration `toml:"pool_cache_ttl"`
	StreamMaxLen int64    `toml:"stream_max_len"`
}

// S3Config holds the archive bucket parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration lets TOML carry strings like "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	MaxSkew     duration `toml:"max_skew"`
	ReplayTTL   duration `toml:"replay_ttl"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// NotifyConfig holds operator notification settings.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ArchiveConfig holds the background worker schedule.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RelayInterval duration `toml:"relay_interval"`
}

// Defaults returns a configuration that runs a single in-memory instance.
func Defaults() Config {
	return Config{
		Ledger: LedgerConfig{
			Store:      "memory",
			MaxTextLen: domain.MaxPoolTextLen,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "degenpools",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			MaxRetries:   3,
			PoolCacheTTL: duration{time.Minute},
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MaxSkew:     duration{5 * time.Minute},
			ReplayTTL:   duration{10 * time.Minute},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{
				string(domain.EventPoolCreated),
				string(domain.EventWinnerSet),
				string(domain.EventPoolArchived),
			},
		},
		Archive: ArchiveConfig{
			Interval:      duration{10 * time.Minute},
			RelayInterval: duration{2 * time.Second},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve":   true,
	"api":     true,
	"archive": true,
}

var validStores = map[string]bool{
	"memory":   true,
	"postgres": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every invalid or missing value at once.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, api, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Ledger
	if _, err := domain.ParseAddress(c.Ledger.Admin); err != nil {
		errs = append(errs, "ledger: admin must be a base58 address")
	}
	if _, err := domain.ParseAddress(c.Ledger.ProgramID); err != nil {
		errs = append(errs, "ledger: program_id must be a base58 address")
	}
	if !validStores[strings.ToLower(c.Ledger.Store)] {
		errs = append(errs, fmt.Sprintf("ledger: unknown store %q (valid: memory, postgres)", c.Ledger.Store))
	}
	if c.Ledger.MaxTextLen < 1 || c.Ledger.MaxTextLen > domain.MaxPoolTextLen {
		errs = append(errs, fmt.Sprintf("ledger: max_text_len must be between 1 and %d", domain.MaxPoolTextLen))
	}

	// Postgres
	if strings.EqualFold(c.Ledger.Store, "postgres") {
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
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// The memory ledger lives inside one process, so a split deployment
	// needs a shared store.
	if mode != "serve" && strings.EqualFold(c.Ledger.Store, "memory") {
		errs = append(errs, fmt.Sprintf("ledger: store memory only supports mode serve, got %q", c.Mode))
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

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Archive
	if mode == "archive" && !c.Archive.Enabled {
		errs = append(errs, "archive: mode archive needs archive.enabled")
	}
	if c.Archive.Enabled && mode != "api" {
		if !c.S3.Enabled {
			errs = append(errs, "archive: s3 must be enabled when the archive worker runs")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}
	if c.Archive.RelayInterval.Duration <= 0 {
		errs = append(errs, "archive: relay_interval must be > 0")
	}

	// Server
	if mode != "archive" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.MaxSkew.Duration <= 0 {
			errs = append(errs, "server: max_skew must be > 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
	}

	// Notify
	for _, ev := range c.Notify.Events {
		if !knownEvent(ev) {
			errs = append(errs, fmt.Sprintf("notify: unknown event %q", ev))
		}
	}
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func knownEvent(name string) bool {
	switch domain.EventType(name) {
	case domain.EventPoolCreated, domain.EventPoolStatusChanged, domain.EventWinnerSet,
		domain.EventOptionCreated, domain.EventPoolEntered, domain.EventWinClaimed,
		domain.EventPoolFunded, domain.EventEntryClosed, domain.EventTransferred,
		domain.EventFaucet, domain.EventPoolArchived:
		return true
	}
	return false
}
