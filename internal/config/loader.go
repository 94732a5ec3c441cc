package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEGENPOOLS_"

// Load reads the TOML file at path on top of Defaults, then applies
// DEGENPOOLS_* environment overrides. An empty path skips the file. The
// result is not validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites Config fields whose environment variable is
// set and non-empty, so secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── Ledger ──
	setStr(&cfg.Ledger.Admin, EnvPrefix+"LEDGER_ADMIN")
	setStr(&cfg.Ledger.ProgramID, EnvPrefix+"LEDGER_PROGRAM_ID")
	setStr(&cfg.Ledger.Store, EnvPrefix+"LEDGER_STORE")
	setBool(&cfg.Ledger.FaucetEnabled, EnvPrefix+"LEDGER_FAUCET_ENABLED")
	setBool(&cfg.Ledger.AllowWinnerOverride, EnvPrefix+"LEDGER_ALLOW_WINNER_OVERRIDE")
	setInt(&cfg.Ledger.MaxTextLen, EnvPrefix+"LEDGER_MAX_TEXT_LEN")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, EnvPrefix+"POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // platform alias
	setStr(&cfg.Postgres.Host, EnvPrefix+"POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, EnvPrefix+"POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, EnvPrefix+"POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, EnvPrefix+"POSTGRES_USER")
	setStr(&cfg.Postgres.Password, EnvPrefix+"POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, EnvPrefix+"POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, EnvPrefix+"POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, EnvPrefix+"POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, EnvPrefix+"POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, EnvPrefix+"REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, EnvPrefix+"REDIS_ADDR")
	setStr(&cfg.Redis.Password, EnvPrefix+"REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, EnvPrefix+"REDIS_DB")
	setInt(&cfg.Redis.PoolSize, EnvPrefix+"REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, EnvPrefix+"REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, EnvPrefix+"REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.PoolCacheTTL, EnvPrefix+"REDIS_POOL_CACHE_TTL")
	setInt64(&cfg.Redis.StreamMaxLen, EnvPrefix+"REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, EnvPrefix+"S3_ENABLED")
	setStr(&cfg.S3.Endpoint, EnvPrefix+"S3_ENDPOINT")
	setStr(&cfg.S3.Region, EnvPrefix+"S3_REGION")
	setStr(&cfg.S3.Bucket, EnvPrefix+"S3_BUCKET")
	setStr(&cfg.S3.AccessKey, EnvPrefix+"S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, EnvPrefix+"S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, EnvPrefix+"S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, EnvPrefix+"S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, EnvPrefix+"SERVER_PORT")
	setInt(&cfg.Server.Port, "PORT") // platform alias
	setStringSlice(&cfg.Server.CORSOrigins, EnvPrefix+"SERVER_CORS_ORIGINS")
	setDuration(&cfg.Server.MaxSkew, EnvPrefix+"SERVER_MAX_SKEW")
	setDuration(&cfg.Server.ReplayTTL, EnvPrefix+"SERVER_REPLAY_TTL")
	setInt(&cfg.Server.RateLimit, EnvPrefix+"SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, EnvPrefix+"SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, EnvPrefix+"NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, EnvPrefix+"NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, EnvPrefix+"NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, EnvPrefix+"NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, EnvPrefix+"ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, EnvPrefix+"ARCHIVE_INTERVAL")
	setDuration(&cfg.Archive.RelayInterval, EnvPrefix+"ARCHIVE_RELAY_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, EnvPrefix+"MODE")
	setStr(&cfg.LogLevel, EnvPrefix+"LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
