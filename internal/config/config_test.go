package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Ledger.Admin = domain.Address{1}.String()
	cfg.Ledger.ProgramID = domain.Address{2}.String()
	return cfg
}

func TestDefaultsWithIdentityAreValid(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Ledger.Store)
	assert.Equal(t, 5*time.Minute, cfg.Server.MaxSkew.Duration)
}

func TestValidateCollectsEveryError(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, `unknown log_level "loud"`)
	assert.Contains(t, msg, "ledger: admin must be a base58 address")
	assert.Contains(t, msg, "ledger: program_id must be a base58 address")
	assert.Contains(t, msg, "server: port must be 1-65535")
}

func TestValidateSplitModesNeedSharedStore(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "api"
	assert.ErrorContains(t, cfg.Validate(), "store memory only supports mode serve")

	cfg.Ledger.Store = "postgres"
	require.NoError(t, cfg.Validate())

	cfg.Postgres.Host = ""
	assert.ErrorContains(t, cfg.Validate(), "postgres: host must not be empty")

	cfg.Postgres.DSN = "postgres://u:p@db:5432/degenpools"
	require.NoError(t, cfg.Validate())
}

func TestValidateTextLimitCannotBeRaised(t *testing.T) {
	cfg := validConfig()
	cfg.Ledger.MaxTextLen = domain.MaxPoolTextLen + 1
	assert.ErrorContains(t, cfg.Validate(), "ledger: max_text_len must be between 1 and 200")

	cfg.Ledger.MaxTextLen = 80
	require.NoError(t, cfg.Validate())
}

func TestValidateArchiveNeedsBucket(t *testing.T) {
	cfg := validConfig()
	cfg.Archive.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "archive: s3 must be enabled")

	cfg.S3.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "s3: bucket must not be empty")

	cfg.S3.Bucket = "degenpools-archive"
	require.NoError(t, cfg.Validate())
}

func TestValidateNotify(t *testing.T) {
	cfg := validConfig()
	cfg.Notify.Events = []string{"pool_created", "market_opened"}
	cfg.Notify.TelegramToken = "token"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown event "market_opened"`)
	assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id must be set together")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "degenpools.toml")
	body := `
mode = "serve"
log_level = "debug"

[ledger]
admin = "` + domain.Address{1}.String() + `"
program_id = "` + domain.Address{2}.String() + `"
faucet_enabled = true

[server]
port = 9000
max_skew = "2m"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	t.Setenv("DEGENPOOLS_SERVER_PORT", "9100")
	t.Setenv("DEGENPOOLS_SERVER_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("DEGENPOOLS_REDIS_STREAM_MAX_LEN", "500")
	t.Setenv("DEGENPOOLS_ARCHIVE_INTERVAL", "90s")
	t.Setenv("DEGENPOOLS_REDIS_POOL_SIZE", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Ledger.FaucetEnabled)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.MaxSkew.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(500), cfg.Redis.StreamMaxLen)
	assert.Equal(t, 90*time.Second, cfg.Archive.Interval.Duration)
	assert.Equal(t, 10, cfg.Redis.PoolSize, "unparsable override is ignored")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "pg-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Notify.TelegramToken = "tg-secret"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Equal(t, "", out.Redis.Password, "empty values stay empty")
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}
