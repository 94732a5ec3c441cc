package app

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/cache/local"
	"github.com/Degen-Markets/degen-markets-solana/internal/config"
	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/store/memory"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Ledger.Admin = domain.Address{1}.String()
	cfg.Ledger.ProgramID = domain.Address{2}.String()
	cfg.Ledger.FaucetEnabled = true
	return &cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestWireMemoryUsesLocalBackends(t *testing.T) {
	deps, cleanup, err := Wire(context.Background(), testConfig(), quietLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.IsType(t, &memory.LedgerStore{}, deps.Ledger)
	assert.IsType(t, &memory.AuditStore{}, deps.Audit)
	assert.IsType(t, &local.SignalBus{}, deps.SignalBus)
	assert.IsType(t, &local.ReplayGuard{}, deps.ReplayGuard)
	assert.IsType(t, &local.LockManager{}, deps.LockManager)
	assert.Nil(t, deps.PoolCache)
	assert.Nil(t, deps.Archiver)
	assert.Nil(t, deps.Notifier)
	assert.Empty(t, deps.Checks)
	assert.NotNil(t, deps.Metrics)
}

func TestWireNotifierNeedsSender(t *testing.T) {
	cfg := testConfig()
	cfg.Notify.DiscordWebhookURL = "https://discord.example/webhook"

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, deps.Notifier)
}

func TestBuildServiceRunsOperations(t *testing.T) {
	cfg := testConfig()
	admin, err := crypto.GenerateKey()
	require.NoError(t, err)
	cfg.Ledger.Admin = admin.Address().String()

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	a := New(cfg, quietLogger())
	svc, err := a.buildService(deps)
	require.NoError(t, err)
	assert.Equal(t, admin.Address(), svc.Admin())

	ctx := context.Background()
	require.NoError(t, svc.Faucet(ctx, admin.Address(), admin.Address(), 25))
	bal, err := svc.Balance(ctx, admin.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(25), bal)

	audit, err := deps.Audit.List(ctx, domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "ledger.faucet", audit[0].Event)
}

func TestBuildServiceRejectsBadIdentity(t *testing.T) {
	cfg := testConfig()
	cfg.Ledger.ProgramID = "not-base58-0OIl"

	deps, cleanup, err := Wire(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	_, err = New(cfg, quietLogger()).buildService(deps)
	assert.ErrorContains(t, err, "program id")
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "trade"

	a := New(cfg, quietLogger())
	defer a.Close()
	assert.ErrorContains(t, a.Run(context.Background()), `unsupported mode "trade"`)
}
