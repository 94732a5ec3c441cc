//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/service"
)

// newTestClient starts a throwaway Postgres and applies the migrations.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("degenpools"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	client, err := New(ctx, ClientConfig{DSN: dsn, MaxConns: 4, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	require.NoError(t, client.RunMigrations(ctx))
	return client
}

type LedgerIntegrationSuite struct {
	suite.Suite
	ctx    context.Context
	ledger *LedgerStore
	audit  *AuditStore
	svc    *service.PoolService
	admin  domain.Address
}

func TestLedgerIntegrationSuite(t *testing.T) {
	suite.Run(t, new(LedgerIntegrationSuite))
}

func (s *LedgerIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	client := newTestClient(s.T())
	s.ledger = NewLedgerStore(client.Pool())
	s.audit = NewAuditStore(client.Pool())
	s.admin = domain.Address{0xAD}
	s.svc = service.NewPoolService(
		s.ledger,
		crypto.NewDeriver(domain.Address{0xEE}),
		service.PoolConfig{Admin: s.admin, FaucetEnabled: true},
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)
}

func (s *LedgerIntegrationSuite) TestFullRoundPaysThirteenEach() {
	title := "Integration round"
	pool, err := s.svc.CreatePool(s.ctx, s.admin, title, crypto.Hash([]byte(title)), "", "")
	s.Require().NoError(err)

	optA, err := s.svc.CreateOption(s.ctx, s.admin, pool.Address, "A", crypto.Hash(crypto.OptionTitleInput(pool.Address, "A")))
	s.Require().NoError(err)
	optB, err := s.svc.CreateOption(s.ctx, s.admin, pool.Address, "B", crypto.Hash(crypto.OptionTitleInput(pool.Address, "B")))
	s.Require().NoError(err)

	winners := []domain.Address{{0xA1}, {0xA2}, {0xA3}}
	entries := make([]domain.Entry, 0, len(winners))
	for _, p := range winners {
		s.Require().NoError(s.svc.Faucet(s.ctx, s.admin, p, 10))
		e, err := s.svc.EnterPool(s.ctx, p, optA.Address, 10)
		s.Require().NoError(err)
		entries = append(entries, e)
	}
	loser := domain.Address{0xB1}
	s.Require().NoError(s.svc.Faucet(s.ctx, s.admin, loser, 10))
	lost, err := s.svc.EnterPool(s.ctx, loser, optB.Address, 10)
	s.Require().NoError(err)

	_, err = s.svc.SetPaused(s.ctx, s.admin, pool.Address, true)
	s.Require().NoError(err)
	_, err = s.svc.SetWinningOption(s.ctx, s.admin, pool.Address, optA.Address)
	s.Require().NoError(err)

	report, err := s.svc.Settlement(s.ctx, pool.Address)
	s.Require().NoError(err)
	s.Equal(uint64(39), report.Total)
	s.Equal(uint64(1), report.Dust)

	for i, p := range winners {
		paid, err := s.svc.ClaimWin(s.ctx, p, pool.Address, optA.Address, entries[i].Address)
		s.Require().NoError(err)
		s.Equal(uint64(13), paid)
	}
	_, err = s.svc.ClaimWin(s.ctx, winners[0], pool.Address, optA.Address, entries[0].Address)
	s.ErrorIs(err, domain.ErrEntryAlreadyClaimed)
	_, err = s.svc.ClaimWin(s.ctx, loser, pool.Address, optB.Address, lost.Address)
	s.ErrorIs(err, domain.ErrLosingOption)

	got, err := s.ledger.GetPool(s.ctx, pool.Address)
	s.Require().NoError(err)
	s.Equal(uint64(40), got.Value)
	s.Equal(uint64(39), got.Paid)

	resolved, err := s.ledger.ListResolvedPools(s.ctx, domain.ListOpts{Limit: 10})
	s.Require().NoError(err)
	s.NotEmpty(resolved)
}

func (s *LedgerIntegrationSuite) TestInsufficientFundsRollsBack() {
	title := "Rollback round"
	pool, err := s.svc.CreatePool(s.ctx, s.admin, title, crypto.Hash([]byte(title)), "", "")
	s.Require().NoError(err)
	opt, err := s.svc.CreateOption(s.ctx, s.admin, pool.Address, "Yes", crypto.Hash(crypto.OptionTitleInput(pool.Address, "Yes")))
	s.Require().NoError(err)

	broke := domain.Address{0xC1}
	s.Require().NoError(s.svc.Faucet(s.ctx, s.admin, broke, 5))
	_, err = s.svc.EnterPool(s.ctx, broke, opt.Address, 6)
	s.ErrorIs(err, domain.ErrInsufficientFunds)

	bal, err := s.ledger.Balance(s.ctx, broke)
	s.Require().NoError(err)
	s.Equal(uint64(5), bal)

	got, err := s.ledger.GetOption(s.ctx, opt.Address)
	s.Require().NoError(err)
	s.Zero(got.Value)

	entries, err := s.ledger.ListEntries(s.ctx, opt.Address, domain.ListOpts{Limit: 10})
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *LedgerIntegrationSuite) TestAuditLogRoundTrip() {
	s.Require().NoError(s.audit.Log(s.ctx, "archive.pool", map[string]any{"pool": "p", "entries": 3}))
	rows, err := s.audit.List(s.ctx, domain.ListOpts{Limit: 5})
	s.Require().NoError(err)
	s.Require().NotEmpty(rows)
	s.Equal("archive.pool", rows[0].Event)
	s.Equal("p", rows[0].Detail["pool"])
}
