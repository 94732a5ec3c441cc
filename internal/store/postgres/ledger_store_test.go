package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@db:5432/ledger?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "ledger", User: "u", Password: "p"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestAppendListOpts(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := appendListOpts("SELECT 1 FROM entries WHERE option = $1", []any{"opt"},
		"created_at", "created_at", domain.ListOpts{Since: &since, Limit: 10, Offset: 5})

	assert.Equal(t, "SELECT 1 FROM entries WHERE option = $1 AND created_at >= $2 ORDER BY created_at LIMIT $3 OFFSET $4", query)
	assert.Equal(t, []any{"opt", since, 10, 5}, args)
}

func TestUnitsRoundTrip(t *testing.T) {
	v, err := parseUnits(formatUnits(18446744073709551615))
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), v)

	_, err = parseUnits("18446744073709551616")
	assert.Error(t, err)
}

func TestMapError(t *testing.T) {
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), domain.ErrNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)), domain.ErrNotFound)

	check := &pgconn.PgError{Code: checkViolation, ConstraintName: "balances_amount_check"}
	assert.ErrorIs(t, mapError(check), domain.ErrArithmeticOverflow)

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestOptionalAddress(t *testing.T) {
	assert.Nil(t, optionalAddress(nil))
	a := domain.Address{1}
	got := optionalAddress(&a)
	require.NotNil(t, got)
	assert.Equal(t, a.String(), *got)
}
