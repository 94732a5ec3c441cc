package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

func TestPayoutFloorsTwice(t *testing.T) {
	amount, err := Payout(100, 30, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(33), amount)

	amount, err = Payout(40, 30, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), amount)
}

func TestPayoutSingleWinnerTakesAll(t *testing.T) {
	amount, err := Payout(500, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), amount)
}

func TestPayoutDivisionByZero(t *testing.T) {
	_, err := Payout(100, 0, 10)
	assert.ErrorIs(t, err, domain.ErrDivisionByZero)
	assert.Equal(t, domain.KindArithmetic, domain.KindOf(err))
}

func TestPayoutOverflow(t *testing.T) {
	_, err := Payout(math.MaxUint64, 1, math.MaxUint64)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}

func TestPayoutScaledPoolMustFit(t *testing.T) {
	_, err := Payout(math.MaxUint64/100+1, math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	edge := uint64(math.MaxUint64 / 100)
	amount, err := Payout(edge, edge, edge)
	require.NoError(t, err)
	assert.Equal(t, edge, amount)
}

func TestCheckedArithmetic(t *testing.T) {
	_, err := Add(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	sum, err := Add(2, 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), sum)

}

type claimFixture struct {
	deriver     *crypto.Deriver
	pool        domain.Pool
	winner      domain.PoolOption
	loser       domain.PoolOption
	participant domain.Address
	entry       domain.Entry
}

func newClaimFixture(t *testing.T) claimFixture {
	t.Helper()
	d := crypto.NewDeriver(domain.Address{0xAA})
	poolAddr := domain.Address{1}
	winner := domain.PoolOption{Address: domain.Address{2}, Pool: poolAddr, Value: 30}
	loser := domain.PoolOption{Address: domain.Address{3}, Pool: poolAddr, Value: 10}
	participant := domain.Address{4}

	entryAddr, err := d.Derive(winner.Address, participant)
	require.NoError(t, err)

	return claimFixture{
		deriver: d,
		pool: domain.Pool{
			Address:       poolAddr,
			IsPaused:      true,
			WinningOption: domain.AddrPtr(winner.Address),
			Value:         40,
		},
		winner:      winner,
		loser:       loser,
		participant: participant,
		entry:       domain.Entry{Address: entryAddr, Option: winner.Address, Participant: participant, Value: 10},
	}
}

func TestClaimPaysWinner(t *testing.T) {
	f := newClaimFixture(t)
	amount, err := Claim(f.pool, f.winner, f.entry, f.participant, f.deriver)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), amount)
}

func TestCheckClaimOrder(t *testing.T) {
	f := newClaimFixture(t)

	// Claimed is reported before anything else, even for a losing option
	// and the wrong participant.
	claimed := f.entry
	claimed.IsClaimed = true
	err := CheckClaim(f.pool, f.loser, claimed, domain.Address{9}, f.deriver)
	assert.ErrorIs(t, err, domain.ErrEntryAlreadyClaimed)

	closed := f.entry
	closed.IsClosed = true
	err = CheckClaim(f.pool, f.loser, closed, domain.Address{9}, f.deriver)
	assert.ErrorIs(t, err, domain.ErrEntryClosed)

	// Losing option is reported before identity.
	err = CheckClaim(f.pool, f.loser, f.entry, domain.Address{9}, f.deriver)
	assert.ErrorIs(t, err, domain.ErrLosingOption)

	err = CheckClaim(f.pool, f.winner, f.entry, domain.Address{9}, f.deriver)
	assert.ErrorIs(t, err, domain.ErrIdentityMismatch)
}

func TestCheckClaimUnresolvedPool(t *testing.T) {
	f := newClaimFixture(t)
	f.pool.WinningOption = nil
	err := CheckClaim(f.pool, f.winner, f.entry, f.participant, f.deriver)
	assert.ErrorIs(t, err, domain.ErrLosingOption)
}

func TestPreviewReportsDust(t *testing.T) {
	poolAddr := domain.Address{1}
	a := domain.PoolOption{Address: domain.Address{2}, Pool: poolAddr, Value: 30}
	b := domain.PoolOption{Address: domain.Address{3}, Pool: poolAddr, Value: 10}
	pool := domain.Pool{Address: poolAddr, IsPaused: true, WinningOption: domain.AddrPtr(a.Address), Value: 40}

	entries := []domain.Entry{
		{Address: domain.Address{10}, Option: a.Address, Participant: domain.Address{20}, Value: 10},
		{Address: domain.Address{11}, Option: a.Address, Participant: domain.Address{21}, Value: 10, IsClaimed: true},
		{Address: domain.Address{12}, Option: a.Address, Participant: domain.Address{22}, Value: 10},
		{Address: domain.Address{13}, Option: b.Address, Participant: domain.Address{23}, Value: 10},
	}

	report, err := Preview(pool, []domain.PoolOption{a, b}, entries)
	require.NoError(t, err)
	require.NotNil(t, report.Winner)
	assert.Equal(t, a.Address, report.Winner.Address)
	require.Len(t, report.Payouts, 3)
	for _, p := range report.Payouts {
		assert.Equal(t, uint64(13), p.Amount)
	}
	assert.True(t, report.Payouts[1].Claimed)
	assert.Equal(t, uint64(39), report.Total)
	assert.Equal(t, uint64(1), report.Dust)
}

func TestPreviewUnresolved(t *testing.T) {
	pool := domain.Pool{Address: domain.Address{1}, Value: 10}
	report, err := Preview(pool, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, report.Winner)
	assert.Empty(t, report.Payouts)
	assert.Zero(t, report.Dust)
}
