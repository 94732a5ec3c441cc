package settlement

import (
	"fmt"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Preview reports how pool pays out given its options and the entries of its
// winning option. Entries of other options are ignored. Closed entries are
// left out of the payouts and their share counts as dust. An unresolved pool
// yields a report with no winner and no payouts.
func Preview(pool domain.Pool, options []domain.PoolOption, entries []domain.Entry) (domain.SettlementReport, error) {
	report := domain.SettlementReport{
		Pool:        pool,
		Options:     options,
		Payouts:     []domain.Payout{},
		GeneratedAt: time.Now().UTC(),
	}
	if !pool.CanClaim() {
		return report, nil
	}

	for i := range options {
		if pool.IsWinner(options[i].Address) {
			w := options[i]
			report.Winner = &w
			break
		}
	}
	if report.Winner == nil {
		return report, fmt.Errorf("settlement: winning option %s of pool %s: %w", pool.WinningOption, pool.Address, domain.ErrNotFound)
	}

	for _, e := range entries {
		if e.Option != report.Winner.Address || e.IsClosed {
			continue
		}
		amount, err := Payout(pool.Value, report.Winner.Value, e.Value)
		if err != nil {
			return report, err
		}
		report.Payouts = append(report.Payouts, domain.Payout{
			Entry:       e.Address,
			Participant: e.Participant,
			Stake:       e.Value,
			Amount:      amount,
			Claimed:     e.IsClaimed,
		})
		if report.Total, err = Add(report.Total, amount); err != nil {
			return report, err
		}
	}

	if report.Total <= pool.Value {
		report.Dust = pool.Value - report.Total
	}
	return report, nil
}
