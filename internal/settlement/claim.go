package settlement

import (
	"fmt"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// EntryVerifier re-derives an entry address from its option and participant.
type EntryVerifier interface {
	VerifyEntry(option, participant, presented domain.Address) error
}

// CheckClaim runs the claim preconditions in order: the entry is unclaimed,
// still open, placed on the winning option, and derived from
// (option, participant).
func CheckClaim(pool domain.Pool, option domain.PoolOption, entry domain.Entry, participant domain.Address, v EntryVerifier) error {
	if entry.IsClaimed {
		return fmt.Errorf("settlement: entry %s: %w", entry.Address, domain.ErrEntryAlreadyClaimed)
	}
	if entry.IsClosed {
		return fmt.Errorf("settlement: entry %s: %w", entry.Address, domain.ErrEntryClosed)
	}
	if !pool.IsWinner(option.Address) {
		return fmt.Errorf("settlement: option %s: %w", option.Address, domain.ErrLosingOption)
	}
	if err := v.VerifyEntry(option.Address, participant, entry.Address); err != nil {
		return err
	}
	return nil
}

// Claim checks the preconditions and returns the payout for entry. It does
// not mutate anything.
func Claim(pool domain.Pool, option domain.PoolOption, entry domain.Entry, participant domain.Address, v EntryVerifier) (uint64, error) {
	if err := CheckClaim(pool, option, entry, participant, v); err != nil {
		return 0, err
	}
	return Payout(pool.Value, option.Value, entry.Value)
}
