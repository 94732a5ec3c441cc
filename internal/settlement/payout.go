// Package settlement computes proportional payouts for resolved pools and
// gates the one-time claim transition.
package settlement

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// hundredths is the fixed-point scale of the intermediate win share.
const hundredths = 100

// Payout returns the amount a winning entry of entryValue receives from a pool
// of poolValue whose winning option holds optionValue. The division is done in
// two floored stages:
//
//	share  = poolValue * 100 / optionValue
//	amount = entryValue * share / 100
//
// so fractional units are dropped twice and the payouts of an option can sum
// to less than the pool value. Both products must fit in 64 bits.
func Payout(poolValue, optionValue, entryValue uint64) (uint64, error) {
	if optionValue == 0 {
		return 0, fmt.Errorf("settlement: option value is zero: %w", domain.ErrDivisionByZero)
	}

	scaled, err := mul(poolValue, hundredths)
	if err != nil {
		return 0, fmt.Errorf("settlement: win share of pool %d: %w", poolValue, err)
	}
	share := scaled / optionValue

	amount, err := mul(entryValue, share)
	if err != nil {
		return 0, fmt.Errorf("settlement: payout of %d: %w", entryValue, err)
	}
	return amount / hundredths, nil
}

func mul(a, b uint64) (uint64, error) {
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !prod.IsUint64() {
		return 0, domain.ErrArithmeticOverflow
	}
	return prod.Uint64(), nil
}

// Add returns a+b or domain.ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, overflow := new(uint256.Int).AddOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow || !sum.IsUint64() {
		return 0, fmt.Errorf("settlement: %d + %d: %w", a, b, domain.ErrArithmeticOverflow)
	}
	return sum.Uint64(), nil
}
