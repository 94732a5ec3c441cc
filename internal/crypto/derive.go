package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const (
	// derivationMarker separates derived addresses from key material.
	derivationMarker = "ProgramDerivedAddress"
	maxSeeds         = 16
	maxSeedLen       = 32
)

var errNoViableBump = errors.New("crypto: no viable bump seed")

// Deriver maps seeds to record addresses under one program id. Addresses lie off
// the ed25519 curve so no private key can sign for them.
type Deriver struct {
	programID domain.Address
}

// NewDeriver creates a Deriver scoped to programID.
func NewDeriver(programID domain.Address) *Deriver {
	return &Deriver{programID: programID}
}

// ProgramID returns the derivation scope.
func (d *Deriver) ProgramID() domain.Address {
	return d.programID
}

// FindAddress walks bump seeds from 255 down and returns the first candidate
// SHA-256(seeds || bump || programID || marker) that is not a curve point.
func (d *Deriver) FindAddress(seeds ...[]byte) (domain.Address, uint8, error) {
	if len(seeds) >= maxSeeds {
		return domain.Address{}, 0, fmt.Errorf("crypto: too many seeds (%d)", len(seeds))
	}
	for i, s := range seeds {
		if len(s) > maxSeedLen {
			return domain.Address{}, 0, fmt.Errorf("crypto: seed %d is %d bytes, max %d", i, len(s), maxSeedLen)
		}
	}

	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{byte(bump)})
		h.Write(d.programID[:])
		h.Write([]byte(derivationMarker))

		var candidate domain.Address
		copy(candidate[:], h.Sum(nil))
		if !onCurve(candidate[:]) {
			return candidate, uint8(bump), nil
		}
	}
	return domain.Address{}, 0, errNoViableBump
}

// Derive returns the entry address for participant under scope (an option).
func (d *Deriver) Derive(scope, participant domain.Address) (domain.Address, error) {
	addr, _, err := d.FindAddress(scope[:], participant[:])
	if err != nil {
		return domain.Address{}, fmt.Errorf("crypto: derive entry: %w", err)
	}
	return addr, nil
}

// PoolAddress returns the address of the pool committed to by titleDigest.
func (d *Deriver) PoolAddress(titleDigest domain.Digest) (domain.Address, error) {
	addr, _, err := d.FindAddress(titleDigest[:])
	if err != nil {
		return domain.Address{}, fmt.Errorf("crypto: derive pool: %w", err)
	}
	return addr, nil
}

// OptionAddress returns the address of the option committed to by
// optionDigest. The digest already covers the pool address, so one title
// maps to one option per pool.
func (d *Deriver) OptionAddress(optionDigest domain.Digest) (domain.Address, error) {
	addr, _, err := d.FindAddress(optionDigest[:])
	if err != nil {
		return domain.Address{}, fmt.Errorf("crypto: derive option: %w", err)
	}
	return addr, nil
}

// VerifyEntry recomputes the entry address of (option, participant) and
// fails with domain.ErrIdentityMismatch when presented differs.
func (d *Deriver) VerifyEntry(option, participant, presented domain.Address) error {
	want, err := d.Derive(option, participant)
	if err != nil {
		return err
	}
	if want != presented {
		return fmt.Errorf("crypto: entry %s for participant %s: %w", presented, participant, domain.ErrIdentityMismatch)
	}
	return nil
}

func onCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
