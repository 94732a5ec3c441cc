// Package crypto holds the integrity primitives of the ledger: title digest
// commitments, derived record addresses, request signatures and the
// encrypted keyfile used by operators.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Hash returns the SHA-256 digest of b.
func Hash(b []byte) domain.Digest {
	return sha256.Sum256(b)
}

// Verify reports whether claimed is the digest of canonicalInput.
func Verify(canonicalInput []byte, claimed domain.Digest) bool {
	got := Hash(canonicalInput)
	return subtle.ConstantTimeCompare(got[:], claimed[:]) == 1
}

// PoolTitleInput is the canonical byte form committed to by a pool digest.
func PoolTitleInput(title string) []byte {
	return []byte(title)
}

// OptionTitleInput is the canonical byte form committed to by an option
// digest: the pool address in base58 text followed by the option title.
func OptionTitleInput(pool domain.Address, title string) []byte {
	return []byte(pool.String() + title)
}

// VerifyPoolTitle fails with domain.ErrContentMismatch unless digest commits
// to title.
func VerifyPoolTitle(title string, digest domain.Digest) error {
	if !Verify(PoolTitleInput(title), digest) {
		return fmt.Errorf("crypto: pool title %q: %w", title, domain.ErrContentMismatch)
	}
	return nil
}

// VerifyOptionTitle fails with domain.ErrContentMismatch unless digest
// commits to title under pool.
func VerifyOptionTitle(pool domain.Address, title string, digest domain.Digest) error {
	if !Verify(OptionTitleInput(pool, title), digest) {
		return fmt.Errorf("crypto: option title %q: %w", title, domain.ErrContentMismatch)
	}
	return nil
}
