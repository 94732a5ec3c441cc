package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mr-tron/base58"
)

// AddressLen is the byte length of every ledger address.
const AddressLen = 32

// Address identifies a ledger record or an account. Participant addresses are
// ed25519 public keys; record addresses are derived (see crypto.Deriver).
// The canonical text form is base58.
type Address [AddressLen]byte

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	b, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("domain: parse address %q: %w", s, err)
	}
	if len(b) != AddressLen {
		return a, fmt.Errorf("domain: parse address %q: expected %d bytes, got %d", s, AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// AddressFromBytes copies b into an Address.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressLen {
		return a, fmt.Errorf("domain: address: expected %d bytes, got %d", AddressLen, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// String returns the base58 text form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, AddressLen)
	copy(b, a[:])
	return b
}

// IsZero reports whether a is the zero address, used as "none".
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// DigestLen is the byte length of a SHA-256 commitment.
const DigestLen = 32

// Digest is a caller-supplied or recomputed SHA-256 commitment. It travels
// as 0x-prefixed hex.
type Digest [DigestLen]byte

// ParseDigest decodes a 0x-prefixed hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hexutil.Decode(s)
	if err != nil {
		return d, fmt.Errorf("domain: parse digest: %w", err)
	}
	if len(b) != DigestLen {
		return d, fmt.Errorf("domain: parse digest: expected %d bytes, got %d", DigestLen, len(b))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string {
	return hexutil.Encode(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
