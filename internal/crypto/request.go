package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// KeyPair is an ed25519 signing key. Its public key is the account address.
type KeyPair struct {
	priv ed25519.PrivateKey
}

// GenerateKey creates a random KeyPair.
func GenerateKey() (*KeyPair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return &KeyPair{priv: priv}, nil
}

// KeyFromSeed rebuilds a KeyPair from its 32-byte seed.
func KeyFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("crypto: expected %d-byte seed, got %d bytes", ed25519.SeedSize, len(seed))
	}
	return &KeyPair{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

// Seed returns the 32-byte private seed.
func (k *KeyPair) Seed() []byte {
	return k.priv.Seed()
}

// Address returns the account address (the public key).
func (k *KeyPair) Address() domain.Address {
	var a domain.Address
	copy(a[:], k.priv.Public().(ed25519.PublicKey))
	return a
}

// Sign signs msg.
func (k *KeyPair) Sign(msg []byte) []byte {
	return ed25519.Sign(k.priv, msg)
}

// RequestMessage is the canonical byte string a client signs for an API
// request:
//
//	METHOD \n PATH \n UNIX_SECONDS \n hex(sha256(body))
func RequestMessage(method, path string, timestamp int64, body []byte) []byte {
	sum := sha256.Sum256(body)
	return []byte(method + "\n" + path + "\n" + strconv.FormatInt(timestamp, 10) + "\n" + hex.EncodeToString(sum[:]))
}

// SignRequest returns the base58 signature of the request message.
func (k *KeyPair) SignRequest(method, path string, timestamp int64, body []byte) string {
	return base58.Encode(k.Sign(RequestMessage(method, path, timestamp, body)))
}

// VerifyRequest checks a base58 request signature made by signer.
func VerifyRequest(signer domain.Address, signature, method, path string, timestamp int64, body []byte) error {
	sig, err := base58.Decode(signature)
	if err != nil {
		return fmt.Errorf("crypto: decode signature: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("crypto: signature is %d bytes: %w", len(sig), domain.ErrUnauthorized)
	}
	if !ed25519.Verify(ed25519.PublicKey(signer[:]), RequestMessage(method, path, timestamp, body), sig) {
		return fmt.Errorf("crypto: bad signature for %s: %w", signer, domain.ErrUnauthorized)
	}
	return nil
}
