package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

func TestVerifyPoolTitle(t *testing.T) {
	good := Hash([]byte("Alpha"))
	require.NoError(t, VerifyPoolTitle("Alpha", good))

	err := VerifyPoolTitle("Alpha", Hash([]byte("alpha")))
	assert.ErrorIs(t, err, domain.ErrContentMismatch)

	err = VerifyPoolTitle("Alpha", domain.Digest{})
	assert.ErrorIs(t, err, domain.ErrContentMismatch)
}

func TestHashKnownVector(t *testing.T) {
	d := Hash([]byte("abc"))
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(d[:]))
}

func TestVerifyOptionTitleCoversPool(t *testing.T) {
	poolA, poolB := domain.Address{1}, domain.Address{2}
	digest := Hash([]byte(poolA.String() + "Yes"))

	require.NoError(t, VerifyOptionTitle(poolA, "Yes", digest))
	assert.ErrorIs(t, VerifyOptionTitle(poolB, "Yes", digest), domain.ErrContentMismatch)
	assert.ErrorIs(t, VerifyOptionTitle(poolA, "No", digest), domain.ErrContentMismatch)
}

func TestDeriveIsDeterministicAndOffCurve(t *testing.T) {
	d := NewDeriver(domain.Address{9})
	opt, participant := domain.Address{1}, domain.Address{2}

	a1, err := d.Derive(opt, participant)
	require.NoError(t, err)
	a2, err := d.Derive(opt, participant)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.False(t, onCurve(a1[:]))
}

func TestDeriveBindsBothInputs(t *testing.T) {
	d := NewDeriver(domain.Address{9})
	optA, optB := domain.Address{1}, domain.Address{2}
	p1, p2 := domain.Address{3}, domain.Address{4}

	a1, err := d.Derive(optA, p1)
	require.NoError(t, err)
	b1, err := d.Derive(optB, p1)
	require.NoError(t, err)
	a2, err := d.Derive(optA, p2)
	require.NoError(t, err)

	assert.NotEqual(t, a1, b1, "same participant under two options")
	assert.NotEqual(t, a1, a2, "two participants under one option")
}

func TestDeriveIsScopedByProgram(t *testing.T) {
	opt, participant := domain.Address{1}, domain.Address{2}

	a, err := NewDeriver(domain.Address{9}).Derive(opt, participant)
	require.NoError(t, err)
	b, err := NewDeriver(domain.Address{10}).Derive(opt, participant)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyEntry(t *testing.T) {
	d := NewDeriver(domain.Address{9})
	opt, owner, other := domain.Address{1}, domain.Address{2}, domain.Address{3}

	entry, err := d.Derive(opt, owner)
	require.NoError(t, err)

	require.NoError(t, d.VerifyEntry(opt, owner, entry))
	assert.ErrorIs(t, d.VerifyEntry(opt, other, entry), domain.ErrIdentityMismatch)
	assert.ErrorIs(t, d.VerifyEntry(domain.Address{5}, owner, entry), domain.ErrIdentityMismatch)
}

func TestFindAddressRejectsLongSeeds(t *testing.T) {
	d := NewDeriver(domain.Address{9})
	_, _, err := d.FindAddress(make([]byte, 33))
	assert.Error(t, err)
}

func TestPoolAndOptionAddressesDiffer(t *testing.T) {
	d := NewDeriver(domain.Address{9})
	poolAddr, err := d.PoolAddress(Hash([]byte("Alpha")))
	require.NoError(t, err)
	optAddr, err := d.OptionAddress(Hash(OptionTitleInput(poolAddr, "Alpha")))
	require.NoError(t, err)
	assert.NotEqual(t, poolAddr, optAddr)
}

func TestRequestSignature(t *testing.T) {
	kp, err := GenerateKey()
	require.NoError(t, err)

	body := []byte(`{"amount":10}`)
	sig := kp.SignRequest("POST", "/api/entries", 1700000000, body)

	require.NoError(t, VerifyRequest(kp.Address(), sig, "POST", "/api/entries", 1700000000, body))

	err = VerifyRequest(kp.Address(), sig, "POST", "/api/entries", 1700000000, []byte(`{"amount":11}`))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	other, err := GenerateKey()
	require.NoError(t, err)
	err = VerifyRequest(other.Address(), sig, "POST", "/api/entries", 1700000000, body)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestKeyfileRoundTrip(t *testing.T) {
	kp, err := GenerateKey()
	require.NoError(t, err)

	data, err := EncryptKeyPair(kp, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadKeyPair(KeyConfig{KeyfilePath: path, Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), loaded.Address())

	_, err = DecryptKeyPair(data, "wrong")
	assert.Error(t, err)

	_, err = EncryptKeyPair(kp, "")
	assert.Error(t, err)
}

func TestLoadKeyPairRawSeed(t *testing.T) {
	kp, err := GenerateKey()
	require.NoError(t, err)

	loaded, err := LoadKeyPair(KeyConfig{RawSeed: "0x" + hex.EncodeToString(kp.Seed())})
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), loaded.Address())

	_, err = LoadKeyPair(KeyConfig{})
	assert.Error(t, err)
}
