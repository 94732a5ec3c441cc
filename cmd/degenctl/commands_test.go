package main

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/middleware"
)

func TestDigestFor(t *testing.T) {
	d, err := digestFor([]string{"pool", "Alpha"})
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyPoolTitle("Alpha", d))

	pool := domain.Address{7}
	d, err = digestFor([]string{"option", pool.String(), "Yes"})
	require.NoError(t, err)
	require.NoError(t, crypto.VerifyOptionTitle(pool, "Yes", d))

	_, err = digestFor([]string{"option", "Yes"})
	assert.Error(t, err)
}

func TestDeriveForMatchesDeriver(t *testing.T) {
	d := crypto.NewDeriver(domain.Address{9})
	option, participant := domain.Address{1}, domain.Address{2}

	got, err := deriveFor(d, []string{"entry", option.String(), participant.String()})
	require.NoError(t, err)
	want, err := d.Derive(option, participant)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	pool, err := deriveFor(d, []string{"pool", "Alpha"})
	require.NoError(t, err)
	wantPool, err := d.PoolAddress(crypto.Hash([]byte("Alpha")))
	require.NoError(t, err)
	assert.Equal(t, wantPool, pool)

	_, err = deriveFor(d, []string{"entry", "bad", participant.String()})
	assert.Error(t, err)
}

func TestSignedRequestVerifies(t *testing.T) {
	kp, err := crypto.GenerateKey()
	require.NoError(t, err)

	body := []byte(`{"option":"x","amount":10}`)
	now := time.Unix(1700000000, 0)
	req, err := signedRequest(context.Background(), kp, "POST", "http://localhost:8000/", "api/entries?dry=1", body, now)
	require.NoError(t, err)

	assert.Equal(t, "/api/entries", req.URL.Path)
	assert.Equal(t, kp.Address().String(), req.Header.Get(middleware.HeaderSigner))
	ts, err := strconv.ParseInt(req.Header.Get(middleware.HeaderTimestamp), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), ts)

	sent, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, sent)

	require.NoError(t, crypto.VerifyRequest(kp.Address(), req.Header.Get(middleware.HeaderSignature), "POST", req.URL.Path, ts, sent))
}

func TestWatchHelpers(t *testing.T) {
	assert.Equal(t, "ws://localhost:8000/ws", wsURL("http://localhost:8000/"))
	assert.Equal(t, "wss://api.example/ws", wsURL("https://api.example"))

	pool := domain.Address{3}
	channels, err := poolChannels([]string{pool.String()})
	require.NoError(t, err)
	assert.Equal(t, []string{"ch:pool:" + pool.String()}, channels)

	_, err = poolChannels([]string{"not-an-address-0"})
	assert.Error(t, err)
}
