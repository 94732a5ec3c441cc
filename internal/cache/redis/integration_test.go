//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// newTestClient starts a throwaway Redis and returns a client for it.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)

	c := NewFromRedis(goredis.NewClient(opts))
	require.NoError(t, c.Ping(ctx))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestRedisBackends(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	t.Run("lock", func(t *testing.T) {
		locks := NewLockManager(c)
		release, err := locks.Acquire(ctx, "archive:p1", time.Minute)
		require.NoError(t, err)

		_, err = locks.Acquire(ctx, "archive:p1", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockHeld)

		release()
		release()
		again, err := locks.Acquire(ctx, "archive:p1", time.Minute)
		require.NoError(t, err)
		again()
	})

	t.Run("rate limiter", func(t *testing.T) {
		rl := NewRateLimiter(c)
		for i := 0; i < 3; i++ {
			ok, err := rl.Allow(ctx, "api:ip:1.2.3.4", 3, time.Minute)
			require.NoError(t, err)
			assert.True(t, ok, "request %d", i)
		}
		ok, err := rl.Allow(ctx, "api:ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("replay guard", func(t *testing.T) {
		g := NewReplayGuard(c, time.Minute)
		first, err := g.FirstSeen(ctx, "sig-1")
		require.NoError(t, err)
		assert.True(t, first)
		again, err := g.FirstSeen(ctx, "sig-1")
		require.NoError(t, err)
		assert.False(t, again)
	})

	t.Run("pool cache", func(t *testing.T) {
		pc := NewPoolCache(c, time.Minute)
		pool := domain.Pool{Address: domain.Address{1}, Title: "Alpha", Value: 40}

		_, err := pc.Get(ctx, pool.Address)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		require.NoError(t, pc.Set(ctx, pool))
		got, err := pc.Get(ctx, pool.Address)
		require.NoError(t, err)
		assert.Equal(t, "Alpha", got.Title)
		assert.Equal(t, uint64(40), got.Value)

		require.NoError(t, pc.Invalidate(ctx, pool.Address))
		_, err = pc.Get(ctx, pool.Address)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("signal bus", func(t *testing.T) {
		bus := NewSignalBus(c, 100)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		msgs, err := bus.Subscribe(subCtx, "ch:pool:*")
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, "ch:pool:abc", []byte(`{"n":1}`)))

		select {
		case m := <-msgs:
			assert.JSONEq(t, `{"n":1}`, string(m))
		case <-time.After(5 * time.Second):
			t.Fatal("no message on pattern subscription")
		}

		require.NoError(t, bus.StreamAppend(ctx, "stream:ledger", []byte("a")))
		require.NoError(t, bus.StreamAppend(ctx, "stream:ledger", []byte("b")))
		read, err := bus.StreamRead(ctx, "stream:ledger", "0", 10)
		require.NoError(t, err)
		require.Len(t, read, 2)
		assert.Equal(t, "a", string(read[0].Payload))

		rest, err := bus.StreamRead(ctx, "stream:ledger", read[0].ID, 10)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "b", string(rest[0].Payload))
	})
}
