package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestReplayGuard(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1700000000, 0)}
	g := NewReplayGuard(time.Minute)
	g.now = c.now

	first, err := g.FirstSeen(ctx, "sig")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := g.FirstSeen(ctx, "sig")
	require.NoError(t, err)
	assert.False(t, again)

	c.advance(time.Minute)
	expired, err := g.FirstSeen(ctx, "sig")
	require.NoError(t, err)
	assert.True(t, expired)

	c.advance(2 * time.Minute)
	g.Sweep()
	assert.Zero(t, g.Len())
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1700000000, 0)}
	rl := NewRateLimiter()
	rl.now = c.now

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "k", 3, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		c.advance(100 * time.Millisecond)
	}
	ok, _ := rl.Allow(ctx, "k", 3, time.Second)
	assert.False(t, ok)

	other, _ := rl.Allow(ctx, "other", 3, time.Second)
	assert.True(t, other)

	c.advance(800 * time.Millisecond)
	ok, _ = rl.Allow(ctx, "k", 3, time.Second)
	assert.True(t, ok, "first hit left the window")
}

func TestLockManager(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Unix(1700000000, 0)}
	lm := NewLockManager()
	lm.now = c.now

	unlock, err := lm.Acquire(ctx, "archive:p", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "archive:p", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()
	again, err := lm.Acquire(ctx, "archive:p", time.Minute)
	require.NoError(t, err)

	c.advance(2 * time.Minute)
	stolen, err := lm.Acquire(ctx, "archive:p", time.Minute)
	require.NoError(t, err, "expired lease")

	// The stale release must not drop the new holder.
	again()
	_, err = lm.Acquire(ctx, "archive:p", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	stolen()
}

func TestSignalBusPatternSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewSignalBus(0)

	pools, err := bus.Subscribe(ctx, "ch:pool:*")
	require.NoError(t, err)
	ledger, err := bus.Subscribe(ctx, "ch:ledger")
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, "ch:pool:abc", []byte("p")))
	require.NoError(t, bus.Publish(ctx, "ch:ledger", []byte("l")))

	assert.Equal(t, []byte("p"), <-pools)
	assert.Equal(t, []byte("l"), <-ledger)
	assert.Empty(t, pools)

	cancel()
	_, open := <-ledger
	assert.False(t, open)
}

func TestSignalBusStream(t *testing.T) {
	ctx := context.Background()
	bus := NewSignalBus(3)
	for _, p := range []string{"a", "b", "c", "d"} {
		require.NoError(t, bus.StreamAppend(ctx, "s", []byte(p)))
	}

	all, err := bus.StreamRead(ctx, "s", "0", 10)
	require.NoError(t, err)
	require.Len(t, all, 3, "trimmed to max length")
	assert.Equal(t, []byte("b"), all[0].Payload)

	next, err := bus.StreamRead(ctx, "s", all[0].ID, 1)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, []byte("c"), next[0].Payload)

	none, err := bus.StreamRead(ctx, "s", all[2].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
