package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// ReplayGuard remembers request signatures across API instances so a signed
// request is accepted once.
type ReplayGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewReplayGuard creates a guard that remembers a signature for ttl.
func NewReplayGuard(c *Client, ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{rdb: c.Underlying(), ttl: ttl}
}

// FirstSeen records signature and reports whether it was new.
func (g *ReplayGuard) FirstSeen(ctx context.Context, signature string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, "replay:"+signature, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: replay guard: %w", err)
	}
	return ok, nil
}

var _ domain.ReplayGuard = (*ReplayGuard)(nil)
