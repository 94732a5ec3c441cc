package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const defaultPoolTTL = time.Minute

// PoolCache implements domain.PoolCache with one JSON string per pool under
// pool:{address}.
type PoolCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPoolCache creates a PoolCache. A non-positive ttl selects one minute.
func NewPoolCache(c *Client, ttl time.Duration) *PoolCache {
	if ttl <= 0 {
		ttl = defaultPoolTTL
	}
	return &PoolCache{rdb: c.Underlying(), ttl: ttl}
}

func poolKey(addr domain.Address) string { return "pool:" + addr.String() }

// Set stores pool until the TTL expires.
func (pc *PoolCache) Set(ctx context.Context, pool domain.Pool) error {
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("redis: marshal pool %s: %w", pool.Address, err)
	}
	if err := pc.rdb.Set(ctx, poolKey(pool.Address), data, pc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set pool %s: %w", pool.Address, err)
	}
	return nil
}

// Get returns the cached pool or domain.ErrNotFound.
func (pc *PoolCache) Get(ctx context.Context, addr domain.Address) (domain.Pool, error) {
	data, err := pc.rdb.Get(ctx, poolKey(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Pool{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Pool{}, fmt.Errorf("redis: get pool %s: %w", addr, err)
	}

	var pool domain.Pool
	if err := json.Unmarshal(data, &pool); err != nil {
		return domain.Pool{}, fmt.Errorf("redis: unmarshal pool %s: %w", addr, err)
	}
	return pool, nil
}

// Invalidate drops the cached pool.
func (pc *PoolCache) Invalidate(ctx context.Context, addr domain.Address) error {
	if err := pc.rdb.Del(ctx, poolKey(addr)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate pool %s: %w", addr, err)
	}
	return nil
}

var _ domain.PoolCache = (*PoolCache)(nil)
