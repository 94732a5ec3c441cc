package domain

import (
	"context"
	"time"
)

// PoolCache provides fast pool lookups for the read API.
type PoolCache interface {
	Set(ctx context.Context, pool Pool) error
	Get(ctx context.Context, addr Address) (Pool, error)
	Invalidate(ctx context.Context, addr Address) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// ReplayGuard remembers signed request signatures for a while.
type ReplayGuard interface {
	// FirstSeen records signature and reports whether it was not already
	// recorded.
	FirstSeen(ctx context.Context, signature string) (bool, error)
}
