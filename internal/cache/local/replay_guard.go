// Package local holds single-process implementations of the cache
// interfaces, used when the ledger runs without Redis.
package local

import (
	"context"
	"sync"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// ReplayGuard remembers request signatures in memory for a TTL. Expired
// entries are swept on every sweepEvery calls.
type ReplayGuard struct {
	seen  map[string]time.Time
	ttl   time.Duration
	calls int
	mu    sync.Mutex
	now   func() time.Time
}

const sweepEvery = 1024

// NewReplayGuard creates a ReplayGuard that treats a signature as a replay
// for ttl after it was first seen.
func NewReplayGuard(ttl time.Duration) *ReplayGuard {
	return &ReplayGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// FirstSeen records signature and reports whether it was new.
func (g *ReplayGuard) FirstSeen(_ context.Context, signature string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.calls++
	if g.calls%sweepEvery == 0 {
		g.sweep(now)
	}
	if at, ok := g.seen[signature]; ok && now.Sub(at) < g.ttl {
		return false, nil
	}
	g.seen[signature] = now
	return true, nil
}

// Len returns the number of remembered signatures.
func (g *ReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}

// Sweep drops expired signatures.
func (g *ReplayGuard) Sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sweep(g.now())
}

func (g *ReplayGuard) sweep(now time.Time) {
	for sig, at := range g.seen {
		if now.Sub(at) >= g.ttl {
			delete(g.seen, sig)
		}
	}
}

var _ domain.ReplayGuard = (*ReplayGuard)(nil)
