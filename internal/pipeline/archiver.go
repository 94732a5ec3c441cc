package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const (
	scanPageSize   = 100
	archiveLockTTL = 5 * time.Minute
)

// PoolArchiver archives one resolved pool and returns the summary path.
type PoolArchiver interface {
	ArchivePool(ctx context.Context, pool domain.Address) (string, error)
}

// ResolvedPools lists pools that have a declared winner.
type ResolvedPools interface {
	ListResolvedPools(ctx context.Context, opts domain.ListOpts) ([]domain.Pool, error)
}

// ArchiveIndex reports whether cold storage already holds a complete
// archive of a pool.
type ArchiveIndex interface {
	Archived(ctx context.Context, pool domain.Address) (bool, error)
}

// Archiver copies the settlement record of every resolved pool to cold
// storage once.
type Archiver struct {
	pools   ResolvedPools
	service PoolArchiver
	index   ArchiveIndex
	locks   domain.LockManager
	logger  *slog.Logger
}

// NewArchiver creates an Archiver. locks may be nil when a single instance
// runs the worker.
func NewArchiver(
	pools ResolvedPools,
	service PoolArchiver,
	index ArchiveIndex,
	locks domain.LockManager,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		pools:   pools,
		service: service,
		index:   index,
		locks:   locks,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// Run makes one pass over the resolved pools and returns how many were
// archived. A pool that fails is logged and retried on the next pass.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	archived := 0
	for offset := 0; ; offset += scanPageSize {
		page, err := a.pools.ListResolvedPools(ctx, domain.ListOpts{Limit: scanPageSize, Offset: offset})
		if err != nil {
			return archived, fmt.Errorf("pipeline: list resolved pools: %w", err)
		}
		for _, p := range page {
			if ctx.Err() != nil {
				return archived, ctx.Err()
			}
			ok, err := a.archiveOne(ctx, p.Address)
			if err != nil {
				a.logger.WarnContext(ctx, "archive pool failed",
					slog.String("pool", p.Address.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ok {
				archived++
			}
		}
		if len(page) < scanPageSize {
			break
		}
	}
	return archived, nil
}

func (a *Archiver) archiveOne(ctx context.Context, pool domain.Address) (bool, error) {
	exists, err := a.index.Archived(ctx, pool)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	if a.locks != nil {
		unlock, err := a.locks.Acquire(ctx, "archive:"+pool.String(), archiveLockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.DebugContext(ctx, "pool archive held elsewhere", slog.String("pool", pool.String()))
			return false, nil
		}
		if err != nil {
			return false, err
		}
		defer unlock()
	}

	path, err := a.service.ArchivePool(ctx, pool)
	if err != nil {
		return false, err
	}
	a.logger.InfoContext(ctx, "pool archived",
		slog.String("pool", pool.String()),
		slog.String("path", path),
	)
	return true, nil
}

// RunLoop runs a pass immediately and then every interval until ctx ends.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	a.logger.InfoContext(ctx, "archiver started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		start := time.Now()
		n, err := a.Run(ctx)
		if err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archive run complete",
				slog.Int("archived", n),
				slog.Duration("took", time.Since(start)),
			)
		}

		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
