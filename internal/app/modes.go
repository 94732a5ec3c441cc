package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Degen-Markets/degen-markets-solana/internal/crypto"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/events"
	"github.com/Degen-Markets/degen-markets-solana/internal/pipeline"
	"github.com/Degen-Markets/degen-markets-solana/internal/server"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/handler"
	"github.com/Degen-Markets/degen-markets-solana/internal/server/ws"
	"github.com/Degen-Markets/degen-markets-solana/internal/service"
)

const shutdownTimeout = 10 * time.Second

// ServeMode runs the API, the websocket hub and the background workers in
// one process.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	svc, err := a.buildService(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	a.startWorkers(ctx, g, deps, svc)
	return g.Wait()
}

// APIMode runs only the API and websocket hub. Workers run elsewhere in
// archive mode against the same Postgres and Redis.
func (a *App) APIMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting api mode")

	svc, err := a.buildService(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// ArchiveMode runs only the background workers: the settlement archiver and
// the notification relay.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	svc, err := a.buildService(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startWorkers(ctx, g, deps, svc)
	return g.Wait()
}

// buildService assembles the PoolService with every optional collaborator
// that was wired.
func (a *App) buildService(deps *Dependencies) (*service.PoolService, error) {
	admin, err := domain.ParseAddress(a.cfg.Ledger.Admin)
	if err != nil {
		return nil, fmt.Errorf("app: ledger admin: %w", err)
	}
	programID, err := domain.ParseAddress(a.cfg.Ledger.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("app: ledger program id: %w", err)
	}

	svc := service.NewPoolService(
		deps.Ledger,
		crypto.NewDeriver(programID),
		service.PoolConfig{
			Admin:               admin,
			AllowWinnerOverride: a.cfg.Ledger.AllowWinnerOverride,
			FaucetEnabled:       a.cfg.Ledger.FaucetEnabled,
			MaxTextLen:          a.cfg.Ledger.MaxTextLen,
		},
		a.logger,
	).WithEvents(events.NewFanout(a.logger,
		events.NewBusSink(deps.SignalBus),
		events.NewAuditSink(deps.Audit),
		deps.Metrics,
	))

	if deps.PoolCache != nil {
		svc.WithCache(deps.PoolCache)
	}
	if deps.Archiver != nil {
		svc.WithArchiver(deps.Archiver)
	}
	return svc, nil
}

// startWorkers adds the pipeline orchestrator to g. Notifications go through
// the relay so a split deployment sends each one once, from the worker.
func (a *App) startWorkers(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.PoolService) {
	var archiver *pipeline.Archiver
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Ledger, svc, deps.Archiver, deps.LockManager, a.logger)
	}

	var relay *pipeline.Relay
	if deps.Notifier != nil {
		relay = pipeline.NewRelay(deps.SignalBus, events.LedgerStream, deps.Notifier, a.logger)
	}

	if archiver == nil && relay == nil {
		a.logger.InfoContext(ctx, "no background workers configured")
		return
	}

	orch := pipeline.NewOrchestrator(
		archiver,
		relay,
		a.cfg.Archive.Interval.Duration,
		a.cfg.Archive.RelayInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// startHTTPServer adds the API server and websocket hub to g. The server is
// shut down when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.PoolService) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	var archives handler.ArchiveReader
	if deps.Archiver != nil {
		archives = deps.Archiver
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			MaxSkew:     a.cfg.Server.MaxSkew.Duration,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(deps.Checks, a.logger),
			Pools:    handler.NewPoolHandler(svc, archives, a.logger),
			Entries:  handler.NewEntryHandler(svc, a.logger),
			Accounts: handler.NewAccountHandler(svc, a.logger),
		},
		server.Deps{
			Replay:   deps.ReplayGuard,
			Limiter:  deps.RateLimiter,
			Observer: deps.Metrics,
			Metrics:  deps.Metrics.Handler(),
			Hub:      hub,
		},
		a.logger,
	)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	})
}
