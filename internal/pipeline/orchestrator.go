// Package pipeline runs the background workers of the ledger: the cold
// storage archiver and the event relay that feeds operator notifications.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the configured workers until ctx ends. Either worker may
// be nil.
type Orchestrator struct {
	archiver        *Archiver
	relay           *Relay
	archiveInterval time.Duration
	relayInterval   time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	archiver *Archiver,
	relay *Relay,
	archiveInterval time.Duration,
	relayInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		archiver:        archiver,
		relay:           relay,
		archiveInterval: archiveInterval,
		relayInterval:   relayInterval,
		logger:          logger,
	}
}

// Run starts the workers in an errgroup. A worker that stops for any reason
// other than cancellation cancels the other and its error is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Bool("archiver", o.archiver != nil),
		slog.Bool("relay", o.relay != nil),
		slog.Duration("archive_interval", o.archiveInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if o.relay != nil {
		g.Go(func() error {
			err := o.relay.RunLoop(ctx, o.relayInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("relay: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
