// Package events delivers committed ledger events to the signal bus, the
// audit log, operator notifications and metrics.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Channel and stream names on the signal bus.
const (
	LedgerChannel = "ch:ledger"
	LedgerStream  = "stream:ledger"
	poolPrefix    = "ch:pool:"
	PoolPattern   = poolPrefix + "*"
)

// PoolChannel is the Pub/Sub channel carrying events of one pool.
func PoolChannel(pool domain.Address) string {
	return poolPrefix + pool.String()
}

// Fanout publishes each event to every sink. A failing sink does not stop
// the others; their errors are joined.
type Fanout struct {
	sinks  []domain.EventPublisher
	logger *slog.Logger
}

// NewFanout creates a Fanout over sinks. Nil sinks are skipped.
func NewFanout(logger *slog.Logger, sinks ...domain.EventPublisher) *Fanout {
	f := &Fanout{logger: logger.With(slog.String("component", "events"))}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Publish implements domain.EventPublisher.
func (f *Fanout) Publish(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			f.logger.WarnContext(ctx, "event sink failed",
				slog.String("type", string(ev.Type)),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BusSink writes events as JSON to the ledger channel, the pool channel and
// the ledger stream.
type BusSink struct {
	bus domain.SignalBus
}

// NewBusSink creates a BusSink.
func NewBusSink(bus domain.SignalBus) *BusSink {
	return &BusSink{bus: bus}
}

// Publish implements domain.EventPublisher.
func (b *BusSink) Publish(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", ev.Type, err)
	}

	var errs []error
	if err := b.bus.Publish(ctx, LedgerChannel, payload); err != nil {
		errs = append(errs, err)
	}
	if ev.Pool != nil {
		if err := b.bus.Publish(ctx, PoolChannel(*ev.Pool), payload); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.bus.StreamAppend(ctx, LedgerStream, payload); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("events: bus %s: %w", ev.Type, errors.Join(errs...))
	}
	return nil
}

// AuditSink records every event in the audit log.
type AuditSink struct {
	audit domain.AuditStore
}

// NewAuditSink creates an AuditSink.
func NewAuditSink(audit domain.AuditStore) *AuditSink {
	return &AuditSink{audit: audit}
}

// Publish implements domain.EventPublisher.
func (a *AuditSink) Publish(ctx context.Context, ev domain.Event) error {
	if err := a.audit.Log(ctx, "ledger."+string(ev.Type), Detail(ev)); err != nil {
		return fmt.Errorf("events: audit %s: %w", ev.Type, err)
	}
	return nil
}

// Detail flattens ev into an audit detail map with only the set fields.
func Detail(ev domain.Event) map[string]any {
	d := map[string]any{"event_id": ev.ID, "at": ev.At}
	addr := func(key string, a *domain.Address) {
		if a != nil {
			d[key] = a.String()
		}
	}
	addr("pool", ev.Pool)
	addr("option", ev.Option)
	addr("entry", ev.Entry)
	addr("account", ev.Account)
	addr("counterpart", ev.Counterpart)
	if ev.Amount > 0 {
		d["amount"] = ev.Amount
	}
	if ev.IsPaused != nil {
		d["is_paused"] = *ev.IsPaused
	}
	if ev.Title != "" {
		d["title"] = ev.Title
	}
	if ev.Path != "" {
		d["path"] = ev.Path
	}
	return d
}

var (
	_ domain.EventPublisher = (*Fanout)(nil)
	_ domain.EventPublisher = (*BusSink)(nil)
	_ domain.EventPublisher = (*AuditSink)(nil)
)
