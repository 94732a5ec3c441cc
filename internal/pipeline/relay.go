package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const relayBatch = 100

// Relay tails the ledger event stream and hands each event to a sink. It
// lets one worker send operator notifications for events committed by any
// number of API instances.
type Relay struct {
	bus    domain.SignalBus
	stream string
	sink   domain.EventPublisher
	lastID string
	logger *slog.Logger
}

// NewRelay creates a Relay that starts after the events already in stream at
// the time of the call.
func NewRelay(bus domain.SignalBus, stream string, sink domain.EventPublisher, logger *slog.Logger) *Relay {
	return &Relay{
		bus:    bus,
		stream: stream,
		sink:   sink,
		lastID: strconv.FormatInt(time.Now().UnixMilli(), 10) + "-0",
		logger: logger.With(slog.String("component", "relay")),
	}
}

// From sets the stream id to resume after. "0" replays the whole stream.
func (r *Relay) From(lastID string) *Relay {
	r.lastID = lastID
	return r
}

// LastID returns the id of the last relayed message.
func (r *Relay) LastID() string {
	return r.lastID
}

// Drain relays everything appended after LastID and returns the count.
// Undecodable messages are skipped; sink failures are logged.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	relayed := 0
	for {
		msgs, err := r.bus.StreamRead(ctx, r.stream, r.lastID, relayBatch)
		if err != nil {
			return relayed, fmt.Errorf("pipeline: read %s: %w", r.stream, err)
		}
		for _, m := range msgs {
			r.lastID = m.ID

			var ev domain.Event
			if err := json.Unmarshal(m.Payload, &ev); err != nil {
				r.logger.WarnContext(ctx, "skipping undecodable event",
					slog.String("id", m.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if err := r.sink.Publish(ctx, ev); err != nil {
				r.logger.WarnContext(ctx, "relay sink failed",
					slog.String("id", m.ID),
					slog.String("type", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
			relayed++
		}
		if len(msgs) < relayBatch {
			return relayed, nil
		}
	}
}

// RunLoop drains the stream every interval until ctx ends.
func (r *Relay) RunLoop(ctx context.Context, interval time.Duration) error {
	r.logger.InfoContext(ctx, "relay started",
		slog.String("stream", r.stream),
		slog.String("from", r.lastID),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped", slog.String("last_id", r.lastID))
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil && ctx.Err() == nil {
				r.logger.ErrorContext(ctx, "relay drain failed", slog.String("error", err.Error()))
			}
		}
	}
}
