// Package notify forwards selected ledger events to operator chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

// Sender delivers one message to a chat channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans messages out to its senders. Publish only forwards events
// whose type is in the configured set; an empty set forwards everything.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier for senders, filtered to events.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Wants reports whether events of type t are forwarded.
func (n *Notifier) Wants(t domain.EventType) bool {
	return len(n.events) == 0 || n.events[t]
}

// Publish implements domain.EventPublisher.
func (n *Notifier) Publish(ctx context.Context, ev domain.Event) error {
	if !n.Wants(ev.Type) {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(ev.Type)))
		return nil
	}
	return n.dispatch(ctx, Title(ev), Message(ev))
}

// NotifyAll sends a free-form message regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch tries every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Title is the one-line headline of ev.
func Title(ev domain.Event) string {
	switch ev.Type {
	case domain.EventPoolCreated:
		return "Pool created: " + ev.Title
	case domain.EventPoolStatusChanged:
		if ev.IsPaused != nil && *ev.IsPaused {
			return "Pool paused"
		}
		return "Pool resumed"
	case domain.EventWinnerSet:
		return "Winner declared"
	case domain.EventWinClaimed:
		return "Win claimed"
	case domain.EventPoolArchived:
		return "Pool archived"
	default:
		return strings.ReplaceAll(string(ev.Type), "_", " ")
	}
}

// Message lists the addresses and amount carried by ev.
func Message(ev domain.Event) string {
	var b strings.Builder
	field := func(name string, a *domain.Address) {
		if a != nil {
			fmt.Fprintf(&b, "%s: %s\n", name, a)
		}
	}
	field("pool", ev.Pool)
	field("option", ev.Option)
	field("entry", ev.Entry)
	field("account", ev.Account)
	field("to", ev.Counterpart)
	if ev.Amount > 0 {
		fmt.Fprintf(&b, "amount: %d\n", ev.Amount)
	}
	if ev.Path != "" {
		fmt.Fprintf(&b, "path: %s\n", ev.Path)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var _ domain.EventPublisher = (*Notifier)(nil)
