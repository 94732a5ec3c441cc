package domain

import (
	"context"
	"time"
)

// EventType names an observable ledger effect.
type EventType string

const (
	EventPoolCreated       EventType = "pool_created"
	EventPoolStatusChanged EventType = "pool_status_changed"
	EventWinnerSet         EventType = "winner_set"
	EventOptionCreated     EventType = "option_created"
	EventPoolEntered       EventType = "pool_entered"
	EventWinClaimed        EventType = "win_claimed"
	EventPoolFunded        EventType = "pool_funded"
	EventEntryClosed       EventType = "entry_closed"
	EventTransferred       EventType = "transferred"
	EventFaucet            EventType = "faucet"
	EventPoolArchived      EventType = "pool_archived"
)

// Event is emitted after an operation commits. Only the fields relevant to
// the event type are set.
type Event struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	Pool        *Address  `json:"pool,omitempty"`
	Option      *Address  `json:"option,omitempty"`
	Entry       *Address  `json:"entry,omitempty"`
	Account     *Address  `json:"account,omitempty"`
	Counterpart *Address  `json:"counterpart,omitempty"`
	Amount      uint64    `json:"amount,omitempty"`
	IsPaused    *bool     `json:"is_paused,omitempty"`
	Title       string    `json:"title,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Description string    `json:"description,omitempty"`
	Path        string    `json:"path,omitempty"`
	At          time.Time `json:"at"`
}

// EventPublisher delivers committed events to monitoring sinks.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// AddrPtr returns a pointer to a copy of a, for optional event fields.
func AddrPtr(a Address) *Address {
	return &a
}
