package local

import (
	"context"
	"path"
	"strconv"
	"sync"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

const (
	defaultStreamMaxLen = 10000
	subscriberBuffer    = 128
)

// SignalBus is an in-process domain.SignalBus. Subscribers whose buffer is
// full miss messages; streams keep the last maxLen entries.
type SignalBus struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	streams map[string][]domain.StreamMessage
	seq     uint64
	maxLen  int
}

type subscriber struct {
	pattern string
	ch      chan []byte
}

// NewSignalBus creates a SignalBus. A non-positive maxLen selects 10000.
func NewSignalBus(maxLen int) *SignalBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &SignalBus{
		subs:    make(map[*subscriber]struct{}),
		streams: make(map[string][]domain.StreamMessage),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every subscriber whose channel or glob pattern
// matches channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		if ok, _ := path.Match(s.pattern, channel); !ok {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe registers for channel, which may be a glob pattern. The returned
// channel closes when ctx ends.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	s := &subscriber{pattern: channel, ch: make(chan []byte, subscriberBuffer)}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, s)
		close(s.ch)
		b.mu.Unlock()
	}()
	return s.ch, nil
}

// StreamAppend adds payload to stream under a millisecond-style id.
func (b *SignalBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	msgs := append(b.streams[stream], domain.StreamMessage{
		ID:      "0-" + strconv.FormatUint(b.seq, 10),
		Payload: append([]byte(nil), payload...),
	})
	if len(msgs) > b.maxLen {
		msgs = msgs[len(msgs)-b.maxLen:]
	}
	b.streams[stream] = msgs
	return nil
}

// StreamRead returns up to count entries with an id greater than lastID.
func (b *SignalBus) StreamRead(_ context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	after := parseSeq(lastID)
	var out []domain.StreamMessage
	for _, m := range b.streams[stream] {
		if parseSeq(m.ID) <= after {
			continue
		}
		out = append(out, m)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

// parseSeq reads the sequence part of an id. Ids that are not from this bus
// (such as a wall-clock start id) sort before every entry.
func parseSeq(id string) uint64 {
	if len(id) < 3 || id[:2] != "0-" {
		return 0
	}
	n, err := strconv.ParseUint(id[2:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

var _ domain.SignalBus = (*SignalBus)(nil)
