package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type fakePools struct {
	pools []domain.Pool
}

func (f *fakePools) ListResolvedPools(_ context.Context, opts domain.ListOpts) ([]domain.Pool, error) {
	if opts.Offset >= len(f.pools) {
		return nil, nil
	}
	rest := f.pools[opts.Offset:]
	if opts.Limit > 0 && len(rest) > opts.Limit {
		rest = rest[:opts.Limit]
	}
	return rest, nil
}

// fakeStorage records which pools have a complete archive.
type fakeStorage struct {
	mu     sync.Mutex
	stored map[domain.Address]bool
}

func (f *fakeStorage) Archived(_ context.Context, pool domain.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored[pool], nil
}

type fakeService struct {
	storage *fakeStorage
	failFor domain.Address
	calls   []domain.Address
}

func (f *fakeService) ArchivePool(_ context.Context, pool domain.Address) (string, error) {
	f.calls = append(f.calls, pool)
	if pool == f.failFor {
		return "", errors.New("upload failed")
	}
	f.storage.mu.Lock()
	f.storage.stored[pool] = true
	f.storage.mu.Unlock()
	return "archive/pools/" + pool.String() + "/summary.json", nil
}

type fakeLocks struct {
	held map[string]bool
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if f.held[key] {
		return nil, fmt.Errorf("lock %s: %w", key, domain.ErrLockHeld)
	}
	return func() {}, nil
}

func resolvedPools(n int) []domain.Pool {
	out := make([]domain.Pool, n)
	for i := range out {
		out[i] = domain.Pool{Address: domain.Address{byte(i + 1), 0x77}, WinningOption: domain.AddrPtr(domain.Address{0xFF})}
	}
	return out
}

func TestArchiverArchivesEachPoolOnce(t *testing.T) {
	ctx := context.Background()
	storage := &fakeStorage{stored: map[domain.Address]bool{}}
	svc := &fakeService{storage: storage}
	pools := &fakePools{pools: resolvedPools(3)}
	a := NewArchiver(pools, svc, storage, nil, discardLogger())

	n, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, svc.calls, 3)
}

func TestArchiverPagesThroughPools(t *testing.T) {
	storage := &fakeStorage{stored: map[domain.Address]bool{}}
	svc := &fakeService{storage: storage}
	pools := &fakePools{pools: resolvedPools(scanPageSize + 5)}
	a := NewArchiver(pools, svc, storage, nil, discardLogger())

	n, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scanPageSize+5, n)
}

func TestArchiverSkipsFailuresAndHeldLocks(t *testing.T) {
	storage := &fakeStorage{stored: map[domain.Address]bool{}}
	pools := resolvedPools(3)
	svc := &fakeService{storage: storage, failFor: pools[0].Address}
	locks := &fakeLocks{held: map[string]bool{"archive:" + pools[1].Address.String(): true}}
	a := NewArchiver(&fakePools{pools: pools}, svc, storage, locks, discardLogger())

	n, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []domain.Address{pools[0].Address, pools[2].Address}, svc.calls)

	// The failed pool is retried, the locked one is still skipped.
	svc.failFor = domain.Address{}
	n, err = a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type fakeBus struct {
	mu      sync.Mutex
	entries []domain.StreamMessage
	seq     int
}

func (b *fakeBus) Publish(context.Context, string, []byte) error { return nil }

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not used")
}

func (b *fakeBus) StreamAppend(_ context.Context, _ string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.entries = append(b.entries, domain.StreamMessage{ID: "1-" + strconv.Itoa(b.seq), Payload: payload})
	return nil
}

func (b *fakeBus) StreamRead(_ context.Context, _ string, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	after := 0
	if strings.HasPrefix(lastID, "1-") {
		after, _ = strconv.Atoi(strings.TrimPrefix(lastID, "1-"))
	}
	var out []domain.StreamMessage
	for i := after; i < len(b.entries) && len(out) < count; i++ {
		out = append(out, b.entries[i])
	}
	return out, nil
}

type collectingSink struct {
	events []domain.Event
	fail   bool
}

func (c *collectingSink) Publish(_ context.Context, ev domain.Event) error {
	c.events = append(c.events, ev)
	if c.fail {
		return errors.New("sink down")
	}
	return nil
}

func appendEvent(t *testing.T, bus *fakeBus, ev domain.Event) {
	t.Helper()
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, bus.StreamAppend(context.Background(), "stream:ledger", payload))
}

func TestRelayDrainsInOrder(t *testing.T) {
	bus := &fakeBus{}
	sink := &collectingSink{}
	appendEvent(t, bus, domain.Event{ID: "a", Type: domain.EventPoolCreated})
	require.NoError(t, bus.StreamAppend(context.Background(), "stream:ledger", []byte("not json")))
	appendEvent(t, bus, domain.Event{ID: "b", Type: domain.EventWinClaimed, Amount: 13})

	r := NewRelay(bus, "stream:ledger", sink, discardLogger()).From("0")
	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sink.events, 2)
	assert.Equal(t, "a", sink.events[0].ID)
	assert.Equal(t, uint64(13), sink.events[1].Amount)
	assert.Equal(t, "1-3", r.LastID())

	n, err = r.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRelayContinuesPastSinkErrors(t *testing.T) {
	bus := &fakeBus{}
	sink := &collectingSink{fail: true}
	for i := 0; i < relayBatch+3; i++ {
		appendEvent(t, bus, domain.Event{ID: strconv.Itoa(i), Type: domain.EventTransferred})
	}

	r := NewRelay(bus, "stream:ledger", sink, discardLogger()).From("0")
	n, err := r.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, relayBatch+3, n)
}
