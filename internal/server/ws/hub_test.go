package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/cache/local"
	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/events"
)

func TestRoute(t *testing.T) {
	pool := domain.Address{7}
	withPool, err := json.Marshal(domain.Event{Type: domain.EventPoolEntered, Pool: &pool})
	require.NoError(t, err)
	assert.Equal(t, []string{events.LedgerChannel, events.PoolChannel(pool)}, Route(withPool))

	noPool, err := json.Marshal(domain.Event{Type: domain.EventTransferred})
	require.NoError(t, err)
	assert.Equal(t, []string{events.LedgerChannel}, Route(noPool))

	assert.Equal(t, []string{events.LedgerChannel}, Route([]byte("garbage")))
}

type frame struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	Pool     *string   `json:"pool"`
	Channels []string  `json:"channels"`
	At       time.Time `json:"at"`
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func TestHubDeliversBySubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := local.NewSignalBus(0)
	hub := NewHub(bus, slog.New(slog.NewJSONHandler(io.Discard, nil)), Config{Mode: "api"})
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "hello", readFrame(t, conn).Type)

	poolA, poolB := domain.Address{0xA}, domain.Address{0xB}
	publish := func(id string, pool domain.Address) {
		payload, err := json.Marshal(domain.Event{ID: id, Type: domain.EventPoolEntered, Pool: domain.AddrPtr(pool)})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, events.LedgerChannel, payload))
	}

	publish("1", poolA)
	assert.Equal(t, "1", readFrame(t, conn).ID, "ledger channel is on by default")

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Channels: []string{events.LedgerChannel}}))
	assert.Empty(t, readFrame(t, conn).Channels)
	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Channels: []string{events.PoolChannel(poolB)}}))
	assert.Equal(t, []string{events.PoolChannel(poolB)}, readFrame(t, conn).Channels)

	publish("2", poolA)
	publish("3", poolB)
	assert.Equal(t, "3", readFrame(t, conn).ID)
}

func TestClientFollowsPoolChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	bus := local.NewSignalBus(0)
	hub := NewHub(bus, logger, Config{Mode: "serve"})
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	poolA, poolB := domain.Address{0xA}, domain.Address{0xB}
	got := make(chan domain.Event, 4)
	ready := make(chan struct{}, 4)

	client := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), []string{events.PoolChannel(poolB)},
		func(ev domain.Event) { got <- ev }, logger).
		OnSubscribed(func(channels []string) {
			if len(channels) == 1 && channels[0] == events.PoolChannel(poolB) {
				ready <- struct{}{}
			}
		})
	runErr := make(chan error, 1)
	go func() { runErr <- client.Run(ctx) }()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("subscription was never acknowledged")
	}

	sink := events.NewBusSink(bus)
	require.NoError(t, sink.Publish(ctx, domain.Event{ID: "a", Type: domain.EventPoolEntered, Pool: domain.AddrPtr(poolA)}))
	require.NoError(t, sink.Publish(ctx, domain.Event{ID: "b", Type: domain.EventWinnerSet, Pool: domain.AddrPtr(poolB)}))

	select {
	case ev := <-got:
		assert.Equal(t, "b", ev.ID)
		assert.Equal(t, domain.EventWinnerSet, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}
