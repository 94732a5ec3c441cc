package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
)

type captureSender struct {
	titles []string
	err    error
}

func (c *captureSender) Send(_ context.Context, title, _ string) error {
	c.titles = append(c.titles, title)
	return c.err
}

func (c *captureSender) Name() string { return "capture" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNotifierFiltersByEventType(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, []string{"winner_set", " win_claimed "}, quietLogger())

	ctx := context.Background()
	require.NoError(t, n.Publish(ctx, domain.Event{Type: domain.EventPoolEntered}))
	require.NoError(t, n.Publish(ctx, domain.Event{Type: domain.EventWinnerSet}))
	require.NoError(t, n.Publish(ctx, domain.Event{Type: domain.EventWinClaimed}))

	assert.Equal(t, []string{"Winner declared", "Win claimed"}, s.titles)
}

func TestNotifierEmptyFilterForwardsAll(t *testing.T) {
	s := &captureSender{}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	require.NoError(t, n.Publish(context.Background(), domain.Event{Type: domain.EventFaucet}))
	assert.Len(t, s.titles, 1)
}

func TestNotifierKeepsGoingAfterFailure(t *testing.T) {
	bad := &captureSender{err: errors.New("down")}
	good := &captureSender{}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.NotifyAll(context.Background(), "t", "m")
	assert.Error(t, err)
	assert.Len(t, good.titles, 1)
}

func TestMessageListsFields(t *testing.T) {
	pool := domain.Address{1}
	msg := Message(domain.Event{Type: domain.EventWinClaimed, Pool: &pool, Amount: 13})
	assert.Equal(t, "pool: "+pool.String()+"\namount: 13", msg)
}

func TestTelegramSenderPostsMessage(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42").WithBaseURL(srv.URL)
	require.NoError(t, s.Send(context.Background(), "Hello", "world"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Hello*\nworld", got["text"])
}

func TestDiscordSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
