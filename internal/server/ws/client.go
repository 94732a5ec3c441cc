package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Degen-Markets/degen-markets-solana/internal/domain"
	"github.com/Degen-Markets/degen-markets-solana/internal/events"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
	handshakeTimeout  = 15 * time.Second
)

// EventHandler receives each ledger event read from the hub.
type EventHandler func(domain.Event)

// Client follows a Hub over websocket and restores its subscriptions after
// every reconnect.
type Client struct {
	url          string
	channels     []string
	onEvent      EventHandler
	onSubscribed func(channels []string)
	logger       *slog.Logger
	dialer       websocket.Dialer
}

// NewClient creates a Client for the hub at url. An empty channels list
// keeps the hub's default of every ledger event; otherwise the client
// receives only the listed channels.
func NewClient(url string, channels []string, onEvent EventHandler, logger *slog.Logger) *Client {
	return &Client{
		url:      url,
		channels: channels,
		onEvent:  onEvent,
		logger:   logger.With(slog.String("component", "ws_client")),
		dialer:   websocket.Dialer{HandshakeTimeout: handshakeTimeout},
	}
}

// OnSubscribed registers a hook called with the hub's acknowledged
// subscription set.
func (c *Client) OnSubscribed(fn func(channels []string)) *Client {
	c.onSubscribed = fn
	return c
}

// Run connects and reads events until ctx is cancelled, reconnecting with
// exponential backoff.
func (c *Client) Run(ctx context.Context) error {
	delay := reconnectDelay
	for {
		connected, err := c.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = reconnectDelay
		}
		c.logger.Warn("ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// runConnection serves one connection. connected reports whether the dial
// succeeded so Run can reset its backoff.
func (c *Client) runConnection(ctx context.Context) (connected bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("ws: dial: %w", err)
	}

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(messageType, data)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				_ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = conn.Close()
				return
			case <-ticker.C:
				if write(websocket.PingMessage, nil) != nil {
					return
				}
			}
		}
	}()
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for _, msg := range c.subscriptionMessages() {
		data, err := json.Marshal(msg)
		if err != nil {
			return true, fmt.Errorf("ws: marshal %s: %w", msg.Action, err)
		}
		if err := write(websocket.TextMessage, data); err != nil {
			return true, fmt.Errorf("ws: %s: %w", msg.Action, err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("ws: closed by server")
			}
			return true, fmt.Errorf("ws: read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleFrame(data)
	}
}

// subscriptionMessages turns the wanted channels into hub commands.
func (c *Client) subscriptionMessages() []subscribeMsg {
	if len(c.channels) == 0 {
		return nil
	}
	var out []subscribeMsg
	if !slices.Contains(c.channels, events.LedgerChannel) {
		out = append(out, subscribeMsg{Action: "unsubscribe", Channels: []string{events.LedgerChannel}})
	}
	return append(out, subscribeMsg{Action: "subscribe", Channels: c.channels})
}

// handleFrame dispatches one text frame. Hub control frames carry a type the
// ledger never uses for events.
func (c *Client) handleFrame(data []byte) {
	var envelope struct {
		Type     string   `json:"type"`
		Channels []string `json:"channels"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logger.Debug("ws: dropping undecodable frame", slog.String("error", err.Error()))
		return
	}

	switch envelope.Type {
	case "hello":
		c.logger.Debug("ws: connected", slog.String("url", c.url))
	case "subscriptions":
		if c.onSubscribed != nil {
			c.onSubscribed(envelope.Channels)
		}
	default:
		var ev domain.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Debug("ws: dropping undecodable event", slog.String("error", err.Error()))
			return
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}
