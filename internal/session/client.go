// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB

	sendBufferSize = 256
)

// Envelope is the wire frame of every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id         string
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	joinedAt   time.Time

	mu          sync.Mutex
	roomCode    string
	isAdmin     bool
	fingerprint string
}

// newClient wraps an upgraded connection.
func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		id:         uuid.NewString(),
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		remoteAddr: remoteAddr,
		joinedAt:   time.Now(),
	}
}

// ID returns the connection ID.
func (c *Client) ID() string { return c.id }

// RemoteAddr returns the peer address the connection arrived from.
func (c *Client) RemoteAddr() string { return c.remoteAddr }

// JoinedAt returns when the connection was accepted.
func (c *Client) JoinedAt() time.Time { return c.joinedAt }

// RoomCode returns the room this connection is subscribed to, or "".
func (c *Client) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

func (c *Client) setRoomCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomCode = code
}

// IsAdmin reports whether this connection holds admin status.
func (c *Client) IsAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isAdmin
}

// SetAdmin marks the connection's admin status.
func (c *Client) SetAdmin(admin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isAdmin = admin
}

// Fingerprint returns the device fingerprint the connection registered, or
// "".
func (c *Client) Fingerprint() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fingerprint
}

// SetFingerprint records the device fingerprint.
func (c *Client) SetFingerprint(fp string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fingerprint = fp
}

// Send marshals and queues one event for this connection. A slow consumer
// whose buffer is full loses the event rather than blocking the sender.
func (c *Client) Send(event string, data any) {
	raw, err := encodeEnvelope(event, data)
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("failed to encode event")
		return
	}
	c.enqueue(raw)
}

func (c *Client) enqueue(raw []byte) {
	select {
	case c.send <- raw:
	default:
		logging.Warn().
			Str("conn", c.id).
			Str("remote", c.remoteAddr).
			Msg("send buffer full, dropping event")
	}
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// readPump pumps events from the websocket connection into the hub's
// handler, charging the rate limiter per event.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Str("conn", c.id).Msg("unexpected websocket close")
			}
			break
		}
		if env.Event == "" {
			continue
		}

		if ok, retryAfter := c.hub.limiter.Allow(c.remoteAddr, time.Now()); !ok {
			metrics.RateLimited.Inc()
			c.Send(EventRateLimitError, map[string]any{
				"message":    "too many events, slow down",
				"retryAfter": retryAfter.Seconds(),
			})
			continue
		}

		c.hub.dispatch(c, env.Event, env.Data)
	}
}

// writePump pumps queued events to the websocket connection and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case raw, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// start begins reading and writing for the client.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}
