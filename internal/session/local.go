// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

import (
	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
)

// NewLocalClient registers a hub client that is not backed by a websocket
// connection. Queued events accumulate in its buffer until drained with
// Drain. Tests drive the event pipeline through it.
func (h *Hub) NewLocalClient(remoteAddr string) *Client {
	c := newClient(h, nil, remoteAddr)
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

// Deliver feeds one inbound event through the hub pipeline as if the
// connection had received it, including the rate limiter.
func (c *Client) Deliver(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode local event")
		return
	}
	c.hub.dispatch(c, event, raw)
}

// Drain empties the client's send buffer and decodes the queued envelopes.
func (c *Client) Drain() []Envelope {
	var out []Envelope
	for {
		select {
		case raw := <-c.send:
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				logging.Error().Err(err).Msg("failed to decode queued envelope")
				continue
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

// Close tears the connection down. Local clients are unregistered directly;
// websocket clients close their socket, which ends the pumps.
func (c *Client) Close() {
	if c.conn == nil {
		c.hub.unregister(c)
		return
	}
	_ = c.conn.Close()
}
