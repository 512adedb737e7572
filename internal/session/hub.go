// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package session is the transport layer: websocket connections, per-room
// broadcast groups and the inbound event pipeline. It knows event names and
// JSON envelopes but nothing about playback semantics.
package session

import (
	"net/http"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The admin and watch pages are served same-origin; embedding players
	// elsewhere is not supported.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventHandler receives every inbound event that passed the rate limiter.
type EventHandler func(c *Client, event string, data json.RawMessage)

// Hub tracks connections and their room subscription groups.
type Hub struct {
	limiter *AddrLimiter

	mu      sync.RWMutex
	clients map[string]*Client            // connection ID -> client
	rooms   map[string]map[string]*Client // room code -> connection ID -> client

	handler      EventHandler
	onDisconnect func(c *Client)
}

// NewHub creates an empty hub.
func NewHub(limiter *AddrLimiter) *Hub {
	if limiter == nil {
		limiter = NewAddrLimiter()
	}
	return &Hub{
		limiter: limiter,
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// SetHandler installs the inbound event handler. Must be called before
// ServeWS accepts connections.
func (h *Hub) SetHandler(fn EventHandler) { h.handler = fn }

// SetOnDisconnect installs a hook run after a connection is removed.
func (h *Hub) SetOnDisconnect(fn func(c *Client)) { h.onDisconnect = fn }

// ServeWS upgrades an HTTP request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := newClient(h, conn, r.RemoteAddr)
	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()
	metrics.Connections.Set(float64(total))

	logging.Debug().
		Str("conn", c.id).
		Str("remote", c.remoteAddr).
		Int("total", total).
		Msg("connection registered")
	c.start()
}

// unregister removes a connection from the hub and its room group.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c.id)
	h.leaveLocked(c)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()
	metrics.Connections.Set(float64(total))

	logging.Debug().Str("conn", c.id).Int("total", total).Msg("connection unregistered")
	if h.onDisconnect != nil {
		h.onDisconnect(c)
	}
}

// dispatch hands one inbound event to the handler.
func (h *Hub) dispatch(c *Client, event string, data json.RawMessage) {
	if h.handler == nil {
		logging.Warn().Str("event", event).Msg("no event handler installed, dropping event")
		return
	}
	h.handler(c, event, data)
}

// Join subscribes a connection to a room's broadcast group, leaving any
// previous group first.
func (h *Hub) Join(c *Client, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
	group := h.rooms[roomCode]
	if group == nil {
		group = make(map[string]*Client)
		h.rooms[roomCode] = group
	}
	group[c.id] = c
	c.setRoomCode(roomCode)
}

// Leave removes a connection from its broadcast group.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c *Client) {
	code := c.RoomCode()
	if code == "" {
		return
	}
	if group, ok := h.rooms[code]; ok {
		delete(group, c.id)
		if len(group) == 0 {
			delete(h.rooms, code)
		}
	}
	c.setRoomCode("")
}

// roomMembers snapshots a group sorted by connection ID so every broadcast
// walks members in the same order.
func (h *Hub) roomMembers(roomCode string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	group := h.rooms[roomCode]
	out := make([]*Client, 0, len(group))
	for _, c := range group {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// BroadcastRoom sends one event to every member of a room, each exactly
// once. The payload is marshaled once and shared.
func (h *Hub) BroadcastRoom(roomCode, event string, data any) {
	raw, err := encodeEnvelope(event, data)
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	for _, c := range h.roomMembers(roomCode) {
		c.enqueue(raw)
	}
}

// BroadcastAll sends one event to every connection in the process.
func (h *Hub) BroadcastAll(event string, data any) {
	raw, err := encodeEnvelope(event, data)
	if err != nil {
		logging.Error().Err(err).Str("event", event).Msg("failed to encode broadcast")
		return
	}
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, c := range clients {
		c.enqueue(raw)
	}
}

// SendTo sends one event to a single connection by ID.
func (h *Hub) SendTo(connID, event string, data any) bool {
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	c.Send(event, data)
	return true
}

// Client returns a connection by ID.
func (h *Hub) Client(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// RoomClientIDs returns the connection IDs subscribed to a room, sorted.
func (h *Hub) RoomClientIDs(roomCode string) []string {
	members := h.roomMembers(roomCode)
	out := make([]string, len(members))
	for i, c := range members {
		out[i] = c.id
	}
	return out
}

// RoomSize returns the number of connections subscribed to a room.
func (h *Hub) RoomSize(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomCode])
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// EvictRoom removes every member from a room's group (after a room
// deletion). The connections stay open.
func (h *Hub) EvictRoom(roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.rooms[roomCode] {
		c.setRoomCode("")
	}
	delete(h.rooms, roomCode)
}

// CloseAll closes every connection. Used during graceful shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}
