// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package protocol routes inbound websocket events to the room, playback,
// BSL, media and chat subsystems, applies admin gating and fans the
// resulting broadcasts back out through the hub.
package protocol

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/chat"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/media"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/store"
)

// LegacyRoomCode is the fixed code of the single room used when server mode
// is off. It contains characters outside the code alphabet so it can never
// collide with a generated code.
const LegacyRoomCode = "LOCAL0"

// legacyRoomName is the display name of the single legacy room.
const legacyRoomName = "Watch Party"

// adminOnly lists the events a connection must hold admin authority to
// send. Everything else is open to any viewer (further gated per handler).
var adminOnly = map[string]bool{
	session.EventSetPlaylist:          true,
	session.EventPlaylistReorder:      true,
	session.EventPlaylistJump:         true,
	session.EventPlaylistNext:         true,
	session.EventSkipToNextVideo:      true,
	session.EventTrackChange:          true,
	session.EventBSLCheckRequest:      true,
	session.EventBSLGetStatus:         true,
	session.EventBSLManualMatch:       true,
	session.EventBSLSetDrift:          true,
	session.EventSetClientName:        true,
	session.EventSetClientDisplayName: true,
	session.EventGetClientList:        true,
	session.EventDeleteRoom:           true,
}

// Deps collects the subsystems the dispatcher routes between.
type Deps struct {
	Config    *config.Config
	Hub       *session.Hub
	Registry  *room.Registry
	Authority *auth.Authority
	Memory    *store.Memory
	Logs      *store.LogSink
	Media     media.Adapter
	Chat      *chat.Relay

	// Now is the dispatcher's clock; nil means time.Now. Tests pin it.
	Now func() time.Time
}

// Dispatcher is the inbound event router.
type Dispatcher struct {
	cfg       *config.Config
	hub       *session.Hub
	registry  *room.Registry
	authority *auth.Authority
	memory    *store.Memory
	logs      *store.LogSink
	media     media.Adapter
	chat      *chat.Relay
	now       func() time.Time

	legacy *room.Room // non-nil when server mode is off
}

// New builds a dispatcher. When server mode is off it adopts the single
// legacy room into the registry so room lookups and the clock ticker see it.
func New(d Deps) *Dispatcher {
	dp := &Dispatcher{
		cfg:       d.Config,
		hub:       d.Hub,
		registry:  d.Registry,
		authority: d.Authority,
		memory:    d.Memory,
		logs:      d.Logs,
		media:     d.Media,
		chat:      d.Chat,
		now:       d.Now,
	}
	if dp.now == nil {
		dp.now = time.Now
	}
	if !d.Config.Server.ServerMode {
		dp.legacy = room.New(LegacyRoomCode, legacyRoomName, true, "", dp.now())
		d.Registry.Adopt(dp.legacy)
	}
	return dp
}

// Attach installs the dispatcher on the hub. Must run before the hub
// accepts connections.
func (d *Dispatcher) Attach() {
	d.hub.SetHandler(d.Handle)
	d.hub.SetOnDisconnect(d.onDisconnect)
}

// LegacyRoom returns the single room of legacy mode, or nil.
func (d *Dispatcher) LegacyRoom() *room.Room { return d.legacy }

// isAdmin reports whether the connection holds admin authority, either by
// joining a room as its admin or by registering through the authority.
func (d *Dispatcher) isAdmin(c *session.Client) bool {
	return c.IsAdmin() || d.authority.IsVerified(c.ID())
}

// resolveRoom returns the room a connection's events apply to: the legacy
// room when server mode is off, otherwise the joined room.
func (d *Dispatcher) resolveRoom(c *session.Client) (*room.Room, bool) {
	if d.legacy != nil {
		return d.legacy, true
	}
	code := c.RoomCode()
	if code == "" {
		return nil, false
	}
	return d.registry.Find(code)
}

// emitter wraps room broadcasts with the broadcast counter. Room mutators
// invoke it while holding the room lock, which keeps broadcast order
// consistent across viewers.
func (d *Dispatcher) emitter(roomCode string) room.Emit {
	return func(event string, data any) {
		metrics.Broadcasts.WithLabelValues(event).Inc()
		d.hub.BroadcastRoom(roomCode, event, data)
	}
}

// reject counts and logs a refused event.
func (d *Dispatcher) reject(c *session.Client, event, reason string) {
	metrics.EventsRejected.WithLabelValues(reason).Inc()
	logging.Warn().
		Str("conn", c.ID()).
		Str("event", event).
		Str("reason", reason).
		Msg("event rejected")
}

// logRoom appends one audit entry to a room's event log.
func (d *Dispatcher) logRoom(roomCode, event string, extra map[string]any) {
	entry := store.LogEntry{Timestamp: d.now().UTC(), Event: event, Extra: extra}
	if err := d.logs.AppendRoom(roomCode, entry); err != nil {
		logging.Warn().Err(err).Str("room", roomCode).Msg("failed to append room log")
	}
}

// logGeneral appends one audit entry to the general event log.
func (d *Dispatcher) logGeneral(event string, extra map[string]any) {
	entry := store.LogEntry{Timestamp: d.now().UTC(), Event: event, Extra: extra}
	if err := d.logs.AppendGeneral(entry); err != nil {
		logging.Warn().Err(err).Msg("failed to append general log")
	}
}

// Handle routes one inbound event. It runs on the connection's read
// goroutine; room mutations serialize on the room lock.
func (d *Dispatcher) Handle(c *session.Client, event string, data json.RawMessage) {
	metrics.Events.WithLabelValues(event).Inc()

	if adminOnly[event] && !d.isAdmin(c) {
		d.reject(c, event, "unauthorized")
		c.Send(session.EventAdminError, adminError{
			Event:   event,
			Message: "admin authority required",
		})
		return
	}

	switch event {
	case session.EventCreateRoom:
		d.handleCreateRoom(c, data)
	case session.EventJoinRoom:
		d.handleJoinRoom(c, data)
	case session.EventLeaveRoom:
		d.handleLeaveRoom(c)
	case session.EventDeleteRoom:
		d.handleDeleteRoom(c, data)
	case session.EventGetRooms:
		d.handleGetRooms(c)
	case session.EventRequestInitialState:
		d.handleInitialState(c)
	case session.EventRequestSync:
		d.handleRequestSync(c)

	case session.EventControl:
		d.handleControl(c, data)
	case session.EventSetPlaylist:
		d.handleSetPlaylist(c, data)
	case session.EventPlaylistJump, session.EventPlaylistNext:
		d.handlePlaylistJump(c, data)
	case session.EventPlaylistReorder:
		d.handlePlaylistReorder(c, data)
	case session.EventSkipToNextVideo:
		d.handleSkipToNext(c)
	case session.EventTrackChange:
		d.handleTrackChange(c, data)

	case session.EventBSLAdminRegister:
		d.handleBSLAdminRegister(c, data)
	case session.EventBSLFolderSelected:
		d.handleBSLFolderSelected(c, data)
	case session.EventBSLCheckRequest:
		d.handleBSLCheckRequest(c)
	case session.EventBSLGetStatus:
		d.handleBSLGetStatus(c)
	case session.EventBSLManualMatch:
		d.handleBSLManualMatch(c, data)
	case session.EventBSLSetDrift:
		d.handleBSLSetDrift(c, data)

	case session.EventClientRegister:
		d.handleClientRegister(c, data)
	case session.EventGetClientList:
		d.handleGetClientList(c)
	case session.EventSetClientName:
		d.handleSetClientName(c, data)
	case session.EventSetClientDisplayName:
		d.handleSetClientDisplayName(c, data)
	case session.EventChatMessage:
		d.handleChatMessage(c, data)

	default:
		d.reject(c, event, "unknown_event")
	}
}

// onDisconnect cleans up after a closed connection: viewer entries, folder
// reports and admin verification. The hub has already removed the
// connection from its broadcast group.
func (d *Dispatcher) onDisconnect(c *session.Client) {
	connID := c.ID()
	for _, r := range d.registry.All() {
		if _, ok := r.Viewer(connID); !ok {
			continue
		}
		r.RemoveViewer(connID)
		r.DropBSLReport(connID)
		d.broadcastViewerCount(r)
		d.broadcastRoomsUpdated(r)
	}
	d.authority.Drop(connID)
}

// broadcastViewerCount pushes the room's viewer count to its members. The
// legacy room additionally mirrors it as client-count for older clients.
func (d *Dispatcher) broadcastViewerCount(r *room.Room) {
	count := r.ViewerCount()
	emit := d.emitter(r.Code)
	emit(session.EventViewerCount, count)
	if d.legacy != nil {
		emit(session.EventClientCount, count)
	}
}

// broadcastRoomsUpdated refreshes the public rooms list on every connection
// when a public room's membership or existence changed.
func (d *Dispatcher) broadcastRoomsUpdated(r *room.Room) {
	if d.legacy != nil || r.Private {
		return
	}
	metrics.Broadcasts.WithLabelValues(session.EventRoomsUpdated).Inc()
	d.hub.BroadcastAll(session.EventRoomsUpdated, map[string]any{
		"rooms": d.registry.ListPublic(),
	})
}
