// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
)

// defaultDisplayName is used for viewers that never chose a name.
const defaultDisplayName = "Viewer"

// displayName resolves a viewer's name: the one supplied on join, else the
// persisted one for the fingerprint, else the default.
func (d *Dispatcher) displayName(supplied, fingerprint string) string {
	if name := strings.TrimSpace(supplied); name != "" {
		return name
	}
	if name, ok := d.memory.ClientName(fingerprint); ok {
		return name
	}
	return defaultDisplayName
}

func (d *Dispatcher) handleCreateRoom(c *session.Client, data json.RawMessage) {
	if d.legacy != nil {
		c.Send(session.EventCreateRoomResult, createRoomResult{
			Success: false,
			Reason:  "server mode is disabled",
		})
		return
	}

	var req createRoomReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventCreateRoom, "invalid_payload")
		return
	}

	r, err := d.registry.Create(req.Name, req.IsPrivate, req.Fingerprint, d.now())
	if err != nil {
		logging.Error().Err(err).Msg("room creation failed")
		c.Send(session.EventCreateRoomResult, createRoomResult{
			Success: false,
			Reason:  "could not create room",
		})
		return
	}

	c.SetFingerprint(req.Fingerprint)
	c.SetAdmin(true)
	d.hub.Join(c, r.Code)
	r.AddViewer(c.ID(), room.ViewerInfo{
		Fingerprint: req.Fingerprint,
		DisplayName: d.displayName("", req.Fingerprint),
		JoinedAt:    d.now(),
	})
	r.BindAdminConn(c.ID())

	metrics.Rooms.Set(float64(d.registry.Count()))
	d.logRoom(r.Code, "room-created", map[string]any{
		"name":    r.Name,
		"private": r.Private,
	})
	d.logGeneral("room-created", map[string]any{"room": r.Code})

	c.Send(session.EventCreateRoomResult, createRoomResult{
		Success:  true,
		RoomCode: r.Code,
		RoomName: r.Name,
	})
	d.broadcastViewerCount(r)
	d.broadcastRoomsUpdated(r)
}

func (d *Dispatcher) handleJoinRoom(c *session.Client, data json.RawMessage) {
	var req joinRoomReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventJoinRoom, "invalid_payload")
		return
	}

	code := req.RoomCode
	if d.legacy != nil {
		code = LegacyRoomCode
	}
	if code == "" {
		c.Send(session.EventJoinRoomResult, joinRoomResult{
			Success: false,
			Reason:  "room code required",
		})
		return
	}
	r, ok := d.registry.Find(code)
	if !ok {
		c.Send(session.EventJoinRoomResult, joinRoomResult{
			Success: false,
			Reason:  "Room not found",
		})
		return
	}

	name := d.displayName(req.Name, req.Fingerprint)
	c.SetFingerprint(req.Fingerprint)
	d.hub.Join(c, r.Code)
	r.AddViewer(c.ID(), room.ViewerInfo{
		Fingerprint: req.Fingerprint,
		DisplayName: name,
		JoinedAt:    d.now(),
	})

	isAdmin := d.registry.IsAdmin(r, req.Fingerprint)
	if isAdmin {
		c.SetAdmin(true)
		r.BindAdminConn(c.ID())
	}

	emit := d.emitter(r.Code)
	if strings.EqualFold(d.cfg.Playback.JoinMode, config.JoinModeReset) {
		r.ResetToZero(d.now(), emit)
	}

	c.Send(session.EventJoinRoomResult, joinRoomResult{
		Success:  true,
		RoomName: r.Name,
		IsAdmin:  isAdmin,
		Viewers:  viewerNames(r),
	})

	// The joiner gets the authoritative state immediately; everyone else
	// just sees the viewer count move.
	c.Send(session.EventPlaylistUpdate, r.PlaylistSnapshot())
	c.Send(session.EventSync, r.SyncSnapshot(d.now()))

	d.broadcastViewerCount(r)
	d.broadcastRoomsUpdated(r)
	d.logRoom(r.Code, "viewer-joined", map[string]any{"name": name})
}

func (d *Dispatcher) handleLeaveRoom(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		return
	}
	d.hub.Leave(c)
	r.RemoveViewer(c.ID())
	r.DropBSLReport(c.ID())
	c.SetAdmin(false)
	d.broadcastViewerCount(r)
	d.broadcastRoomsUpdated(r)
}

func (d *Dispatcher) handleDeleteRoom(c *session.Client, data json.RawMessage) {
	if d.legacy != nil {
		d.reject(c, session.EventDeleteRoom, "legacy_mode")
		return
	}

	var req deleteRoomReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventDeleteRoom, "invalid_payload")
		return
	}
	fp := req.Fingerprint
	if fp == "" {
		fp = c.Fingerprint()
	}

	r, err := d.registry.Delete(req.RoomCode, fp)
	if err != nil {
		d.reject(c, session.EventDeleteRoom, "not_admin")
		c.Send(session.EventAdminError, adminError{
			Event:   session.EventDeleteRoom,
			Message: err.Error(),
		})
		return
	}

	d.emitter(r.Code)(session.EventRoomDeleted, map[string]string{"roomCode": r.Code})
	d.hub.EvictRoom(r.Code)
	if err := d.logs.DeleteRoomLog(r.Code); err != nil {
		logging.Warn().Err(err).Str("room", r.Code).Msg("failed to delete room log")
	}

	metrics.Rooms.Set(float64(d.registry.Count()))
	d.logGeneral("room-deleted", map[string]any{"room": r.Code})
	d.broadcastRoomsUpdated(r)
}

func (d *Dispatcher) handleGetRooms(c *session.Client) {
	c.Send(session.EventRoomsList, map[string]any{
		"rooms": d.registry.ListPublic(),
	})
}

// initialState is the reply to a request-initial-state event: everything a
// client needs to render the room from scratch.
type initialState struct {
	RoomCode         string         `json:"roomCode"`
	RoomName         string         `json:"roomName"`
	IsAdmin          bool           `json:"isAdmin"`
	ViewerCount      int            `json:"viewerCount"`
	Playlist         any            `json:"playlist"`
	Sync             any            `json:"sync"`
	ChatEnabled      bool           `json:"chatEnabled"`
	SubtitleRenderer string         `json:"subtitleRenderer"`
	DriftValues      map[int]int    `json:"driftValues,omitempty"`
	Playback         playbackLimits `json:"playback"`
}

// playbackLimits carries the client-facing playback knobs.
type playbackLimits struct {
	VolumeStep       int  `json:"volumeStep"`
	MaxVolume        int  `json:"maxVolume"`
	SkipSeconds      int  `json:"skipSeconds"`
	SkipIntroSeconds int  `json:"skipIntroSeconds"`
	ControlsDisabled bool `json:"controlsDisabled"`
	SyncDisabled     bool `json:"syncDisabled"`
}

func (d *Dispatcher) handleInitialState(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventRequestInitialState, "no_room")
		return
	}
	c.Send(session.EventInitialState, initialState{
		RoomCode:         r.Code,
		RoomName:         r.Name,
		IsAdmin:          d.isAdmin(c),
		ViewerCount:      r.ViewerCount(),
		Playlist:         r.PlaylistSnapshot(),
		Sync:             r.SyncSnapshot(d.now()),
		ChatEnabled:      d.cfg.Chat.Enabled,
		SubtitleRenderer: d.cfg.EffectiveSubtitleRenderer(),
		DriftValues:      r.DriftFor(c.Fingerprint()),
		Playback: playbackLimits{
			VolumeStep:       d.cfg.Playback.VolumeStep,
			MaxVolume:        d.cfg.Playback.MaxVolume,
			SkipSeconds:      d.cfg.Playback.SkipSeconds,
			SkipIntroSeconds: d.cfg.Playback.SkipIntroSeconds,
			ControlsDisabled: d.cfg.Client.ControlsDisabled,
			SyncDisabled:     d.cfg.Client.SyncDisabled,
		},
	})
}

func (d *Dispatcher) handleRequestSync(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventRequestSync, "no_room")
		return
	}
	c.Send(session.EventSync, r.SyncSnapshot(d.now()))
}

// viewerNames lists the room's display names, sorted for a stable reply.
func viewerNames(r *room.Room) []string {
	var names []string
	for _, v := range r.Viewers() {
		names = append(names, v.DisplayName)
	}
	sort.Strings(names)
	return names
}
