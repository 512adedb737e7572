// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"errors"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/chat"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
)

// clientEntry is one row of the admin client list.
type clientEntry struct {
	ConnectionID string    `json:"connectionId"`
	Fingerprint  string    `json:"fingerprint"`
	DisplayName  string    `json:"displayName"`
	JoinedAt     time.Time `json:"joinedAt"`
}

func (d *Dispatcher) handleClientRegister(c *session.Client, data json.RawMessage) {
	var req clientRegisterReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventClientRegister, "invalid_payload")
		return
	}
	c.SetFingerprint(req.Fingerprint)

	// Legacy mode has no join-room step; registering a fingerprint places
	// the connection into the single room directly.
	if d.legacy != nil {
		name := d.displayName("", req.Fingerprint)
		d.hub.Join(c, d.legacy.Code)
		d.legacy.AddViewer(c.ID(), room.ViewerInfo{
			Fingerprint: req.Fingerprint,
			DisplayName: name,
			JoinedAt:    d.now(),
		})
		d.broadcastViewerCount(d.legacy)
	}

	if name, ok := d.memory.ClientName(req.Fingerprint); ok {
		c.Send(session.EventNameUpdated, chat.NameUpdate{DisplayName: name})
	}
}

func (d *Dispatcher) handleGetClientList(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventGetClientList, "no_room")
		return
	}
	c.Send(session.EventClientList, map[string]any{"clients": clientList(r)})
}

// clientList snapshots a room's viewers sorted by connection ID.
func clientList(r *room.Room) []clientEntry {
	viewers := r.Viewers()
	out := make([]clientEntry, 0, len(viewers))
	for connID, v := range viewers {
		out = append(out, clientEntry{
			ConnectionID: connID,
			Fingerprint:  v.Fingerprint,
			DisplayName:  v.DisplayName,
			JoinedAt:     v.JoinedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectionID < out[j].ConnectionID })
	return out
}

func (d *Dispatcher) handleSetClientName(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventSetClientName, "no_room")
		return
	}
	var req setClientNameReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventSetClientName, "invalid_payload")
		return
	}
	v, ok := r.Viewer(req.ClientID)
	if !ok {
		d.reject(c, session.EventSetClientName, "unknown_client")
		return
	}
	d.renameFingerprint(c, r, v.Fingerprint, req.DisplayName)
}

func (d *Dispatcher) handleSetClientDisplayName(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventSetClientDisplayName, "no_room")
		return
	}
	var req setClientDisplayNameReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventSetClientDisplayName, "invalid_payload")
		return
	}
	d.renameFingerprint(c, r, req.Fingerprint, req.DisplayName)
}

// renameFingerprint persists a display name, rewrites every affected viewer
// entry, notifies the renamed connections and refreshes the admin's list.
func (d *Dispatcher) renameFingerprint(c *session.Client, r *room.Room, fingerprint, displayName string) {
	if err := d.memory.SetClientName(fingerprint, displayName); err != nil {
		logging.Warn().Err(err).Msg("failed to persist display name")
	}
	for _, connID := range r.UpdateViewerNames(fingerprint, displayName) {
		d.hub.SendTo(connID, session.EventNameUpdated, chat.NameUpdate{DisplayName: displayName})
	}
	c.Send(session.EventClientList, map[string]any{"clients": clientList(r)})
	d.pushBSLStatus(r)
}

func (d *Dispatcher) handleChatMessage(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventChatMessage, "no_room")
		return
	}

	var req chatMessageReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventChatMessage, "invalid_payload")
		return
	}

	sender := req.Sender
	if sender == "" {
		if v, ok := r.Viewer(c.ID()); ok {
			sender = v.DisplayName
		}
	}

	out, err := d.chat.Handle(c.Fingerprint(), chat.Message{
		Sender:  sender,
		Message: req.Message,
	})
	switch {
	case errors.Is(err, chat.ErrChatDisabled):
		d.reject(c, session.EventChatMessage, "chat_disabled")
		return
	case errors.Is(err, chat.ErrBadName):
		c.Send(session.EventChatMessage, chat.Message{
			Sender:  chat.SystemSender,
			Message: "invalid display name",
		})
		return
	case err != nil:
		d.reject(c, session.EventChatMessage, "chat_error")
		return
	}

	if out.NameUpdate != nil {
		c.Send(session.EventNameUpdated, *out.NameUpdate)
		r.UpdateViewerNames(c.Fingerprint(), out.NameUpdate.DisplayName)
	}
	if out.Broadcast != nil {
		d.emitter(r.Code)(session.EventChatMessage, *out.Broadcast)
	}
}
