// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/bsl"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
)

// failedAuthGrace is how long a rejected admin registration keeps its
// connection: long enough for the auth result to flush, short enough that
// brute-forcing stays slow.
const failedAuthGrace = time.Second

func (d *Dispatcher) handleBSLAdminRegister(c *session.Client, data json.RawMessage) {
	var req bslAdminRegisterReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventBSLAdminRegister, "invalid_payload")
		return
	}

	r, ok := d.resolveRoom(c)
	if !ok && req.RoomCode != "" {
		r, ok = d.registry.Find(req.RoomCode)
	}
	if !ok {
		d.failAdminAuth(c, "Room not found")
		return
	}

	// Multi-room admin authority comes from the room's creation
	// fingerprint; the authority layer adds the legacy fingerprint lock.
	if d.legacy == nil && !d.registry.IsAdmin(r, req.Fingerprint) {
		d.failAdminAuth(c, "Unauthorized device fingerprint")
		return
	}
	if !d.authority.Register(c.ID(), req.Fingerprint) {
		d.failAdminAuth(c, "Unauthorized device fingerprint")
		return
	}

	c.SetFingerprint(req.Fingerprint)
	c.SetAdmin(true)
	r.BindAdminConn(c.ID())
	c.Send(session.EventAdminAuthResult, adminAuthResult{Success: true})
	d.logRoom(r.Code, "admin-registered", nil)
}

// failAdminAuth reports the rejection and then drops the connection after a
// short grace so the result can still be delivered.
func (d *Dispatcher) failAdminAuth(c *session.Client, reason string) {
	d.reject(c, session.EventBSLAdminRegister, "auth_failed")
	c.Send(session.EventAdminAuthResult, adminAuthResult{
		Success: false,
		Reason:  reason,
	})
	time.AfterFunc(failedAuthGrace, c.Close)
}

func (d *Dispatcher) handleBSLFolderSelected(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventBSLFolderSelected, "no_room")
		return
	}

	var req bslFolderSelectedReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventBSLFolderSelected, "invalid_payload")
		return
	}
	fp := req.Fingerprint
	if fp == "" {
		fp = c.Fingerprint()
	}
	name := req.DisplayName
	if name == "" {
		if v, ok := r.Viewer(c.ID()); ok {
			name = v.DisplayName
		}
	}

	matcher := &bsl.Matcher{
		Advanced:  d.cfg.BSL.AdvancedMatch,
		Threshold: d.cfg.BSL.MatchThreshold,
		Persisted: d.memory.BSLMatches(fp),
		FileSize:  d.media.FileSize,
	}
	res := r.RunBSLMatch(c.ID(), bsl.Report{
		Fingerprint:    fp,
		DisplayName:    name,
		Files:          req.Files,
		FolderSelected: true,
	}, matcher)

	logging.Debug().
		Str("room", r.Code).
		Str("conn", c.ID()).
		Int("files", len(req.Files)).
		Int("matched", res.TotalMatched).
		Msg("folder report matched")

	c.Send(session.EventBSLMatchResult, res)
	d.pushBSLStatus(r)
}

// pushBSLStatus refreshes the admin's consolidated status view, if an admin
// connection is bound.
func (d *Dispatcher) pushBSLStatus(r *room.Room) {
	adminConn := r.AdminConnID()
	if adminConn == "" {
		return
	}
	d.hub.SendTo(adminConn, session.EventBSLStatusUpdate, r.BSLStatusView(d.cfg.BSL.Mode))
}

func (d *Dispatcher) handleBSLCheckRequest(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventBSLCheckRequest, "no_room")
		return
	}
	for _, connID := range r.UnselectedBSLConns(d.hub.RoomClientIDs(r.Code)) {
		d.hub.SendTo(connID, session.EventBSLCheckFolder, nil)
	}
}

func (d *Dispatcher) handleBSLGetStatus(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventBSLGetStatus, "no_room")
		return
	}
	c.Send(session.EventBSLStatusUpdate, r.BSLStatusView(d.cfg.BSL.Mode))
}

func (d *Dispatcher) handleBSLManualMatch(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventBSLManualMatch, "no_room")
		return
	}

	var req bslManualMatchReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventBSLManualMatch, "invalid_payload")
		return
	}

	serverFilename, fp, res, ok := r.ManualMatch(req.ClientConnectionID, req.PlaylistIndex, req.ClientFileName)
	if !ok {
		d.reject(c, session.EventBSLManualMatch, "no_match_target")
		return
	}

	// Persist the pair so the auto-match short-circuits on the next folder
	// report from this viewer.
	if fp != "" {
		if err := d.memory.SetBSLMatch(fp, req.ClientFileName, serverFilename); err != nil {
			logging.Warn().Err(err).Msg("failed to persist manual match")
		}
	}

	d.hub.SendTo(req.ClientConnectionID, session.EventBSLMatchResult, res)
	d.pushBSLStatus(r)
	d.logRoom(r.Code, "bsl-manual-match", map[string]any{
		"playlistIndex": req.PlaylistIndex,
		"file":          serverFilename,
	})
}

func (d *Dispatcher) handleBSLSetDrift(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventBSLSetDrift, "no_room")
		return
	}

	var req bslSetDriftReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventBSLSetDrift, "invalid_payload")
		return
	}

	driftValues := r.SetDrift(req.ClientFingerprint, req.PlaylistIndex, req.DriftSeconds)
	payload := map[string]any{"driftValues": driftValues}
	for _, connID := range r.FingerprintConnIDs(req.ClientFingerprint) {
		d.hub.SendTo(connID, session.EventBSLDriftUpdate, payload)
	}
	d.pushBSLStatus(r)
}
