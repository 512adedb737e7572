// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/playlist"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/validation"
)

// trackProbeTimeout bounds the ffprobe calls made while decoding a
// playlist, so a stuck probe cannot wedge the event pipeline.
const trackProbeTimeout = 15 * time.Second

// Control actions.
const (
	actionPlayPause   = "playpause"
	actionSkip        = "skip"
	actionSeek        = "seek"
	actionSelectTrack = "selectTrack"
	actionRate        = "rate"
	actionSkipIntro   = "skipIntro"
)

func (d *Dispatcher) handleControl(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventControl, "no_room")
		return
	}
	isAdmin := d.isAdmin(c)
	if !isAdmin && d.cfg.Client.ControlsDisabled {
		d.reject(c, session.EventControl, "controls_disabled")
		return
	}

	var req controlReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventControl, "invalid_payload")
		return
	}

	now := d.now()
	emit := d.emitter(r.Code)

	// The tuple form adopts the sender's state wholesale. Non-admins lose
	// it when client sync is disabled; the action form stays available.
	if req.Action == "" && req.IsPlaying != nil && req.Position != nil {
		if !isAdmin && d.cfg.Client.SyncDisabled {
			d.reject(c, session.EventControl, "sync_disabled")
			return
		}
		rate := r.SyncSnapshot(now).Rate
		if req.Rate != nil {
			rate = *req.Rate
		}
		if !r.ApplySync(*req.IsPlaying, *req.Position, rate, now, emit) {
			d.reject(c, session.EventControl, "invalid_sync")
		}
		return
	}

	switch req.Action {
	case actionPlayPause:
		r.TogglePlaying(now, emit)

	case actionSkip:
		secs := float64(d.cfg.Playback.SkipSeconds)
		if req.Seconds != nil && *req.Seconds > 0 {
			secs = *req.Seconds
		}
		if req.Direction == "backward" {
			secs = -secs
		}
		r.SkipRelative(secs, now, emit)

	case actionSeek:
		if req.Time == nil || !validation.ValidTime(*req.Time) {
			d.reject(c, session.EventControl, "invalid_seek")
			return
		}
		if !r.Seek(*req.Time, now, emit) {
			d.reject(c, session.EventControl, "invalid_seek")
		}

	case actionSelectTrack:
		if req.TrackIndex == nil {
			d.reject(c, session.EventControl, "invalid_track")
			return
		}
		if !r.SelectTrack(req.Type, *req.TrackIndex, emit) {
			d.reject(c, session.EventControl, "invalid_track")
		}

	case actionRate:
		if req.Rate == nil || !r.SetRate(*req.Rate, now, emit) {
			d.reject(c, session.EventControl, "invalid_rate")
		}

	case actionSkipIntro:
		r.SkipRelative(float64(d.cfg.Playback.SkipIntroSeconds), now, emit)

	default:
		d.reject(c, session.EventControl, "unknown_action")
	}
}

func (d *Dispatcher) handleSetPlaylist(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventSetPlaylist, "no_room")
		return
	}

	var req setPlaylistReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventSetPlaylist, "invalid_payload")
		return
	}

	// Invalid items are dropped one by one rather than rejecting the whole
	// playlist. Track probing happens here, before the room lock.
	items := make([]playlist.Item, 0, len(req.Playlist))
	for i, raw := range req.Playlist {
		it, err := playlist.DecodeItem(raw)
		if err != nil {
			logging.Warn().Err(err).Int("index", i).Msg("dropping invalid playlist item")
			continue
		}
		if m, isLocal := it.(*playlist.LocalMedia); isLocal {
			if !validation.ValidFilename(m.Filename) {
				logging.Warn().Str("filename", m.Filename).Msg("dropping playlist item with invalid filename")
				continue
			}
			d.enrichTracks(m)
		}
		items = append(items, it)
	}

	r.SetPlaylist(items, req.MainVideoIndex, req.StartTime,
		d.cfg.Playback.VideoAutoplay, d.now(), d.emitter(r.Code))
	d.logRoom(r.Code, "playlist-set", map[string]any{"items": len(items)})
}

// enrichTracks fills an item's track lists from the media adapter when the
// client did not supply them.
func (d *Dispatcher) enrichTracks(m *playlist.LocalMedia) {
	if len(m.Tracks.Audio) > 0 || len(m.Tracks.Subtitles) > 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), trackProbeTimeout)
	defer cancel()
	tracks, err := d.media.TracksFor(ctx, m.Filename)
	if err != nil {
		logging.Warn().Err(err).Str("filename", m.Filename).Msg("track probe failed")
		return
	}
	m.Tracks = tracks
}

func (d *Dispatcher) handlePlaylistJump(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventPlaylistJump, "no_room")
		return
	}
	var req playlistJumpReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventPlaylistJump, "invalid_payload")
		return
	}
	if !r.Jump(req.Index, d.now(), d.emitter(r.Code)) {
		d.reject(c, session.EventPlaylistJump, "out_of_range")
	}
}

func (d *Dispatcher) handlePlaylistReorder(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventPlaylistReorder, "no_room")
		return
	}
	var req playlistReorderReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventPlaylistReorder, "invalid_payload")
		return
	}
	if !r.Reorder(req.FromIndex, req.ToIndex, d.emitter(r.Code)) {
		d.reject(c, session.EventPlaylistReorder, "out_of_range")
	}
}

func (d *Dispatcher) handleTrackChange(c *session.Client, data json.RawMessage) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventTrackChange, "no_room")
		return
	}
	var req trackChangeReq
	if err := decode(data, &req); err != nil {
		d.reject(c, session.EventTrackChange, "invalid_payload")
		return
	}
	if !r.SelectTrack(req.Type, req.TrackIndex, d.emitter(r.Code)) {
		d.reject(c, session.EventTrackChange, "invalid_track")
	}
}

func (d *Dispatcher) handleSkipToNext(c *session.Client) {
	r, ok := d.resolveRoom(c)
	if !ok {
		d.reject(c, session.EventSkipToNextVideo, "no_room")
		return
	}
	if !r.SkipToNext(d.now(), d.emitter(r.Code)) {
		d.reject(c, session.EventSkipToNextVideo, "empty_playlist")
	}
}
