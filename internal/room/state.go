// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package room

import (
	"time"

	"github.com/roomcast/roomcast/internal/clock"
	"github.com/roomcast/roomcast/internal/playback"
	"github.com/roomcast/roomcast/internal/playlist"
	"github.com/roomcast/roomcast/internal/session"
)

// SyncPayload is the wire form of a sync broadcast. Anchor is unix
// milliseconds so clients can extrapolate against their own wall clock.
type SyncPayload struct {
	IsPlaying     bool    `json:"isPlaying"`
	Position      float64 `json:"position"`
	Anchor        int64   `json:"anchor"`
	Rate          float64 `json:"rate"`
	AudioTrack    int     `json:"audioTrack"`
	SubtitleTrack int     `json:"subtitleTrack"`
}

// TrackChangePayload is the wire form of a track-change broadcast.
type TrackChangePayload struct {
	VideoIndex int    `json:"videoIndex"`
	Type       string `json:"type"`
	TrackIndex int    `json:"trackIndex"`
}

// syncLocked renders the current sync tuple. Callers hold r.mu.
func (r *Room) syncLocked(now time.Time) SyncPayload {
	return SyncPayload{
		IsPlaying:     r.state.IsPlaying,
		Position:      clock.Extrapolate(&r.state, now),
		Anchor:        r.state.Anchor.UnixMilli(),
		Rate:          r.state.Rate,
		AudioTrack:    r.state.AudioTrack,
		SubtitleTrack: r.state.SubtitleTrack,
	}
}

// SyncSnapshot renders the sync tuple for a request-sync reply or a
// joiner's first state push.
func (r *Room) SyncSnapshot(now time.Time) SyncPayload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncLocked(now)
}

// PlaylistSnapshot renders the playlist for a playlist-update or an
// initial-state reply.
func (r *Room) PlaylistSnapshot() playlist.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list.Snapshot()
}

// loadTracksLocked resets the live track selection from the current item's
// stored selections. External embeds have no selectable tracks.
func (r *Room) loadTracksLocked() {
	r.state.AudioTrack = 0
	r.state.SubtitleTrack = playback.SubtitleOff
	if cur, ok := r.list.Current(); ok {
		if m, ok := cur.(*playlist.LocalMedia); ok {
			r.state.AudioTrack = m.SelectedAudioTrack
			r.state.SubtitleTrack = m.SelectedSubtitleTrack
		}
	}
}

// SetPlaylist replaces the room playlist and restarts playback from
// startTime at the first item. autoplay decides whether the room starts
// playing immediately.
func (r *Room) SetPlaylist(items []playlist.Item, mainIndex int, startTime float64, autoplay bool, now time.Time, emit Emit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.list.Replace(items, mainIndex, startTime)
	if startTime < 0 {
		startTime = 0
	}
	r.state.Position = startTime
	r.state.Anchor = now
	r.state.IsPlaying = autoplay && r.list.Len() > 0
	r.state.CurrentIndex = r.list.CurrentIndex
	r.loadTracksLocked()

	emit(session.EventPlaylistUpdate, r.list.Snapshot())
	emit(session.EventSync, r.syncLocked(now))
}

// jumpLocked moves to item i, rewinds to zero and reloads track selections.
func (r *Room) jumpLocked(i int, now time.Time, emit Emit) bool {
	if !r.list.Jump(i) {
		return false
	}
	r.state.Position = 0
	r.state.Anchor = now
	r.state.CurrentIndex = i
	r.loadTracksLocked()

	emit(session.EventPlaylistPosition, map[string]int{"currentIndex": i})
	emit(session.EventSync, r.syncLocked(now))
	return true
}

// Jump moves the current item to index i. Out-of-range jumps are ignored.
func (r *Room) Jump(i int, now time.Time, emit Emit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jumpLocked(i, now, emit)
}

// SkipToNext advances to the next item, wrapping at the end of the playlist.
func (r *Room) SkipToNext(now time.Time, emit Emit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	next, ok := r.list.NextIndex()
	if !ok {
		return false
	}
	return r.jumpLocked(next, now, emit)
}

// SetPlaying consolidates elapsed time and flips the playing flag.
func (r *Room) SetPlaying(playing bool, now time.Time, emit Emit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clock.Consolidate(&r.state, now)
	r.state.IsPlaying = playing
	emit(session.EventSync, r.syncLocked(now))
}

// TogglePlaying flips the playing flag, consolidating first.
func (r *Room) TogglePlaying(now time.Time, emit Emit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clock.Consolidate(&r.state, now)
	r.state.IsPlaying = !r.state.IsPlaying
	emit(session.EventSync, r.syncLocked(now))
}

// Seek moves the position to t. Negative targets are rejected.
func (r *Room) Seek(t float64, now time.Time, emit Emit) bool {
	if t < 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Position = t
	r.state.Anchor = now
	emit(session.EventSync, r.syncLocked(now))
	return true
}

// SkipRelative consolidates and then moves the position by delta seconds,
// floored at zero.
func (r *Room) SkipRelative(delta float64, now time.Time, emit Emit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clock.Consolidate(&r.state, now)
	r.state.Position += delta
	if r.state.Position < 0 {
		r.state.Position = 0
	}
	emit(session.EventSync, r.syncLocked(now))
}

// SetRate consolidates at the old rate and then switches to r2. Off-grid
// rates are rejected.
func (r *Room) SetRate(rate float64, now time.Time, emit Emit) bool {
	if !playback.ValidRate(rate) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	clock.Consolidate(&r.state, now)
	r.state.Rate = rate
	emit(session.EventSync, r.syncLocked(now))
	return true
}

// ApplySync adopts a client-supplied sync tuple wholesale. Used by the
// direct-tuple form of the control event.
func (r *Room) ApplySync(isPlaying bool, position, rate float64, now time.Time, emit Emit) bool {
	if position < 0 || !playback.ValidRate(rate) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.IsPlaying = isPlaying
	r.state.Position = position
	r.state.Rate = rate
	r.state.Anchor = now
	emit(session.EventSync, r.syncLocked(now))
	return true
}

// Track selection kinds.
const (
	TrackKindAudio    = "audio"
	TrackKindSubtitle = "subtitle"
)

// SelectTrack updates the live track selection and stores it on the current
// item so cycling through the playlist restores it. Audio indices must be
// >= 0; subtitle index -1 means "off".
func (r *Room) SelectTrack(kind string, idx int, emit Emit) bool {
	switch kind {
	case TrackKindAudio:
		if idx < 0 {
			return false
		}
	case TrackKindSubtitle:
		if idx < playback.SubtitleOff {
			return false
		}
	default:
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if kind == TrackKindAudio {
		r.state.AudioTrack = idx
	} else {
		r.state.SubtitleTrack = idx
	}
	if cur, ok := r.list.Current(); ok {
		if m, ok := cur.(*playlist.LocalMedia); ok {
			if kind == TrackKindAudio {
				m.SelectedAudioTrack = idx
			} else {
				m.SelectedSubtitleTrack = idx
			}
		}
	}
	emit(session.EventTrackChange, TrackChangePayload{
		VideoIndex: r.list.CurrentIndex,
		Type:       kind,
		TrackIndex: idx,
	})
	return true
}

// Reorder swaps two playlist items and rebroadcasts the playlist.
func (r *Room) Reorder(a, b int, emit Emit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.list.Reorder(a, b) {
		return false
	}
	r.state.CurrentIndex = r.list.CurrentIndex
	emit(session.EventPlaylistUpdate, r.list.Snapshot())
	return true
}

// ResetToZero rewinds the room to position zero. Used by the reset join
// mode when a new viewer arrives.
func (r *Room) ResetToZero(now time.Time, emit Emit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Position = 0
	r.state.Anchor = now
	emit(session.EventSync, r.syncLocked(now))
}

// UpdateItemTracks replaces the stored track lists of every local item with
// the given filename. Media jobs call this on completion; the playlist
// rebroadcast lets clients pick up the new sidecar tracks.
func (r *Room) UpdateItemTracks(filename string, tracks playlist.TrackSet, emit Emit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := false
	for _, it := range r.list.Items {
		if m, ok := it.(*playlist.LocalMedia); ok && m.Filename == filename {
			m.Tracks = tracks
			changed = true
		}
	}
	if changed {
		emit(session.EventPlaylistUpdate, r.list.Snapshot())
	}
	return changed
}

// ConsolidateTick folds elapsed wall time into the stored position. The
// clock ticker calls this for every room; paused rooms are left alone.
func (r *Room) ConsolidateTick(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsPlaying {
		clock.Consolidate(&r.state, now)
	}
}
