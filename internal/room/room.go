// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package room holds the per-room authoritative state: viewers, playback,
// playlist, BSL index and drift table, all guarded by one mutex per room
// (single writer). Broadcasts triggered by a mutation are emitted while the
// lock is held so viewers never observe an intermediate state and all
// viewers observe broadcasts in the same order.
package room

import (
	"sync"
	"time"

	"github.com/roomcast/roomcast/internal/bsl"
	"github.com/roomcast/roomcast/internal/playback"
	"github.com/roomcast/roomcast/internal/playlist"
)

// Drift bounds in seconds, applied per viewer per item.
const (
	MinDriftSeconds = -60
	MaxDriftSeconds = 60
)

// Emit delivers one event to the room's broadcast group. Mutators call it
// under the room lock.
type Emit func(event string, data any)

// ViewerInfo describes one connected viewer. The room owns the entry; the
// connection merely references it by connection ID.
type ViewerInfo struct {
	Fingerprint string    `json:"fingerprint"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Room is one watch-party session.
type Room struct {
	Code      string
	Name      string
	Private   bool
	CreatedAt time.Time

	mu sync.Mutex

	adminFingerprint string
	adminConnID      string

	viewers map[string]ViewerInfo // connection ID -> viewer

	state playback.State
	list  playlist.Playlist

	bslIndex *bsl.Index
	drift    map[string]map[int]int // fingerprint -> item index -> seconds
}

// New creates an empty room.
func New(code, name string, private bool, adminFingerprint string, now time.Time) *Room {
	return &Room{
		Code:             code,
		Name:             name,
		Private:          private,
		CreatedAt:        now,
		adminFingerprint: adminFingerprint,
		viewers:          make(map[string]ViewerInfo),
		state:            playback.NewState(now),
		list:             playlist.New(),
		bslIndex:         bsl.NewIndex(),
		drift:            make(map[string]map[int]int),
	}
}

// AdminFingerprint returns the fingerprint the room was created with.
// It is immutable after creation.
func (r *Room) AdminFingerprint() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminFingerprint
}

// setAdminFingerprint repopulates the in-memory fingerprint from a persisted
// record. Only the registry calls this, and only when the field is empty
// (authority restored from disk after a restart).
func (r *Room) setAdminFingerprint(fp string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adminFingerprint == "" {
		r.adminFingerprint = fp
	}
}

// AdminConnID returns the connection currently holding admin authority,
// or "" when no admin is connected.
func (r *Room) AdminConnID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.adminConnID
}

// BindAdminConn records connID as the room's single admin connection.
func (r *Room) BindAdminConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adminConnID = connID
}

// ReleaseAdminConn clears the admin binding if held by connID.
func (r *Room) ReleaseAdminConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.adminConnID == connID {
		r.adminConnID = ""
	}
}

// AddViewer registers a viewer under its connection ID.
func (r *Room) AddViewer(connID string, v ViewerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.viewers[connID] = v
}

// RemoveViewer drops the viewer entry for connID and releases admin
// authority if that connection held it.
func (r *Room) RemoveViewer(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.viewers, connID)
	if r.adminConnID == connID {
		r.adminConnID = ""
	}
}

// ViewerCount returns the number of registered viewers.
func (r *Room) ViewerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.viewers)
}

// Viewers returns a snapshot of the viewer map keyed by connection ID.
func (r *Room) Viewers() map[string]ViewerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ViewerInfo, len(r.viewers))
	for id, v := range r.viewers {
		out[id] = v
	}
	return out
}

// Viewer returns the viewer bound to connID.
func (r *Room) Viewer(connID string) (ViewerInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.viewers[connID]
	return v, ok
}

// FingerprintConnIDs returns the connection IDs of all viewers presenting
// the given fingerprint (one device may hold several tabs).
func (r *Room) FingerprintConnIDs(fp string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, v := range r.viewers {
		if v.Fingerprint == fp {
			ids = append(ids, id)
		}
	}
	return ids
}

// clampDrift bounds a drift offset to [MinDriftSeconds, MaxDriftSeconds].
func clampDrift(secs int) int {
	if secs < MinDriftSeconds {
		return MinDriftSeconds
	}
	if secs > MaxDriftSeconds {
		return MaxDriftSeconds
	}
	return secs
}

// SetDrift stores a clamped per-viewer per-item drift offset and returns the
// viewer's full drift map for the follow-up bsl-drift-update push. The global
// playback state is never touched.
func (r *Room) SetDrift(fingerprint string, itemIndex, secs int) map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.drift[fingerprint]
	if m == nil {
		m = make(map[int]int)
		r.drift[fingerprint] = m
	}
	m[itemIndex] = clampDrift(secs)

	out := make(map[int]int, len(m))
	for i, d := range m {
		out[i] = d
	}
	return out
}

// DriftFor returns a copy of the drift map for one fingerprint.
func (r *Room) DriftFor(fingerprint string) map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]int, len(r.drift[fingerprint]))
	for i, d := range r.drift[fingerprint] {
		out[i] = d
	}
	return out
}

// DriftTable returns a copy of the whole drift table, for the admin
// bsl-status-update view.
func (r *Room) DriftTable() map[string]map[int]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]map[int]int, len(r.drift))
	for fp, m := range r.drift {
		c := make(map[int]int, len(m))
		for i, d := range m {
			c[i] = d
		}
		out[fp] = c
	}
	return out
}
