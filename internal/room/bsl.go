// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package room

import (
	"time"

	"github.com/roomcast/roomcast/internal/bsl"
	"github.com/roomcast/roomcast/internal/playlist"
)

// BSLClientStatus is one viewer's entry in the admin status view.
type BSLClientStatus struct {
	ConnectionID   string           `json:"connectionId"`
	Fingerprint    string           `json:"fingerprint"`
	DisplayName    string           `json:"displayName"`
	Files          []bsl.ClientFile `json:"files"`
	Matches        map[int]string   `json:"matches"`
	Drift          map[int]int      `json:"drift"`
	FolderSelected bool             `json:"folderSelected"`
}

// BSLStatus is the wire form of a bsl-status-update event.
type BSLStatus struct {
	Clients     []BSLClientStatus `json:"clients"`
	ActiveItems []bool            `json:"activeItems"`
	Mode        string            `json:"mode"`
}

// RunBSLMatch runs the auto-match for one viewer's folder report against
// the room playlist and stores the report with its accepted matches. The
// whole operation holds the room lock so it serializes with playlist
// mutations.
func (r *Room) RunBSLMatch(connID string, rep bsl.Report, m *bsl.Matcher) bsl.Result {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := m.Match(r.list.Items, rep.Files)
	rep.Matches = res.Matched
	rep.UpdatedAt = time.Now()
	r.bslIndex.SetReport(connID, rep)
	return res
}

// ManualMatch forces a mapping for one viewer and playlist index. It
// returns the matched server filename, the viewer's fingerprint and the
// refreshed per-viewer result.
func (r *Room) ManualMatch(connID string, playlistIndex int, clientFileName string) (serverFilename, fingerprint string, res bsl.Result, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.list.InRange(playlistIndex) {
		return "", "", bsl.Result{}, false
	}
	media, isLocal := r.list.Items[playlistIndex].(*playlist.LocalMedia)
	if !isLocal {
		return "", "", bsl.Result{}, false
	}
	if !r.bslIndex.SetManualMatch(connID, playlistIndex, clientFileName) {
		return "", "", bsl.Result{}, false
	}

	rep, _ := r.bslIndex.Report(connID)
	res = bsl.Result{
		Matched:       rep.Matches,
		TotalMatched:  len(rep.Matches),
		TotalPlaylist: r.list.Len(),
	}
	return media.Filename, rep.Fingerprint, res, true
}

// BSLStatusView renders the consolidated admin status under one lock
// acquisition.
func (r *Room) BSLStatusView(mode string) BSLStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := BSLStatus{
		ActiveItems: r.bslIndex.ActiveItems(r.list.Len(), mode),
		Mode:        mode,
	}
	for connID, rep := range r.bslIndex.Reports() {
		entry := BSLClientStatus{
			ConnectionID:   connID,
			Fingerprint:    rep.Fingerprint,
			DisplayName:    rep.DisplayName,
			Files:          rep.Files,
			Matches:        rep.Matches,
			FolderSelected: rep.FolderSelected,
			Drift:          make(map[int]int, len(r.drift[rep.Fingerprint])),
		}
		for i, d := range r.drift[rep.Fingerprint] {
			entry.Drift[i] = d
		}
		status.Clients = append(status.Clients, entry)
	}
	return status
}

// UnselectedBSLConns filters the given connections down to those that have
// never reported a folder, for the bsl-check-request poll.
func (r *Room) UnselectedBSLConns(connIDs []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bslIndex.UnselectedConnIDs(connIDs)
}

// DropBSLReport removes a disconnected viewer's folder report.
func (r *Room) DropBSLReport(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bslIndex.Remove(connID)
}

// ItemFilename returns the filename of the local item at index i.
func (r *Room) ItemFilename(i int) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.list.InRange(i) {
		return "", false
	}
	media, ok := r.list.Items[i].(*playlist.LocalMedia)
	if !ok {
		return "", false
	}
	return media.Filename, true
}

// UpdateViewerNames rewrites the display name of every viewer presenting
// the fingerprint and returns their connection IDs.
func (r *Room) UpdateViewerNames(fingerprint, displayName string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, v := range r.viewers {
		if v.Fingerprint == fingerprint {
			v.DisplayName = displayName
			r.viewers[id] = v
			ids = append(ids, id)
		}
	}
	return ids
}
