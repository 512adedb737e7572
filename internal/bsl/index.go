// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package bsl implements Browser Source Local playback: matching a viewer's
// locally owned files against the room playlist so the viewer can play a
// local copy while staying logically in sync.
package bsl

import (
	"strings"
	"time"
)

// ClientFile is one file reported by a viewer's folder selection.
type ClientFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"` // browser-reported MIME
}

// Report is one viewer's BSL state: the reported folder contents and the
// accepted matches, keyed by playlist index.
type Report struct {
	Fingerprint    string         `json:"fingerprint"`
	DisplayName    string         `json:"displayName"`
	Files          []ClientFile   `json:"files"`
	Matches        map[int]string `json:"matches"` // playlist index -> client file name
	FolderSelected bool           `json:"folderSelected"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Index holds the per-room BSL reports keyed by connection ID.
//
// The index has no lock of its own: all access goes through the owning
// room's WithBSL, which serializes it with playback mutations.
type Index struct {
	reports map[string]*Report
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{reports: make(map[string]*Report)}
}

// SetReport stores a viewer's folder report, replacing any previous one for
// that connection.
func (ix *Index) SetReport(connID string, rep Report) {
	rep.FolderSelected = true
	if rep.Matches == nil {
		rep.Matches = make(map[int]string)
	}
	ix.reports[connID] = &rep
}

// Report returns the report for one connection.
func (ix *Index) Report(connID string) (*Report, bool) {
	rep, ok := ix.reports[connID]
	return rep, ok
}

// Remove drops the report for a disconnected connection.
func (ix *Index) Remove(connID string) {
	delete(ix.reports, connID)
}

// Reports returns the live report map. Callers must not retain it past the
// WithBSL callback.
func (ix *Index) Reports() map[string]*Report {
	return ix.reports
}

// UnselectedConnIDs returns the connections that have never reported a
// folder. A bsl-check-request polls only these, so viewers who already
// selected a folder are not re-prompted.
func (ix *Index) UnselectedConnIDs(connIDs []string) []string {
	var out []string
	for _, id := range connIDs {
		if rep, ok := ix.reports[id]; !ok || !rep.FolderSelected {
			out = append(out, id)
		}
	}
	return out
}

// SetManualMatch forces a match for one connection and playlist index.
// Returns false when the connection has no report yet.
func (ix *Index) SetManualMatch(connID string, playlistIndex int, fileName string) bool {
	rep, ok := ix.reports[connID]
	if !ok {
		return false
	}
	rep.Matches[playlistIndex] = fileName
	rep.UpdatedAt = time.Now()
	return true
}

// Aggregation modes for per-item BSL activity.
const (
	ModeAny = "any"
	ModeAll = "all"
)

// ActiveItems computes, for each of n playlist items, whether BSL is active:
// under mode "all" every reporting viewer must have a match for the item,
// under mode "any" at least one must.
func (ix *Index) ActiveItems(n int, mode string) []bool {
	out := make([]bool, n)
	var reporting []*Report
	for _, rep := range ix.reports {
		if rep.FolderSelected {
			reporting = append(reporting, rep)
		}
	}
	if len(reporting) == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		if strings.EqualFold(mode, ModeAll) {
			active := true
			for _, rep := range reporting {
				if _, ok := rep.Matches[i]; !ok {
					active = false
					break
				}
			}
			out[i] = active
		} else {
			for _, rep := range reporting {
				if _, ok := rep.Matches[i]; ok {
					out[i] = true
					break
				}
			}
		}
	}
	return out
}
