// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package playlist

import (
	"github.com/goccy/go-json"
)

// Playlist is the ordered item sequence of a room, plus the current index
// and the main-item preload hint.
//
// Invariant: -1 <= CurrentIndex < len(Items); MainIndex has the same domain.
// The zero value is a valid empty ("idle") playlist with both indices -1.
type Playlist struct {
	Items         []Item
	CurrentIndex  int
	MainIndex     int
	MainStartTime float64 // seconds into the main item
}

// New returns an empty playlist.
func New() Playlist {
	return Playlist{CurrentIndex: -1, MainIndex: -1}
}

// Len returns the number of items.
func (p *Playlist) Len() int { return len(p.Items) }

// InRange reports whether i is a valid item index.
func (p *Playlist) InRange(i int) bool {
	return i >= 0 && i < len(p.Items)
}

// Current returns the current item, or false when idle.
func (p *Playlist) Current() (Item, bool) {
	if !p.InRange(p.CurrentIndex) {
		return nil, false
	}
	return p.Items[p.CurrentIndex], true
}

// Replace swaps in a new item list. The current index moves to the first
// item (or -1 for an empty list, which means "idle"). MainIndex is kept only
// if still in range.
func (p *Playlist) Replace(items []Item, mainIndex int, startTime float64) {
	p.Items = items
	if len(items) == 0 {
		p.CurrentIndex = -1
	} else {
		p.CurrentIndex = 0
	}
	if mainIndex >= 0 && mainIndex < len(items) {
		p.MainIndex = mainIndex
	} else {
		p.MainIndex = -1
	}
	if startTime < 0 {
		startTime = 0
	}
	p.MainStartTime = startTime
}

// Jump moves the current index to i. Out-of-range jumps are ignored.
func (p *Playlist) Jump(i int) bool {
	if !p.InRange(i) {
		return false
	}
	p.CurrentIndex = i
	return true
}

// NextIndex returns the index after the current one, wrapping at the end.
// Returns false on an empty playlist.
func (p *Playlist) NextIndex() (int, bool) {
	if len(p.Items) == 0 {
		return 0, false
	}
	if p.CurrentIndex < 0 {
		return 0, true
	}
	return (p.CurrentIndex + 1) % len(p.Items), true
}

// Reorder swaps the items at a and b and fixes up CurrentIndex and MainIndex
// if either pointed at a swapped slot.
func (p *Playlist) Reorder(a, b int) bool {
	if !p.InRange(a) || !p.InRange(b) || a == b {
		return false
	}
	p.Items[a], p.Items[b] = p.Items[b], p.Items[a]
	switch p.CurrentIndex {
	case a:
		p.CurrentIndex = b
	case b:
		p.CurrentIndex = a
	}
	switch p.MainIndex {
	case a:
		p.MainIndex = b
	case b:
		p.MainIndex = a
	}
	return true
}

// Snapshot is the wire form of a playlist-update broadcast.
type Snapshot struct {
	Items             []wireItem `json:"playlist"`
	CurrentIndex      int        `json:"currentIndex"`
	MainItemIndex     int        `json:"mainItemIndex"`
	MainItemStartTime float64    `json:"mainItemStartTime"`
}

// Snapshot renders the playlist for broadcast.
func (p *Playlist) Snapshot() Snapshot {
	items := make([]wireItem, len(p.Items))
	for i, it := range p.Items {
		items[i] = EncodeItem(it)
	}
	return Snapshot{
		Items:             items,
		CurrentIndex:      p.CurrentIndex,
		MainItemIndex:     p.MainIndex,
		MainItemStartTime: p.MainStartTime,
	}
}

// MarshalJSON renders the snapshot form.
func (p Playlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Snapshot())
}
