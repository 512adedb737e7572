// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package playback defines the authoritative per-room playback state and the
// grid of legal playback rates.
//
// State is a plain value; the clock package owns the time arithmetic
// (consolidate/extrapolate) and the room package owns the locking.
package playback

import (
	"math"
	"time"
)

// Playback rate bounds. Rates move on a 0.25 grid.
const (
	MinRate  = 0.25
	MaxRate  = 3.0
	RateStep = 0.25
)

// SubtitleOff is the subtitle track selection meaning "no subtitles".
const SubtitleOff = -1

// State is the authoritative playback state of a room.
//
// Position is only meaningful together with Anchor: while playing, the
// logical position advances from Position at Rate starting at Anchor.
// All mutations that change IsPlaying or Rate must consolidate first
// (fold elapsed wall time into Position) so the tuple stays coherent.
type State struct {
	IsPlaying     bool      `json:"isPlaying"`
	Position      float64   `json:"position"` // seconds
	Rate          float64   `json:"rate"`
	Anchor        time.Time `json:"-"` // wall-clock instant Position was reconciled
	AudioTrack    int       `json:"audioTrack"`
	SubtitleTrack int       `json:"subtitleTrack"`
	CurrentIndex  int       `json:"currentIndex"`
}

// NewState returns an idle state: paused at 0, rate 1, no item selected.
func NewState(now time.Time) State {
	return State{
		Rate:          1.0,
		Anchor:        now,
		SubtitleTrack: SubtitleOff,
		CurrentIndex:  -1,
	}
}

// ValidRate reports whether r sits on the legal 0.25-step grid in
// [MinRate, MaxRate]. Floating point drift within 1e-9 is tolerated.
func ValidRate(r float64) bool {
	if r < MinRate-1e-9 || r > MaxRate+1e-9 {
		return false
	}
	steps := r / RateStep
	return math.Abs(steps-math.Round(steps)) < 1e-9
}
