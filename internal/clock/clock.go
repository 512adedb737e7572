// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package clock converts an anchored playback tuple into "position now" and
// back. These two primitives are the only way playback time is ever read or
// folded; every state machine mutation goes through them.
package clock

import (
	"time"

	"github.com/roomcast/roomcast/internal/playback"
)

// Consolidate folds the wall time elapsed since the anchor into Position and
// re-anchors the state at now. While paused, only the anchor moves.
//
// The elapsed term is clamped at zero so a backward wall-clock jump never
// rewinds the stored position.
func Consolidate(s *playback.State, now time.Time) {
	if s.IsPlaying {
		elapsed := now.Sub(s.Anchor).Seconds()
		if elapsed > 0 {
			s.Position += s.Rate * elapsed
		}
	}
	s.Anchor = now
}

// Extrapolate returns the logical position at now without mutating the state.
func Extrapolate(s *playback.State, now time.Time) float64 {
	if !s.IsPlaying {
		return s.Position
	}
	elapsed := now.Sub(s.Anchor).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	return s.Position + s.Rate*elapsed
}
