// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package clock

import (
	"context"
	"time"

	"github.com/roomcast/roomcast/internal/logging"
)

// DefaultTickInterval is how often playing rooms are consolidated.
const DefaultTickInterval = 5 * time.Second

// Consolidator is implemented by the room registry: consolidate every room
// that is currently playing. No broadcast is emitted by the tick itself.
type Consolidator interface {
	ConsolidateAll(now time.Time)
}

// Ticker periodically consolidates all playing rooms so the stored position
// never drifts unboundedly far from the wall clock.
type Ticker struct {
	target   Consolidator
	interval time.Duration
}

// NewTicker creates a Ticker. A non-positive interval falls back to
// DefaultTickInterval.
func NewTicker(target Consolidator, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{target: target, interval: interval}
}

// Serve implements suture.Service. It runs until the context is canceled.
func (t *Ticker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "clock-ticker").Msg("clock ticker stopped")
			return ctx.Err()
		case now := <-ticker.C:
			t.target.ConsolidateAll(now)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (t *Ticker) String() string {
	return "clock-ticker"
}
