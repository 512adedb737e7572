// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package media adapts the on-disk library for the core: listing files,
// probing container tracks, generating thumbnails and running ffmpeg jobs.
package media

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"

	"github.com/roomcast/roomcast/internal/playlist"
)

// File is one library entry.
type File struct {
	Filename string             `json:"filename"`
	Kind     playlist.MediaKind `json:"kind"`
}

// Adapter is the metadata surface the core consumes.
type Adapter interface {
	// ListMedia enumerates the library. Results may be cached for ~20 s.
	ListMedia(ctx context.Context) ([]File, error)

	// TracksFor returns the selectable streams of one file, container
	// streams merged with manifest sidecars.
	TracksFor(ctx context.Context, filename string) (playlist.TrackSet, error)

	// FileSize stats one library file, for BSL size matching.
	FileSize(filename string) (int64, bool)
}

// CheckToolsPassword compares the presented ffmpeg-tools password with the
// configured one by SHA-256 digest. An empty configured password disables
// the tools entirely.
func CheckToolsPassword(configured, presented string) bool {
	if configured == "" {
		return false
	}
	want := sha256.Sum256([]byte(configured))
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
