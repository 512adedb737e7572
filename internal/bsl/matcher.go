// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package bsl

import (
	"path/filepath"
	"strings"

	"github.com/roomcast/roomcast/internal/playlist"
)

// SizeTolerance is how far a client file size may deviate from the server
// copy and still count as a size match (1.5 MiB, container overhead).
const SizeTolerance = 3 * 1024 * 1024 / 2

// mimeByExt covers the extensions whose browser MIME is predictable enough
// to score on. Everything else skips the MIME criterion.
var mimeByExt = map[string]string{
	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// SizeFunc stats a server media file, returning its size and whether it
// exists.
type SizeFunc func(filename string) (int64, bool)

// Matcher runs the auto-match algorithm for one viewer's folder report.
type Matcher struct {
	// Advanced enables criterion scoring; when false only exact
	// case-insensitive filename equality matches.
	Advanced bool

	// Threshold is the minimum criterion score (1..4) for an advanced match.
	Threshold int

	// Persisted maps lowercased client file names to server filenames,
	// loaded from the memory file for this viewer's fingerprint. A persisted
	// pair short-circuits scoring.
	Persisted map[string]string

	// FileSize stats server files for the size criterion. May be nil, which
	// skips the criterion.
	FileSize SizeFunc
}

// Result is the wire form of a bsl-match-result event.
type Result struct {
	Matched       map[int]string `json:"matchedVideos"`
	TotalMatched  int            `json:"totalMatched"`
	TotalPlaylist int            `json:"totalPlaylist"`
}

// Match scores every client file against every local playlist item and
// returns the accepted matches keyed by playlist index. The first file that
// reaches the threshold wins an item; external embeds never match.
func (m *Matcher) Match(items []playlist.Item, files []ClientFile) Result {
	res := Result{
		Matched:       make(map[int]string),
		TotalPlaylist: len(items),
	}
	for i, it := range items {
		media, ok := it.(*playlist.LocalMedia)
		if !ok {
			continue
		}
		for _, f := range files {
			if m.matches(media.Filename, f) {
				res.Matched[i] = f.Name
				break
			}
		}
	}
	res.TotalMatched = len(res.Matched)
	return res
}

// matches decides one client file against one server filename.
func (m *Matcher) matches(serverName string, f ClientFile) bool {
	if m.Persisted != nil {
		if saved, ok := m.Persisted[strings.ToLower(f.Name)]; ok && saved == serverName {
			return true
		}
	}

	if !m.Advanced {
		return strings.EqualFold(serverName, f.Name)
	}

	score := 0
	if strings.EqualFold(serverName, f.Name) {
		score++
	}
	if strings.EqualFold(filepath.Ext(serverName), filepath.Ext(f.Name)) {
		score++
	}
	if m.FileSize != nil && f.Size > 0 {
		if size, ok := m.FileSize(serverName); ok {
			delta := size - f.Size
			if delta < 0 {
				delta = -delta
			}
			if delta <= SizeTolerance {
				score++
			}
		}
	}
	if f.Type != "" {
		if want, ok := mimeByExt[strings.ToLower(filepath.Ext(serverName))]; ok {
			if strings.EqualFold(f.Type, want) || topLevel(f.Type) == topLevel(want) {
				score++
			}
		}
	}

	threshold := m.Threshold
	if threshold < 1 {
		threshold = 1
	}
	return score >= threshold
}

// topLevel returns the part of a MIME type before the slash.
func topLevel(mime string) string {
	if i := strings.IndexByte(mime, '/'); i >= 0 {
		return strings.ToLower(mime[:i])
	}
	return strings.ToLower(mime)
}
