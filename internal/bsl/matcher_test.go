// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package bsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/playlist"
)

func localItems(names ...string) []playlist.Item {
	items := make([]playlist.Item, len(names))
	for i, n := range names {
		items[i] = &playlist.LocalMedia{Filename: n, Kind: playlist.KindForFilename(n)}
	}
	return items
}

func TestSimpleModeMatchesExactNameOnly(t *testing.T) {
	m := &Matcher{Advanced: false}
	items := localItems("Movie.mkv", "Episode 01.mp4")

	res := m.Match(items, []ClientFile{
		{Name: "movie.MKV", Size: 1},
		{Name: "Episode.01.mp4", Size: 1},
	})

	assert.Equal(t, map[int]string{0: "movie.MKV"}, res.Matched)
	assert.Equal(t, 1, res.TotalMatched)
	assert.Equal(t, 2, res.TotalPlaylist)
}

func TestPersistedMatchShortCircuits(t *testing.T) {
	m := &Matcher{
		Advanced:  true,
		Threshold: 4,
		Persisted: map[string]string{"my local copy.avi": "Movie.mkv"},
	}
	res := m.Match(localItems("Movie.mkv"), []ClientFile{
		{Name: "My Local Copy.AVI", Size: 123},
	})
	assert.Equal(t, map[int]string{0: "My Local Copy.AVI"}, res.Matched)
}

func TestAdvancedScoringThresholds(t *testing.T) {
	serverSize := int64(700 * 1024 * 1024)
	sizeOf := func(name string) (int64, bool) {
		if name == "Movie.mkv" {
			return serverSize, true
		}
		return 0, false
	}

	// Same extension + size within tolerance + matching MIME top level,
	// but a different name: score 3.
	file := ClientFile{
		Name: "Movie (copy).mkv",
		Size: serverSize + 1024*1024,
		Type: "video/x-matroska",
	}

	for threshold, want := range map[int]bool{1: true, 2: true, 3: true, 4: false} {
		m := &Matcher{Advanced: true, Threshold: threshold, FileSize: sizeOf}
		res := m.Match(localItems("Movie.mkv"), []ClientFile{file})
		_, matched := res.Matched[0]
		assert.Equal(t, want, matched, "threshold %d", threshold)
	}
}

func TestSizeOutsideToleranceDoesNotScore(t *testing.T) {
	sizeOf := func(string) (int64, bool) { return 100 * 1024 * 1024, true }
	m := &Matcher{Advanced: true, Threshold: 2, FileSize: sizeOf}

	// Only the extension matches: score 1 < threshold 2.
	res := m.Match(localItems("Movie.mkv"), []ClientFile{
		{Name: "Other.mkv", Size: 500 * 1024 * 1024},
	})
	assert.Empty(t, res.Matched)
}

func TestMimeTopLevelFallback(t *testing.T) {
	m := &Matcher{Advanced: true, Threshold: 2}
	// Extension matches and video/webm shares the top level with video/mp4.
	res := m.Match(localItems("Clip.mp4"), []ClientFile{
		{Name: "Other.mp4", Type: "video/webm"},
	})
	assert.Equal(t, map[int]string{0: "Other.mp4"}, res.Matched)
}

func TestExternalEmbedsNeverMatch(t *testing.T) {
	m := &Matcher{Advanced: true, Threshold: 1}
	items := []playlist.Item{
		&playlist.ExternalEmbed{Platform: playlist.PlatformYouTube, ExternalID: "abc"},
	}
	res := m.Match(items, []ClientFile{{Name: "abc.mp4"}})
	assert.Empty(t, res.Matched)
	assert.Equal(t, 1, res.TotalPlaylist)
}

func TestFirstReachingFileWinsItem(t *testing.T) {
	m := &Matcher{Advanced: false}
	res := m.Match(localItems("a.mp4"), []ClientFile{
		{Name: "A.MP4"},
		{Name: "a.mp4"},
	})
	assert.Equal(t, map[int]string{0: "A.MP4"}, res.Matched)
}

func TestIndexActiveItemsModes(t *testing.T) {
	ix := NewIndex()
	ix.SetReport("conn-1", Report{
		Fingerprint: "fp-1",
		Matches:     map[int]string{0: "a.mp4", 1: "b.mp4"},
	})
	ix.SetReport("conn-2", Report{
		Fingerprint: "fp-2",
		Matches:     map[int]string{0: "a.mp4"},
	})

	assert.Equal(t, []bool{true, true, false}, ix.ActiveItems(3, ModeAny))
	assert.Equal(t, []bool{true, false, false}, ix.ActiveItems(3, ModeAll))

	// No reporting viewers: nothing is active.
	assert.Equal(t, []bool{false, false}, NewIndex().ActiveItems(2, ModeAny))
}

func TestIndexUnselectedConnIDs(t *testing.T) {
	ix := NewIndex()
	ix.SetReport("conn-1", Report{Fingerprint: "fp-1"})

	got := ix.UnselectedConnIDs([]string{"conn-1", "conn-2", "conn-3"})
	assert.Equal(t, []string{"conn-2", "conn-3"}, got)
}

func TestIndexManualMatch(t *testing.T) {
	ix := NewIndex()
	assert.False(t, ix.SetManualMatch("conn-1", 0, "a.mp4"))

	ix.SetReport("conn-1", Report{Fingerprint: "fp-1"})
	require.True(t, ix.SetManualMatch("conn-1", 2, "a.mp4"))
	rep, ok := ix.Report("conn-1")
	require.True(t, ok)
	assert.Equal(t, "a.mp4", rep.Matches[2])
}
