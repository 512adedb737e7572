// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package playlist

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, s string) (Item, error) {
	t.Helper()
	return DecodeItem(json.RawMessage(s))
}

func TestDecodeLocalItemDerivesKind(t *testing.T) {
	it, err := decodeRaw(t, `{"type":"local","filename":"song.flac"}`)
	require.NoError(t, err)

	m, ok := it.(*LocalMedia)
	require.True(t, ok)
	assert.Equal(t, "song.flac", m.Filename)
	assert.Equal(t, KindAudio, m.Kind)
	assert.Equal(t, -1, m.SelectedSubtitleTrack)
}

func TestDecodeLegacyExternalWithoutType(t *testing.T) {
	it, err := decodeRaw(t, `{"platform":"youtube","externalId":"dQw4w9WgXcQ"}`)
	require.NoError(t, err)

	e, ok := it.(*ExternalEmbed)
	require.True(t, ok)
	assert.Equal(t, PlatformYouTube, e.Platform)
	assert.Equal(t, SyncFull, e.SyncLevel)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	it, err := decodeRaw(t, `{"type":"local","filename":"a.mp4","isYouTube":false,"legacyFlag":7}`)
	require.NoError(t, err)
	assert.Equal(t, "a.mp4", it.Label())
}

func TestDecodeRejectsInvalidItems(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"local without filename", `{"type":"local"}`},
		{"unknown platform", `{"type":"external","platform":"myspace","externalId":"x"}`},
		{"embed without id or url", `{"type":"external","platform":"vimeo"}`},
		{"unknown sync level", `{"type":"external","platform":"vimeo","externalId":"1","syncLevel":"psychic"}`},
		{"not an object", `42`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := decodeRaw(t, tc.raw)
			assert.Error(t, err)
		})
	}
}

func TestEncodeDecodeLocalRoundTrip(t *testing.T) {
	src := &LocalMedia{
		Filename:              "Movie.mkv",
		Kind:                  KindVideo,
		Tracks:                TrackSet{Audio: []Track{{Index: 0, Codec: "aac", Default: true}}},
		SelectedAudioTrack:    0,
		SelectedSubtitleTrack: SidecarIndexBase,
	}

	raw, err := json.Marshal(EncodeItem(src))
	require.NoError(t, err)
	back, err := DecodeItem(raw)
	require.NoError(t, err)

	m, ok := back.(*LocalMedia)
	require.True(t, ok)
	assert.Equal(t, src.Filename, m.Filename)
	assert.Equal(t, SidecarIndexBase, m.SelectedSubtitleTrack)
	require.Len(t, m.Tracks.Audio, 1)
	assert.Equal(t, "aac", m.Tracks.Audio[0].Codec)
}
