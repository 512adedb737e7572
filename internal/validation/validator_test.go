// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package validation

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidFilename(t *testing.T) {
	valid := []string{
		"movie.mkv",
		"Episode 01 - Pilot.mp4",
		"Show (2019) [1080p].mkv",
		"music_track-03.flac",
	}
	for _, name := range valid {
		assert.True(t, ValidFilename(name), name)
	}

	invalid := []string{
		"",
		"../etc/passwd",
		"dir/movie.mkv",
		`dir\movie.mkv`,
		"movie.mkv; rm -rf",
		"a&b.mkv",
		"a|b.mkv",
		"a$b.mkv",
		"a`b.mkv",
		"a<b.mkv",
		"a>b.mkv",
		"line\nbreak.mkv",
		strings.Repeat("a", 256),
	}
	for _, name := range invalid {
		assert.False(t, ValidFilename(name), "%q should be rejected", name)
	}
}

func TestValidTime(t *testing.T) {
	assert.True(t, ValidTime(0))
	assert.True(t, ValidTime(123.45))
	assert.False(t, ValidTime(-1))
	assert.False(t, ValidTime(math.NaN()))
	assert.False(t, ValidTime(math.Inf(1)))
}

func TestStructTags(t *testing.T) {
	type req struct {
		Filename string `validate:"required,mediafilename"`
		RoomCode string `validate:"omitempty,roomcode"`
	}

	assert.NoError(t, Struct(&req{Filename: "movie.mkv", RoomCode: "ABC123"}))
	assert.NoError(t, Struct(&req{Filename: "movie.mkv"}))
	assert.Error(t, Struct(&req{Filename: "../movie.mkv"}))
	assert.Error(t, Struct(&req{Filename: "movie.mkv", RoomCode: "has space"}))
	assert.Error(t, Struct(&req{Filename: ""}))
}
