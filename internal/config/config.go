// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package config loads and validates the Roomcast configuration.
//
// Configuration is layered (highest priority wins):
//
//  1. Environment variables (PORT, BSL_MODE, ...)
//  2. An optional KEY=VALUE config file (CONFIG_PATH or ./roomcast.env)
//  3. Built-in defaults
package config

import (
	"fmt"
	"strings"
)

// Join modes applied when a new viewer joins a room.
const (
	JoinModeSync  = "sync"  // send the joiner the current position
	JoinModeReset = "reset" // reset the whole room to position 0
)

// BSL aggregation modes for the per-item "BSL active" flag.
const (
	BSLModeAny = "any" // active if at least one reporting viewer matched
	BSLModeAll = "all" // active only if every reporting viewer matched
)

// Subtitle renderers selectable by the client.
const (
	SubtitleRendererWSR    = "wsr"
	SubtitleRendererJASSub = "jassub" // requires HTTPS (SharedArrayBuffer)
)

// Config is the root configuration object. A single value is constructed at
// boot and passed down; nothing reads configuration from globals.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Playback PlaybackConfig `koanf:"playback"`
	BSL      BSLConfig      `koanf:"bsl"`
	Client   ClientConfig   `koanf:"client"`
	Admin    AdminConfig    `koanf:"admin"`
	Chat     ChatConfig     `koanf:"chat"`
	Media    MediaConfig    `koanf:"media"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds listener and mode settings.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	UseHTTPS      bool   `koanf:"use_https"`
	SSLKeyFile    string `koanf:"ssl_key_file"`
	SSLCertFile   string `koanf:"ssl_cert_file"`
	ServerMode    bool   `koanf:"server_mode"`    // multi-room mode; off = single legacy room
	DataHydration bool   `koanf:"data_hydration"` // embed initial state + CSRF token in the admin page
	DataDir       string `koanf:"data_dir"`
	StaticDir     string `koanf:"static_dir"` // client bundle; empty disables page serving
}

// PlaybackConfig holds client-facing playback behavior knobs.
type PlaybackConfig struct {
	VolumeStep       int    `koanf:"volume_step"`        // percent, 1-20
	MaxVolume        int    `koanf:"max_volume"`         // percent, 100-1000
	SkipSeconds      int    `koanf:"skip_seconds"`       // 5-60
	SkipIntroSeconds int    `koanf:"skip_intro_seconds"` // >= 1
	VideoAutoplay    bool   `koanf:"video_autoplay"`
	JoinMode         string `koanf:"join_mode"`
	SubtitleRenderer string `koanf:"subtitle_renderer"`
}

// BSLConfig controls the local-file matching subsystem.
type BSLConfig struct {
	Mode           string `koanf:"mode"`
	AdvancedMatch  bool   `koanf:"advanced_match"`
	MatchThreshold int    `koanf:"match_threshold"` // 1-4
}

// ClientConfig disables client capabilities room-wide.
type ClientConfig struct {
	ControlsDisabled bool `koanf:"controls_disabled"`
	SyncDisabled     bool `koanf:"sync_disabled"`
}

// AdminConfig holds admin-authority settings.
type AdminConfig struct {
	FingerprintLock bool `koanf:"fingerprint_lock"`
}

// ChatConfig toggles the chat relay.
type ChatConfig struct {
	Enabled bool `koanf:"enabled"`
}

// MediaConfig holds media-library and tooling settings.
type MediaConfig struct {
	Dir string `koanf:"dir"`

	// FFmpegToolsPassword gates the remux/re-encode/extract job endpoints.
	// Empty disables the tools entirely.
	FFmpegToolsPassword string `koanf:"ffmpeg_tools_password"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks ranges and enumerations. Out-of-range values are an error,
// not a clamp, so a typo in a unit (seconds vs ms) fails loudly at boot.
func (c *Config) Validate() error {
	if c.Server.Port < 1024 || c.Server.Port > 49151 {
		return fmt.Errorf("server port %d out of range [1024, 49151]", c.Server.Port)
	}
	if c.Server.UseHTTPS && (c.Server.SSLKeyFile == "" || c.Server.SSLCertFile == "") {
		return fmt.Errorf("use_https requires ssl_key_file and ssl_cert_file")
	}
	if c.Playback.VolumeStep < 1 || c.Playback.VolumeStep > 20 {
		return fmt.Errorf("volume step %d out of range [1, 20]", c.Playback.VolumeStep)
	}
	if c.Playback.MaxVolume < 100 || c.Playback.MaxVolume > 1000 {
		return fmt.Errorf("max volume %d out of range [100, 1000]", c.Playback.MaxVolume)
	}
	if c.Playback.SkipSeconds < 5 || c.Playback.SkipSeconds > 60 {
		return fmt.Errorf("skip seconds %d out of range [5, 60]", c.Playback.SkipSeconds)
	}
	if c.Playback.SkipIntroSeconds < 1 {
		return fmt.Errorf("skip intro seconds must be >= 1, got %d", c.Playback.SkipIntroSeconds)
	}
	switch strings.ToLower(c.Playback.JoinMode) {
	case JoinModeSync, JoinModeReset:
	default:
		return fmt.Errorf("join mode %q not in {sync, reset}", c.Playback.JoinMode)
	}
	switch strings.ToLower(c.Playback.SubtitleRenderer) {
	case SubtitleRendererWSR, SubtitleRendererJASSub:
	default:
		return fmt.Errorf("subtitle renderer %q not in {wsr, jassub}", c.Playback.SubtitleRenderer)
	}
	switch strings.ToLower(c.BSL.Mode) {
	case BSLModeAny, BSLModeAll:
	default:
		return fmt.Errorf("bsl mode %q not in {any, all}", c.BSL.Mode)
	}
	if c.BSL.MatchThreshold < 1 || c.BSL.MatchThreshold > 4 {
		return fmt.Errorf("bsl match threshold %d out of range [1, 4]", c.BSL.MatchThreshold)
	}
	return nil
}

// EffectiveSubtitleRenderer returns the renderer the clients should use.
// JASSub depends on SharedArrayBuffer, which browsers only grant in secure
// contexts, so it is forced off when the server is plain HTTP.
func (c *Config) EffectiveSubtitleRenderer() string {
	r := strings.ToLower(c.Playback.SubtitleRenderer)
	if r == SubtitleRendererJASSub && !c.Server.UseHTTPS {
		return SubtitleRendererWSR
	}
	return r
}

// FFmpegToolsEnabled reports whether the media tool endpoints are usable.
func (c *Config) FFmpegToolsEnabled() bool {
	return c.Media.FFmpegToolsPassword != ""
}
