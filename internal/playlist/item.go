// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package playlist models the shared playlist: local-media items, external
// embeds, per-item track lists and track selections.
//
// Items are a closed tagged union (LocalMedia / ExternalEmbed) with an
// explicit wire discriminator. Unknown wire fields are ignored, never stored.
package playlist

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
)

// MediaKind classifies a local media file.
type MediaKind string

// Local media kinds.
const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
	KindImage MediaKind = "image"
)

var kindByExt = map[string]MediaKind{
	".mp4": KindVideo, ".mkv": KindVideo, ".webm": KindVideo, ".avi": KindVideo,
	".mov": KindVideo, ".m4v": KindVideo, ".ts": KindVideo,
	".mp3": KindAudio, ".flac": KindAudio, ".wav": KindAudio, ".ogg": KindAudio,
	".m4a": KindAudio, ".opus": KindAudio, ".aac": KindAudio,
	".jpg": KindImage, ".jpeg": KindImage, ".png": KindImage, ".gif": KindImage,
	".webp": KindImage,
}

// KindForFilename derives the media kind from the file extension.
// Unknown extensions default to video.
func KindForFilename(name string) MediaKind {
	if kind, ok := kindByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return kind
	}
	return KindVideo
}

// PlayableExt reports whether the file extension is a recognized media
// type.
func PlayableExt(name string) bool {
	_, ok := kindByExt[strings.ToLower(filepath.Ext(name))]
	return ok
}

// SidecarIndexBase is the first track index reserved for sidecar (extracted)
// tracks, distinguishing them from container-internal streams.
const SidecarIndexBase = 1000

// Track describes one audio or subtitle stream of an item.
type Track struct {
	Index    int    `json:"index"`
	Codec    string `json:"codec,omitempty"`
	Language string `json:"language,omitempty"`
	Title    string `json:"title,omitempty"`
	Default  bool   `json:"default"`
	External bool   `json:"isExternal"`
	URL      string `json:"url,omitempty"`
}

// TrackSet groups an item's selectable streams.
type TrackSet struct {
	Audio     []Track `json:"audio"`
	Subtitles []Track `json:"subtitles"`
}

// SyncLevel bounds which controls are meaningful for an external embed.
type SyncLevel string

// Sync levels, from most to least controllable.
const (
	SyncFull     SyncLevel = "full"     // play/pause/seek/rate
	SyncLimited  SyncLevel = "limited"  // play/pause only
	SyncAutoplay SyncLevel = "autoplay" // no per-frame control
)

// Platform identifies the hosting service of an external embed.
type Platform string

// Supported embed platforms.
const (
	PlatformYouTube     Platform = "youtube"
	PlatformVimeo       Platform = "vimeo"
	PlatformDailymotion Platform = "dailymotion"
	PlatformTwitch      Platform = "twitch"
	PlatformSoundCloud  Platform = "soundcloud"
	PlatformStreamable  Platform = "streamable"
	PlatformGDrive      Platform = "gdrive"
	PlatformKick        Platform = "kick"
	PlatformRumble      Platform = "rumble"
	PlatformDirectURL   Platform = "directUrl"
)

var knownPlatforms = map[Platform]bool{
	PlatformYouTube: true, PlatformVimeo: true, PlatformDailymotion: true,
	PlatformTwitch: true, PlatformSoundCloud: true, PlatformStreamable: true,
	PlatformGDrive: true, PlatformKick: true, PlatformRumble: true,
	PlatformDirectURL: true,
}

// KnownPlatform reports whether p is a supported embed platform.
func KnownPlatform(p Platform) bool {
	return knownPlatforms[p]
}

// Item is a playlist entry: either a LocalMedia or an ExternalEmbed.
type Item interface {
	// Label returns the display name of the item (filename or title).
	Label() string

	item()
}

// LocalMedia is a file served from the media library. Each viewer may also
// substitute a locally owned copy via the BSL subsystem.
type LocalMedia struct {
	Filename string
	Kind     MediaKind
	Tracks   TrackSet

	// Selections live on the item so cycling through the playlist restores
	// the viewers' choices.
	SelectedAudioTrack    int
	SelectedSubtitleTrack int
}

// Label implements Item.
func (m *LocalMedia) Label() string { return m.Filename }

func (m *LocalMedia) item() {}

// ExternalEmbed is a third-party hosted item.
type ExternalEmbed struct {
	Platform    Platform
	ExternalID  string
	ExternalURL string
	Title       string
	Thumbnail   string
	SyncLevel   SyncLevel
}

// Label implements Item.
func (e *ExternalEmbed) Label() string {
	if e.Title != "" {
		return e.Title
	}
	return e.ExternalURL
}

func (e *ExternalEmbed) item() {}

// Wire discriminator values.
const (
	wireTypeLocal    = "local"
	wireTypeExternal = "external"
)

// wireItem is the JSON shape of an item in both directions.
type wireItem struct {
	Type string `json:"type"`

	// LocalMedia fields.
	Filename              string    `json:"filename,omitempty"`
	MediaKind             MediaKind `json:"mediaKind,omitempty"`
	Tracks                *TrackSet `json:"tracks,omitempty"`
	SelectedAudioTrack    *int      `json:"selectedAudioTrack,omitempty"`
	SelectedSubtitleTrack *int      `json:"selectedSubtitleTrack,omitempty"`

	// ExternalEmbed fields.
	Platform    Platform  `json:"platform,omitempty"`
	ExternalID  string    `json:"externalId,omitempty"`
	ExternalURL string    `json:"externalUrl,omitempty"`
	Title       string    `json:"title,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	SyncLevel   SyncLevel `json:"syncLevel,omitempty"`
}

// DecodeItem parses one wire item. The discriminator is the "type" field;
// for legacy payloads without it, presence of "platform" selects the
// external variant. Invalid shapes return an error so the caller can drop
// the single item without rejecting the whole playlist.
func DecodeItem(raw json.RawMessage) (Item, error) {
	var w wireItem
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode playlist item: %w", err)
	}

	external := w.Type == wireTypeExternal || (w.Type == "" && w.Platform != "")
	if external {
		if !KnownPlatform(w.Platform) {
			return nil, fmt.Errorf("unknown embed platform %q", w.Platform)
		}
		if w.ExternalID == "" && w.ExternalURL == "" {
			return nil, fmt.Errorf("embed item missing externalId and externalUrl")
		}
		level := w.SyncLevel
		switch level {
		case SyncFull, SyncLimited, SyncAutoplay:
		case "":
			level = SyncFull
		default:
			return nil, fmt.Errorf("unknown sync level %q", w.SyncLevel)
		}
		return &ExternalEmbed{
			Platform:    w.Platform,
			ExternalID:  w.ExternalID,
			ExternalURL: w.ExternalURL,
			Title:       w.Title,
			Thumbnail:   w.Thumbnail,
			SyncLevel:   level,
		}, nil
	}

	if w.Filename == "" {
		return nil, fmt.Errorf("local item missing filename")
	}
	m := &LocalMedia{
		Filename:              w.Filename,
		Kind:                  w.MediaKind,
		SelectedSubtitleTrack: -1,
	}
	if m.Kind == "" {
		m.Kind = KindForFilename(w.Filename)
	}
	if w.Tracks != nil {
		m.Tracks = *w.Tracks
	}
	if w.SelectedAudioTrack != nil {
		m.SelectedAudioTrack = *w.SelectedAudioTrack
	}
	if w.SelectedSubtitleTrack != nil {
		m.SelectedSubtitleTrack = *w.SelectedSubtitleTrack
	}
	return m, nil
}

// EncodeItem converts an item to its wire shape.
func EncodeItem(it Item) wireItem {
	switch v := it.(type) {
	case *LocalMedia:
		audio := v.SelectedAudioTrack
		subtitle := v.SelectedSubtitleTrack
		tracks := v.Tracks
		return wireItem{
			Type:                  wireTypeLocal,
			Filename:              v.Filename,
			MediaKind:             v.Kind,
			Tracks:                &tracks,
			SelectedAudioTrack:    &audio,
			SelectedSubtitleTrack: &subtitle,
		}
	case *ExternalEmbed:
		return wireItem{
			Type:        wireTypeExternal,
			Platform:    v.Platform,
			ExternalID:  v.ExternalID,
			ExternalURL: v.ExternalURL,
			Title:       v.Title,
			Thumbnail:   v.Thumbnail,
			SyncLevel:   v.SyncLevel,
		}
	}
	return wireItem{}
}
