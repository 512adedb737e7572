// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/bsl"
	"github.com/roomcast/roomcast/internal/validation"
)

// decode parses and validates one inbound payload. A failure drops the
// event; the connection stays up.
func decode[T any](data json.RawMessage, v *T) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
	}
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	return nil
}

type createRoomReq struct {
	Name        string `json:"name" validate:"required,max=100"`
	IsPrivate   bool   `json:"isPrivate"`
	Fingerprint string `json:"fingerprint" validate:"required,max=128"`
}

type joinRoomReq struct {
	// RoomCode may be omitted in legacy single-room mode.
	RoomCode    string `json:"roomCode" validate:"omitempty,roomcode"`
	Name        string `json:"name" validate:"max=32"`
	Fingerprint string `json:"fingerprint" validate:"required,max=128"`
}

type deleteRoomReq struct {
	RoomCode    string `json:"roomCode" validate:"required,roomcode"`
	Fingerprint string `json:"fingerprint" validate:"max=128"`
}

// controlReq carries either a named action or a direct sync tuple.
type controlReq struct {
	Action     string   `json:"action" validate:"omitempty,oneof=playpause skip seek selectTrack rate skipIntro"`
	Direction  string   `json:"direction" validate:"omitempty,oneof=forward backward"`
	Seconds    *float64 `json:"seconds"`
	Time       *float64 `json:"time"`
	Rate       *float64 `json:"rate"`
	Type       string   `json:"type" validate:"omitempty,oneof=audio subtitle"`
	TrackIndex *int     `json:"trackIndex"`

	// Direct tuple form.
	IsPlaying *bool    `json:"isPlaying"`
	Position  *float64 `json:"position"`
}

type setPlaylistReq struct {
	Playlist       []json.RawMessage `json:"playlist" validate:"max=500"`
	MainVideoIndex int               `json:"mainVideoIndex"`
	StartTime      float64           `json:"startTime"`
}

type playlistJumpReq struct {
	Index int `json:"index" validate:"min=0"`
}

type playlistReorderReq struct {
	FromIndex int `json:"fromIndex" validate:"min=0"`
	ToIndex   int `json:"toIndex" validate:"min=0"`
}

type trackChangeReq struct {
	VideoIndex int    `json:"videoIndex" validate:"min=-1"`
	Type       string `json:"type" validate:"required,oneof=audio subtitle"`
	TrackIndex int    `json:"trackIndex" validate:"min=-1"`
}

type bslAdminRegisterReq struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=128"`
	RoomCode    string `json:"roomCode" validate:"omitempty,roomcode"`
}

type bslFolderSelectedReq struct {
	Fingerprint string           `json:"fingerprint" validate:"max=128"`
	DisplayName string           `json:"displayName" validate:"max=32"`
	Files       []bsl.ClientFile `json:"files" validate:"max=2000,dive"`
}

type bslManualMatchReq struct {
	ClientConnectionID string `json:"clientConnectionId" validate:"required,max=64"`
	ClientFileName     string `json:"clientFileName" validate:"required,max=255"`
	PlaylistIndex      int    `json:"playlistIndex" validate:"min=0"`
}

type bslSetDriftReq struct {
	ClientFingerprint string `json:"clientFingerprint" validate:"required,max=128"`
	PlaylistIndex     int    `json:"playlistIndex" validate:"min=0"`
	DriftSeconds      int    `json:"driftSeconds"`
}

type clientRegisterReq struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=128"`
}

type setClientNameReq struct {
	ClientID    string `json:"clientId" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"required,max=32"`
}

type setClientDisplayNameReq struct {
	Fingerprint string `json:"fingerprint" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"required,max=32"`
}

type chatMessageReq struct {
	Sender  string `json:"sender" validate:"max=64"`
	Message string `json:"message" validate:"required,max=2000"`
}

// Response payload shapes.

type createRoomResult struct {
	Success  bool   `json:"success"`
	Reason   string `json:"error,omitempty"`
	RoomCode string `json:"roomCode,omitempty"`
	RoomName string `json:"roomName,omitempty"`
}

type joinRoomResult struct {
	Success  bool     `json:"success"`
	Reason   string   `json:"error,omitempty"`
	RoomName string   `json:"roomName,omitempty"`
	IsAdmin  bool     `json:"isAdmin"`
	Viewers  []string `json:"viewers,omitempty"`
}

type adminAuthResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

type adminError struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
