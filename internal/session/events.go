// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package session

// Server -> client event names. Wire names are part of the protocol and
// never change spelling.
const (
	EventSync             = "sync"
	EventPlaylistUpdate   = "playlist-update"
	EventPlaylistPosition = "playlist-position"
	EventTrackChange      = "track-change"
	EventViewerCount      = "viewer-count"
	EventClientCount      = "client-count"
	EventRoomsUpdated     = "rooms-updated"
	EventRoomDeleted      = "room-deleted"
	EventRateLimitError   = "rate-limit-error"
	EventAdminAuthResult  = "admin-auth-result"
	EventAdminError       = "admin-error"
	EventBSLStatusUpdate  = "bsl-status-update"
	EventBSLMatchResult   = "bsl-match-result"
	EventBSLDriftUpdate   = "bsl-drift-update"
	EventBSLCheckFolder   = "bsl-check-folder"
	EventChatMessage      = "chat-message"
	EventNameUpdated      = "name-updated"
	EventCreateRoomResult = "create-room-result"
	EventJoinRoomResult   = "join-room-result"
	EventRoomsList        = "rooms-list"
	EventInitialState     = "initial-state"
	EventClientList       = "client-list"
)

// Client -> server event names.
const (
	EventCreateRoom           = "create-room"
	EventJoinRoom             = "join-room"
	EventLeaveRoom            = "leave-room"
	EventDeleteRoom           = "delete-room"
	EventGetRooms             = "get-rooms"
	EventRequestInitialState  = "request-initial-state"
	EventRequestSync          = "request-sync"
	EventControl              = "control"
	EventSetPlaylist          = "set-playlist"
	EventPlaylistJump         = "playlist-jump"
	EventPlaylistReorder      = "playlist-reorder"
	EventPlaylistNext         = "playlist-next"
	EventSkipToNextVideo      = "skip-to-next-video"
	EventBSLAdminRegister     = "bsl-admin-register"
	EventBSLCheckRequest      = "bsl-check-request"
	EventBSLGetStatus         = "bsl-get-status"
	EventBSLFolderSelected    = "bsl-folder-selected"
	EventBSLManualMatch       = "bsl-manual-match"
	EventBSLSetDrift          = "bsl-set-drift"
	EventClientRegister       = "client-register"
	EventGetClientList        = "get-client-list"
	EventSetClientName        = "set-client-name"
	EventSetClientDisplayName = "set-client-display-name"
)
