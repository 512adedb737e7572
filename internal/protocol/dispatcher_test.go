// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package protocol

import (
	"context"
	"io"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/bsl"
	"github.com/roomcast/roomcast/internal/chat"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/media"
	"github.com/roomcast/roomcast/internal/playlist"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/store"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

// fakeAdapter serves canned metadata so no test touches ffprobe.
type fakeAdapter struct {
	sizes map[string]int64
}

func (f *fakeAdapter) ListMedia(context.Context) ([]media.File, error) { return nil, nil }

func (f *fakeAdapter) TracksFor(_ context.Context, _ string) (playlist.TrackSet, error) {
	return playlist.TrackSet{
		Audio: []playlist.Track{{Index: 0, Codec: "aac", Default: true}},
	}, nil
}

func (f *fakeAdapter) FileSize(filename string) (int64, bool) {
	size, ok := f.sizes[filename]
	return size, ok
}

type testEnv struct {
	cfg      *config.Config
	hub      *session.Hub
	registry *room.Registry
	memory   *store.Memory
	disp     *Dispatcher
}

func newEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	memory, err := store.OpenMemory(dir)
	require.NoError(t, err)
	admins, err := store.OpenAdminTable(dir)
	require.NoError(t, err)
	logs, err := store.NewLogSink(dir)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, ServerMode: true, DataDir: dir},
		Playback: config.PlaybackConfig{
			VolumeStep:       5,
			MaxVolume:        100,
			SkipSeconds:      10,
			SkipIntroSeconds: 85,
			JoinMode:         config.JoinModeSync,
			SubtitleRenderer: config.SubtitleRendererWSR,
		},
		BSL:  config.BSLConfig{Mode: config.BSLModeAny, AdvancedMatch: true, MatchThreshold: 2},
		Chat: config.ChatConfig{Enabled: true},
	}
	if mutate != nil {
		mutate(cfg)
	}

	hub := session.NewHub(nil)
	registry := room.NewRegistry(admins)
	disp := New(Deps{
		Config:    cfg,
		Hub:       hub,
		Registry:  registry,
		Authority: auth.NewAuthority(memory, cfg.Admin.FingerprintLock),
		Memory:    memory,
		Logs:      logs,
		Media:     &fakeAdapter{sizes: map[string]int64{}},
		Chat:      chat.NewRelay(cfg.Chat.Enabled, memory),
	})
	disp.Attach()
	return &testEnv{cfg: cfg, hub: hub, registry: registry, memory: memory, disp: disp}
}

// findEvent returns the payload of the first queued envelope with the given
// event name.
func findEvent(t *testing.T, envs []session.Envelope, name string) json.RawMessage {
	t.Helper()
	for _, env := range envs {
		if env.Event == name {
			return env.Data
		}
	}
	t.Fatalf("no %q event in %d queued envelopes", name, len(envs))
	return nil
}

func hasEvent(envs []session.Envelope, name string) bool {
	for _, env := range envs {
		if env.Event == name {
			return true
		}
	}
	return false
}

// createRoom drives the create-room flow and returns the admin connection
// and the assigned room code.
func (e *testEnv) createRoom(t *testing.T, fingerprint string) (*session.Client, string) {
	t.Helper()
	admin := e.hub.NewLocalClient("10.0.0.1:100")
	admin.Deliver(session.EventCreateRoom, map[string]any{
		"name":        "movie night",
		"fingerprint": fingerprint,
	})

	var res createRoomResult
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventCreateRoomResult), &res))
	require.True(t, res.Success)
	require.Len(t, res.RoomCode, 6)
	return admin, res.RoomCode
}

// joinRoom drives the join-room flow for a fresh connection.
func (e *testEnv) joinRoom(t *testing.T, code, fingerprint, name string) *session.Client {
	t.Helper()
	c := e.hub.NewLocalClient("10.0.0.2:200")
	c.Deliver(session.EventJoinRoom, map[string]any{
		"roomCode":    code,
		"fingerprint": fingerprint,
		"name":        name,
	})

	var res joinRoomResult
	require.NoError(t, json.Unmarshal(findEvent(t, c.Drain(), session.EventJoinRoomResult), &res))
	require.True(t, res.Success)
	return c
}

func localItem(filename string) map[string]any {
	return map[string]any{"type": "local", "filename": filename}
}

func TestCreateRoomGrantsAdminAndRegistersRoom(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")

	assert.True(t, admin.IsAdmin())
	assert.Equal(t, code, admin.RoomCode())
	assert.Equal(t, 1, env.registry.Count())

	r, ok := env.registry.Find(code)
	require.True(t, ok)
	assert.Equal(t, admin.ID(), r.AdminConnID())
	assert.Equal(t, 1, r.ViewerCount())
}

func TestJoinRoomDeliversStateAndViewerCount(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")

	viewer := env.hub.NewLocalClient("10.0.0.2:200")
	viewer.Deliver(session.EventJoinRoom, map[string]any{
		"roomCode":    code,
		"fingerprint": "fp-viewer",
		"name":        "Dana",
	})

	envs := viewer.Drain()
	var res joinRoomResult
	require.NoError(t, json.Unmarshal(findEvent(t, envs, session.EventJoinRoomResult), &res))
	assert.True(t, res.Success)
	assert.False(t, res.IsAdmin)
	assert.Equal(t, "movie night", res.RoomName)
	assert.Contains(t, res.Viewers, "Dana")

	// The joiner gets the authoritative state right away.
	assert.True(t, hasEvent(envs, session.EventPlaylistUpdate))
	assert.True(t, hasEvent(envs, session.EventSync))

	// Everyone in the room sees the count move.
	var count int
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventViewerCount), &count))
	assert.Equal(t, 2, count)
}

func TestJoinUnknownRoomFails(t *testing.T) {
	env := newEnv(t, nil)
	c := env.hub.NewLocalClient("10.0.0.2:200")
	c.Deliver(session.EventJoinRoom, map[string]any{
		"roomCode":    "ZZZZZZ",
		"fingerprint": "fp",
	})

	var res joinRoomResult
	require.NoError(t, json.Unmarshal(findEvent(t, c.Drain(), session.EventJoinRoomResult), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "Room not found", res.Reason)
}

func TestRejoiningAdminFingerprintRegainsAuthority(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	admin.Close()

	again := env.joinRoom(t, code, "fp-admin", "")
	assert.True(t, again.IsAdmin())
}

func TestAdminOnlyEventRejectedForViewer(t *testing.T) {
	env := newEnv(t, nil)
	_, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")

	viewer.Deliver(session.EventSetPlaylist, map[string]any{
		"playlist": []any{localItem("a.mp4")},
	})

	var adminErr adminError
	require.NoError(t, json.Unmarshal(findEvent(t, viewer.Drain(), session.EventAdminError), &adminErr))
	assert.Equal(t, session.EventSetPlaylist, adminErr.Event)

	r, _ := env.registry.Find(code)
	assert.Empty(t, r.PlaylistSnapshot().Items)
}

func TestSetPlaylistDropsInvalidItemsAndEnrichesTracks(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")

	admin.Deliver(session.EventSetPlaylist, map[string]any{
		"playlist": []any{
			localItem("a.mp4"),
			localItem("../../etc/passwd"),
			map[string]any{"type": "external", "platform": "nosuch", "externalId": "x"},
			map[string]any{"type": "external", "platform": "youtube", "externalId": "dQw4w9WgXcQ"},
		},
		"mainVideoIndex": 0,
	})

	envs := admin.Drain()
	require.True(t, hasEvent(envs, session.EventPlaylistUpdate))
	require.True(t, hasEvent(envs, session.EventSync))

	r, _ := env.registry.Find(code)
	snap := r.PlaylistSnapshot()
	require.Len(t, snap.Items, 2)
	require.NotNil(t, snap.Items[0].Tracks)
	assert.Len(t, snap.Items[0].Tracks.Audio, 1)
}

func TestControlPlayPauseBroadcastsSync(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	admin.Deliver(session.EventSetPlaylist, map[string]any{
		"playlist": []any{localItem("a.mp4")},
	})
	admin.Drain()

	admin.Deliver(session.EventControl, map[string]any{"action": "playpause"})

	var sync room.SyncPayload
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventSync), &sync))
	assert.True(t, sync.IsPlaying)

	r, _ := env.registry.Find(code)
	assert.True(t, r.SyncSnapshot(env.disp.now()).IsPlaying)
}

func TestControlsDisabledGatesViewersNotAdmins(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.Client.ControlsDisabled = true })
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")

	viewer.Deliver(session.EventControl, map[string]any{"action": "playpause"})
	assert.False(t, hasEvent(viewer.Drain(), session.EventSync))

	admin.Drain()
	admin.Deliver(session.EventControl, map[string]any{"action": "playpause"})
	assert.True(t, hasEvent(admin.Drain(), session.EventSync))
}

func TestControlDirectTupleRequiresSyncEnabled(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.Client.SyncDisabled = true })
	_, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")

	viewer.Deliver(session.EventControl, map[string]any{
		"isPlaying": true,
		"position":  42.5,
	})
	assert.False(t, hasEvent(viewer.Drain(), session.EventSync))

	r, _ := env.registry.Find(code)
	assert.False(t, r.SyncSnapshot(env.disp.now()).IsPlaying)
}

func TestPlaylistNextJumpsLikePlaylistJump(t *testing.T) {
	env := newEnv(t, nil)
	admin, _ := env.createRoom(t, "fp-admin")
	admin.Deliver(session.EventSetPlaylist, map[string]any{
		"playlist": []any{localItem("a.mp4"), localItem("b.mp4")},
	})
	admin.Drain()

	admin.Deliver(session.EventPlaylistNext, map[string]any{"index": 1})

	var pos map[string]int
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventPlaylistPosition), &pos))
	assert.Equal(t, 1, pos["currentIndex"])
}

func TestBSLFolderSelectedMatchesAndNotifiesAdmin(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "Dana")

	admin.Deliver(session.EventSetPlaylist, map[string]any{
		"playlist": []any{localItem("a.mp4")},
	})
	admin.Drain()
	viewer.Drain()

	viewer.Deliver(session.EventBSLFolderSelected, map[string]any{
		"fingerprint": "fp-viewer",
		"files":       []bsl.ClientFile{{Name: "a.mp4", Size: 100, Type: "video/mp4"}},
	})

	var res bsl.Result
	require.NoError(t, json.Unmarshal(findEvent(t, viewer.Drain(), session.EventBSLMatchResult), &res))
	assert.Equal(t, 1, res.TotalMatched)
	assert.Equal(t, "a.mp4", res.Matched[0])

	var status room.BSLStatus
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventBSLStatusUpdate), &status))
	require.Len(t, status.Clients, 1)
	assert.Equal(t, "fp-viewer", status.Clients[0].Fingerprint)
	assert.Equal(t, []bool{true}, status.ActiveItems)
}

func TestBSLSetDriftReachesTargetConnections(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")
	viewer.Drain()

	admin.Deliver(session.EventBSLSetDrift, map[string]any{
		"clientFingerprint": "fp-viewer",
		"playlistIndex":     0,
		"driftSeconds":      120, // clamped to 60
	})

	var payload struct {
		DriftValues map[int]int `json:"driftValues"`
	}
	require.NoError(t, json.Unmarshal(findEvent(t, viewer.Drain(), session.EventBSLDriftUpdate), &payload))
	assert.Equal(t, 60, payload.DriftValues[0])
}

func TestBSLManualMatchPersistsPair(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")

	admin.Deliver(session.EventSetPlaylist, map[string]any{
		"playlist": []any{localItem("Server Cut.mp4")},
	})
	admin.Drain()
	viewer.Drain()

	viewer.Deliver(session.EventBSLFolderSelected, map[string]any{
		"fingerprint": "fp-viewer",
		"files":       []bsl.ClientFile{{Name: "local copy.mkv", Size: 1, Type: "video/x-matroska"}},
	})
	viewer.Drain()
	admin.Drain()

	admin.Deliver(session.EventBSLManualMatch, map[string]any{
		"clientConnectionId": viewer.ID(),
		"clientFileName":     "local copy.mkv",
		"playlistIndex":      0,
	})

	var res bsl.Result
	require.NoError(t, json.Unmarshal(findEvent(t, viewer.Drain(), session.EventBSLMatchResult), &res))
	assert.Equal(t, "local copy.mkv", res.Matched[0])

	persisted := env.memory.BSLMatches("fp-viewer")
	assert.Equal(t, "Server Cut.mp4", persisted["local copy.mkv"])
}

func TestChatMessageEscapedAndBroadcast(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "Dana")
	admin.Drain()

	viewer.Deliver(session.EventChatMessage, map[string]any{
		"sender":  "Dana",
		"message": "<b>hi</b>",
	})

	var msg chat.Message
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventChatMessage), &msg))
	assert.Equal(t, "Dana", msg.Sender)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", msg.Message)
}

func TestChatRenamePersistsAndAnnounces(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "Dana")
	admin.Drain()

	viewer.Deliver(session.EventChatMessage, map[string]any{
		"sender":  "Dana",
		"message": "/rename Alex",
	})

	envs := viewer.Drain()
	var update chat.NameUpdate
	require.NoError(t, json.Unmarshal(findEvent(t, envs, session.EventNameUpdated), &update))
	assert.Equal(t, "Alex", update.DisplayName)

	var announcement chat.Message
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventChatMessage), &announcement))
	assert.Equal(t, chat.SystemSender, announcement.Sender)
	assert.Contains(t, announcement.Message, "Alex")

	name, ok := env.memory.ClientName("fp-viewer")
	require.True(t, ok)
	assert.Equal(t, "Alex", name)
}

func TestChatDisabledDropsMessages(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.Chat.Enabled = false })
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")
	admin.Drain()

	viewer.Deliver(session.EventChatMessage, map[string]any{"message": "hello"})
	assert.False(t, hasEvent(admin.Drain(), session.EventChatMessage))
}

func TestSetClientNameRenamesAllTabsOfFingerprint(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "Dana")
	viewer.Drain()
	admin.Drain()

	admin.Deliver(session.EventSetClientName, map[string]any{
		"clientId":    viewer.ID(),
		"displayName": "Sam",
	})

	var update chat.NameUpdate
	require.NoError(t, json.Unmarshal(findEvent(t, viewer.Drain(), session.EventNameUpdated), &update))
	assert.Equal(t, "Sam", update.DisplayName)

	var list struct {
		Clients []clientEntry `json:"clients"`
	}
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventClientList), &list))
	found := false
	for _, entry := range list.Clients {
		if entry.ConnectionID == viewer.ID() {
			found = true
			assert.Equal(t, "Sam", entry.DisplayName)
		}
	}
	assert.True(t, found)

	name, ok := env.memory.ClientName("fp-viewer")
	require.True(t, ok)
	assert.Equal(t, "Sam", name)
}

func TestDeleteRoomEvictsAndBroadcasts(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")
	viewer.Drain()

	admin.Deliver(session.EventDeleteRoom, map[string]any{
		"roomCode":    code,
		"fingerprint": "fp-admin",
	})

	assert.True(t, hasEvent(viewer.Drain(), session.EventRoomDeleted))
	assert.Equal(t, 0, env.registry.Count())
	assert.Equal(t, "", viewer.RoomCode())
}

func TestDisconnectCleansUpViewerAndBSLReport(t *testing.T) {
	env := newEnv(t, nil)
	admin, code := env.createRoom(t, "fp-admin")
	viewer := env.joinRoom(t, code, "fp-viewer", "")
	admin.Drain()

	viewer.Close()

	r, _ := env.registry.Find(code)
	assert.Equal(t, 1, r.ViewerCount())

	var count int
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventViewerCount), &count))
	assert.Equal(t, 1, count)
}

func TestLegacyModeAutoJoinsSingleRoom(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.Server.ServerMode = false })

	c := env.hub.NewLocalClient("10.0.0.3:300")
	c.Deliver(session.EventClientRegister, map[string]any{"fingerprint": "fp-1"})

	require.NotNil(t, env.disp.LegacyRoom())
	assert.Equal(t, LegacyRoomCode, c.RoomCode())
	assert.Equal(t, 1, env.disp.LegacyRoom().ViewerCount())

	envs := c.Drain()
	assert.True(t, hasEvent(envs, session.EventViewerCount))
	assert.True(t, hasEvent(envs, session.EventClientCount))
}

func TestLegacyModeRejectsCreateRoom(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.Server.ServerMode = false })

	c := env.hub.NewLocalClient("10.0.0.3:300")
	c.Deliver(session.EventCreateRoom, map[string]any{
		"name":        "extra",
		"fingerprint": "fp-1",
	})

	var res createRoomResult
	require.NoError(t, json.Unmarshal(findEvent(t, c.Drain(), session.EventCreateRoomResult), &res))
	assert.False(t, res.Success)
}

func TestBSLAdminRegisterRejectsWrongFingerprint(t *testing.T) {
	env := newEnv(t, nil)
	_, code := env.createRoom(t, "fp-admin")
	imposter := env.joinRoom(t, code, "fp-other", "")
	imposter.Drain()

	imposter.Deliver(session.EventBSLAdminRegister, map[string]any{
		"fingerprint": "fp-other",
		"roomCode":    code,
	})

	var res adminAuthResult
	require.NoError(t, json.Unmarshal(findEvent(t, imposter.Drain(), session.EventAdminAuthResult), &res))
	assert.False(t, res.Success)
	assert.False(t, imposter.IsAdmin())
}

func TestInitialStateCarriesConfigAndState(t *testing.T) {
	env := newEnv(t, nil)
	admin, _ := env.createRoom(t, "fp-admin")

	admin.Deliver(session.EventRequestInitialState, nil)

	var state initialState
	require.NoError(t, json.Unmarshal(findEvent(t, admin.Drain(), session.EventInitialState), &state))
	assert.Equal(t, "movie night", state.RoomName)
	assert.True(t, state.IsAdmin)
	assert.Equal(t, 1, state.ViewerCount)
	assert.True(t, state.ChatEnabled)
	assert.Equal(t, 10, state.Playback.SkipSeconds)
	assert.Equal(t, config.SubtitleRendererWSR, state.SubtitleRenderer)
}
