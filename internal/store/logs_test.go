// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package store

import (
	"os"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomLogTailCap(t *testing.T) {
	sink, err := NewLogSink(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < RoomLogCap+25; i++ {
		err := sink.AppendRoom("ABCDEF", LogEntry{
			Timestamp: time.Now(),
			Event:     "control",
			Extra:     map[string]any{"seq": i},
		})
		require.NoError(t, err)
	}

	logs, err := sink.RoomLog("ABCDEF")
	require.NoError(t, err)
	require.Len(t, logs, RoomLogCap)

	// The oldest 25 entries were dropped.
	var first struct {
		Seq int `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(logs[0], &first))
	assert.Equal(t, 25, first.Seq)
}

func TestLogEntryFlattensExtra(t *testing.T) {
	sink, err := NewLogSink(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sink.AppendGeneral(LogEntry{
		Timestamp: time.Now(),
		Event:     "room-created",
		Extra:     map[string]any{"room": "ABCDEF"},
	}))

	logs, err := sink.GeneralLog()
	require.NoError(t, err)
	require.Len(t, logs, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs[0], &entry))
	assert.Equal(t, "room-created", entry["event"])
	assert.Equal(t, "ABCDEF", entry["room"])
	assert.Contains(t, entry, "timestamp")
}

func TestDeleteRoomLog(t *testing.T) {
	sink, err := NewLogSink(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, sink.AppendRoom("ABCDEF", LogEntry{Timestamp: time.Now(), Event: "x"}))

	require.NoError(t, sink.DeleteRoomLog("ABCDEF"))
	logs, err := sink.RoomLog("ABCDEF")
	require.NoError(t, err)
	assert.Empty(t, logs)

	// Deleting a missing log is not an error.
	assert.NoError(t, sink.DeleteRoomLog("NOSUCH"))
}

func TestGeneralLogSurvivesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewLogSink(dir)
	require.NoError(t, err)
	require.NoError(t, sink.AppendGeneral(LogEntry{Timestamp: time.Now(), Event: "a"}))

	// Corrupt the file; the next append starts fresh instead of failing.
	require.NoError(t, os.WriteFile(sink.generalLogPath(), []byte("not json"), 0o600))
	require.NoError(t, sink.AppendGeneral(LogEntry{Timestamp: time.Now(), Event: "b"}))

	logs, err := sink.GeneralLog()
	require.NoError(t, err)
	require.Len(t, logs, 1)
}
