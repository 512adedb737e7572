// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
)

// Tail caps for the event logs.
const (
	RoomLogCap    = 500
	GeneralLogCap = 1000
)

// LogEntry is one audit event. Extra carries event-specific fields and is
// flattened into the JSON object.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Event     string         `json:"event"`
	Extra     map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the entry object.
func (e LogEntry) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(e.Extra)+2)
	for k, v := range e.Extra {
		obj[k] = v
	}
	obj["timestamp"] = e.Timestamp
	obj["event"] = e.Event
	return json.Marshal(obj)
}

// logDoc is the on-disk shape of one log file.
type logDoc struct {
	RoomCode string            `json:"roomCode,omitempty"`
	Logs     []json.RawMessage `json:"logs"`
}

// LogSink appends audit events to the general log and per-room logs,
// tail-capped so the files never grow unboundedly. Writes to one file are
// serialized; the caps drop the oldest entries.
type LogSink struct {
	mu  sync.Mutex
	dir string
}

// NewLogSink creates a sink writing under dataDir/logs.
func NewLogSink(dataDir string) (*LogSink, error) {
	dir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &LogSink{dir: dir}, nil
}

func (s *LogSink) roomLogPath(roomCode string) string {
	return filepath.Join(s.dir, "room-"+roomCode+".json")
}

func (s *LogSink) generalLogPath() string {
	return filepath.Join(s.dir, "general.json")
}

// AppendRoom appends an event to a room's log, capped at RoomLogCap.
func (s *LogSink) AppendRoom(roomCode string, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(s.roomLogPath(roomCode), roomCode, entry, RoomLogCap)
}

// AppendGeneral appends an event to the general log, capped at GeneralLogCap.
func (s *LogSink) AppendGeneral(entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(s.generalLogPath(), "", entry, GeneralLogCap)
}

func (s *LogSink) appendLocked(path, roomCode string, entry LogEntry, limit int) error {
	var doc logDoc
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return fmt.Errorf("read log %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			// A corrupt log restarts empty rather than blocking appends.
			doc = logDoc{}
		}
	}
	doc.RoomCode = roomCode

	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	doc.Logs = append(doc.Logs, encoded)
	if len(doc.Logs) > limit {
		doc.Logs = doc.Logs[len(doc.Logs)-limit:]
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, out, 0o600)
}

// RoomLog returns the raw entries of a room's log.
func (s *LogSink) RoomLog(roomCode string) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(s.roomLogPath(roomCode))
}

// GeneralLog returns the raw entries of the general log.
func (s *LogSink) GeneralLog() ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(s.generalLogPath())
}

func (s *LogSink) readLocked(path string) ([]json.RawMessage, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc logDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc.Logs, nil
}

// DeleteRoomLog removes a room's log file when the room is deleted.
func (s *LogSink) DeleteRoomLog(roomCode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.roomLogPath(roomCode))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
