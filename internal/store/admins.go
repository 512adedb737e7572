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

const adminsFileName = "room-admins.json"

// adminRecord is one persisted room admin.
type adminRecord struct {
	Fingerprint string    `json:"fingerprint"`
	SavedAt     time.Time `json:"savedAt"`
}

// AdminTable persists room admin fingerprints keyed by room code, so admin
// authority survives process restarts.
type AdminTable struct {
	mu     sync.Mutex
	path   string
	byRoom map[string]adminRecord
}

// OpenAdminTable loads (or initializes) the admin table in dataDir.
func OpenAdminTable(dataDir string) (*AdminTable, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	t := &AdminTable{
		path:   filepath.Join(dataDir, adminsFileName),
		byRoom: make(map[string]adminRecord),
	}
	raw, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read admin table: %w", err)
	}
	if err := json.Unmarshal(raw, &t.byRoom); err != nil {
		return nil, fmt.Errorf("parse admin table: %w", err)
	}
	return t, nil
}

func (t *AdminTable) persistLocked() error {
	raw, err := json.MarshalIndent(t.byRoom, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(t.path, raw, 0o600)
}

// SaveAdmin persists the admin fingerprint for a room.
func (t *AdminTable) SaveAdmin(roomCode, fingerprint string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byRoom[roomCode] = adminRecord{Fingerprint: fingerprint, SavedAt: time.Now().UTC()}
	return t.persistLocked()
}

// AdminFingerprint returns the persisted fingerprint for a room.
func (t *AdminTable) AdminFingerprint(roomCode string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.byRoom[roomCode]
	return rec.Fingerprint, ok
}

// DeleteAdmin drops the persisted record for a room.
func (t *AdminTable) DeleteAdmin(roomCode string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byRoom[roomCode]; !ok {
		return nil
	}
	delete(t.byRoom, roomCode)
	return t.persistLocked()
}
