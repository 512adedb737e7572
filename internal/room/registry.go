// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roomcast/roomcast/internal/logging"
)

// Room codes avoid the look-alike characters I, L, O, 0 and 1.
const (
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	codeLength   = 6

	maxCodeAttempts = 64
)

// Registry errors.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotAdmin     = errors.New("not the room admin")
)

// AdminRecords persists room admin fingerprints so admin authority survives
// process restarts. Implemented by the persistence layer.
type AdminRecords interface {
	SaveAdmin(roomCode, fingerprint string) error
	AdminFingerprint(roomCode string) (string, bool)
	DeleteAdmin(roomCode string) error
}

// PublicRoom is one entry of the public rooms list.
type PublicRoom struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Viewers   int       `json:"viewers"`
	CreatedAt time.Time `json:"createdAt"`
}

// Registry owns the live rooms of the process, keyed by upper-case code.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	admins AdminRecords
}

// NewRegistry creates an empty registry backed by the given admin records.
func NewRegistry(admins AdminRecords) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		admins: admins,
	}
}

// generateCode returns a random room code.
func generateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}

// Create makes a new room with a fresh unique code and persists the admin
// fingerprint.
func (g *Registry) Create(name string, private bool, adminFingerprint string, now time.Time) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var code string
	for attempt := 0; ; attempt++ {
		if attempt >= maxCodeAttempts {
			return nil, errors.New("room code space exhausted")
		}
		c, err := generateCode()
		if err != nil {
			return nil, err
		}
		if _, taken := g.rooms[c]; !taken {
			code = c
			break
		}
	}

	r := New(code, name, private, adminFingerprint, now)
	g.rooms[code] = r

	if err := g.admins.SaveAdmin(code, adminFingerprint); err != nil {
		logging.Warn().Err(err).Str("room", code).Msg("failed to persist room admin")
	}

	logging.Info().
		Str("room", code).
		Str("name", name).
		Bool("private", private).
		Msg("room created")
	return r, nil
}

// Adopt inserts a pre-built room. The legacy single-room mode uses this to
// install its fixed room at startup.
func (g *Registry) Adopt(r *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rooms[strings.ToUpper(r.Code)] = r
}

// Find looks up a room by code, case-insensitively.
func (g *Registry) Find(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.rooms[strings.ToUpper(code)]
	return r, ok
}

// Delete removes a room after verifying the requester's admin authority.
// The removed room is returned so the caller can fan out room-deleted and
// evict its connections.
func (g *Registry) Delete(code, requesterFingerprint string) (*Room, error) {
	r, ok := g.Find(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !g.IsAdmin(r, requesterFingerprint) {
		return nil, ErrNotAdmin
	}

	g.mu.Lock()
	delete(g.rooms, r.Code)
	g.mu.Unlock()

	if err := g.admins.DeleteAdmin(r.Code); err != nil {
		logging.Warn().Err(err).Str("room", r.Code).Msg("failed to drop persisted room admin")
	}

	logging.Info().Str("room", r.Code).Msg("room deleted")
	return r, nil
}

// IsAdmin reports whether the fingerprint holds admin authority over r.
// A match against the persisted record is accepted too and repopulates the
// in-memory field, so authority survives process restarts.
func (g *Registry) IsAdmin(r *Room, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	if r.AdminFingerprint() == fingerprint {
		return true
	}
	if saved, ok := g.admins.AdminFingerprint(r.Code); ok && saved == fingerprint {
		r.setAdminFingerprint(saved)
		return true
	}
	return false
}

// ListPublic snapshots the non-private rooms.
func (g *Registry) ListPublic() []PublicRoom {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]PublicRoom, 0, len(g.rooms))
	for _, r := range g.rooms {
		if r.Private {
			continue
		}
		out = append(out, PublicRoom{
			Code:      r.Code,
			Name:      r.Name,
			Viewers:   r.ViewerCount(),
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}

// All snapshots every live room.
func (g *Registry) All() []*Room {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	return out
}

// Count returns the number of live rooms.
func (g *Registry) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// ConsolidateAll folds elapsed time into every playing room. Called by the
// clock ticker.
func (g *Registry) ConsolidateAll(now time.Time) {
	for _, r := range g.All() {
		r.ConsolidateTick(now)
	}
}
