// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package auth

import (
	"sync"

	"github.com/roomcast/roomcast/internal/logging"
)

// AdminMemory persists the legacy single-room admin fingerprint.
// Implemented by the memory store.
type AdminMemory interface {
	AdminFingerprint() string
	SetAdminFingerprint(fingerprint string) error
}

// Authority tracks which connections have proven admin status, plus the
// optional first-admin fingerprint lock: once a fingerprint is persisted,
// registrations presenting a different one are rejected.
type Authority struct {
	mu       sync.Mutex
	memory   AdminMemory
	lock     bool
	verified map[string]string // connection ID -> fingerprint
}

// NewAuthority creates an Authority. fingerprintLock enables the
// first-admin-wins check.
func NewAuthority(memory AdminMemory, fingerprintLock bool) *Authority {
	return &Authority{
		memory:   memory,
		lock:     fingerprintLock,
		verified: make(map[string]string),
	}
}

// Register verifies a connection as admin. Under the fingerprint lock the
// first registered fingerprint is persisted and later registrations must
// match it.
func (a *Authority) Register(connID, fingerprint string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lock {
		saved := a.memory.AdminFingerprint()
		switch {
		case saved == "":
			if err := a.memory.SetAdminFingerprint(fingerprint); err != nil {
				logging.Warn().Err(err).Msg("failed to persist admin fingerprint")
			}
		case saved != fingerprint:
			logging.Warn().Str("conn", connID).Msg("admin registration rejected by fingerprint lock")
			return false
		}
	}

	a.verified[connID] = fingerprint
	return true
}

// IsVerified reports whether a connection has registered as admin.
func (a *Authority) IsVerified(connID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.verified[connID]
	return ok
}

// Fingerprint returns the fingerprint a verified connection registered with.
func (a *Authority) Fingerprint(connID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fp, ok := a.verified[connID]
	return fp, ok
}

// Drop removes a disconnected connection from the verified set.
func (a *Authority) Drop(connID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.verified, connID)
}
