// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package auth covers the two authorization surfaces: admin fingerprint
// authority for the event protocol and CSRF protection for mutating HTTP
// endpoints.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/logging"
)

// CSRF constants.
const (
	SessionCookieName = "sync_session"
	CSRFHeaderName    = "X-CSRF-Token"
	TokenTTL          = 24 * time.Hour

	// gcThreshold triggers an expired-entry sweep when the table grows past
	// this many sessions.
	gcThreshold = 1000
)

type csrfToken struct {
	value   string
	expires time.Time
}

// CSRFStore binds random 32-byte tokens to sessions and validates the
// double-submit header on mutating requests.
type CSRFStore struct {
	mu     sync.Mutex
	tokens map[string]csrfToken // session ID -> token
	secure bool
}

// NewCSRFStore creates an empty store. secure marks issued cookies Secure.
func NewCSRFStore(secure bool) *CSRFStore {
	return &CSRFStore{
		tokens: make(map[string]csrfToken),
		secure: secure,
	}
}

// EnsureSession returns the request's session ID, setting the sync_session
// cookie when the request has none.
func (s *CSRFStore) EnsureSession(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(TokenTTL.Seconds()),
	})
	return id
}

// TokenFor returns the session's current token, issuing a fresh one when
// none exists or the old one expired.
func (s *CSRFStore) TokenFor(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tok, ok := s.tokens[sessionID]; ok && time.Now().Before(tok.expires) {
		return tok.value, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	tok := csrfToken{value: hex.EncodeToString(buf), expires: time.Now().Add(TokenTTL)}
	s.tokens[sessionID] = tok

	if len(s.tokens) > gcThreshold {
		s.gcLocked()
	}
	return tok.value, nil
}

// Validate checks a presented token against the session's stored one.
// Expired tokens fail; the client refreshes via the token endpoint.
func (s *CSRFStore) Validate(sessionID, presented string) bool {
	if sessionID == "" || presented == "" {
		return false
	}
	s.mu.Lock()
	tok, ok := s.tokens[sessionID]
	s.mu.Unlock()
	if !ok || time.Now().After(tok.expires) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(tok.value), []byte(presented)) == 1
}

// gcLocked sweeps expired entries. Callers hold s.mu.
func (s *CSRFStore) gcLocked() {
	now := time.Now()
	removed := 0
	for id, tok := range s.tokens {
		if now.After(tok.expires) {
			delete(s.tokens, id)
			removed++
		}
	}
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("csrf token table swept")
	}
}

// Middleware enforces the double-submit check on mutating methods. Safe
// methods pass through untouched.
func (s *CSRFStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || !s.Validate(cookie.Value, r.Header.Get(CSRFHeaderName)) {
			logging.Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Msg("csrf validation failed")
			http.Error(w, `{"error":"invalid or missing CSRF token"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
