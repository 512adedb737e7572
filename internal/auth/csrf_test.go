// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func TestEnsureSessionSetsCookieOnce(t *testing.T) {
	s := NewCSRFStore(false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	id := s.EnsureSession(rec, req)
	require.NotEmpty(t, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, SessionCookieName, c.Name)
	assert.Equal(t, id, c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	// A request already carrying the cookie keeps its session.
	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req2.AddCookie(c)
	assert.Equal(t, id, s.EnsureSession(rec2, req2))
	assert.Empty(t, rec2.Result().Cookies())
}

func TestTokenIsStablePerSession(t *testing.T) {
	s := NewCSRFStore(false)
	tok1, err := s.TokenFor("session-1")
	require.NoError(t, err)
	require.Len(t, tok1, 64, "32 random bytes hex-encoded")

	tok2, err := s.TokenFor("session-1")
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)

	other, err := s.TokenFor("session-2")
	require.NoError(t, err)
	assert.NotEqual(t, tok1, other)
}

func TestValidate(t *testing.T) {
	s := NewCSRFStore(false)
	tok, err := s.TokenFor("session-1")
	require.NoError(t, err)

	assert.True(t, s.Validate("session-1", tok))
	assert.False(t, s.Validate("session-1", "wrong"))
	assert.False(t, s.Validate("session-2", tok))
	assert.False(t, s.Validate("", tok))
	assert.False(t, s.Validate("session-1", ""))
}

func TestExpiredTokenFailsAndRefreshes(t *testing.T) {
	s := NewCSRFStore(false)
	tok, err := s.TokenFor("session-1")
	require.NoError(t, err)

	s.mu.Lock()
	s.tokens["session-1"] = csrfToken{value: tok, expires: time.Now().Add(-time.Minute)}
	s.mu.Unlock()

	assert.False(t, s.Validate("session-1", tok))

	fresh, err := s.TokenFor("session-1")
	require.NoError(t, err)
	assert.NotEqual(t, tok, fresh)
	assert.True(t, s.Validate("session-1", fresh))
}

func TestMiddlewareBypassesSafeMethods(t *testing.T) {
	s := NewCSRFStore(false)
	var called bool
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMissingOrBadToken(t *testing.T) {
	s := NewCSRFStore(false)
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	// No cookie at all.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ffmpeg/auth", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Cookie but wrong header.
	_, err := s.TokenFor("session-1")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/ffmpeg/auth", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session-1"})
	req.Header.Set(CSRFHeaderName, "bogus")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	s := NewCSRFStore(false)
	tok, err := s.TokenFor("session-1")
	require.NoError(t, err)

	var called bool
	h := s.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/ffmpeg/run-preset", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session-1"})
	req.Header.Set(CSRFHeaderName, tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.True(t, called)
}

type csrfFakeAdminMemory struct {
	fp string
}

func (f *csrfFakeAdminMemory) AdminFingerprint() string { return f.fp }
func (f *csrfFakeAdminMemory) SetAdminFingerprint(fp string) error {
	f.fp = fp
	return nil
}

func TestAuthorityFirstAdminWins(t *testing.T) {
	mem := &csrfFakeAdminMemory{}
	a := NewAuthority(mem, true)

	require.True(t, a.Register("conn-1", "fp-first"))
	assert.Equal(t, "fp-first", mem.fp)
	assert.True(t, a.IsVerified("conn-1"))

	// Same fingerprint from another device is fine.
	assert.True(t, a.Register("conn-2", "fp-first"))

	// A different fingerprint is locked out.
	assert.False(t, a.Register("conn-3", "fp-other"))
	assert.False(t, a.IsVerified("conn-3"))
}

func TestAuthorityLockDisabledAcceptsAll(t *testing.T) {
	mem := &csrfFakeAdminMemory{fp: "fp-first"}
	a := NewAuthority(mem, false)
	assert.True(t, a.Register("conn-1", "fp-other"))
}

func TestAuthorityDrop(t *testing.T) {
	a := NewAuthority(&csrfFakeAdminMemory{}, false)
	require.True(t, a.Register("conn-1", "fp"))
	fp, ok := a.Fingerprint("conn-1")
	require.True(t, ok)
	assert.Equal(t, "fp", fp)

	a.Drop("conn-1")
	assert.False(t, a.IsVerified("conn-1"))
}
