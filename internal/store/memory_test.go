// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package store

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roomcast/roomcast/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "disabled", Output: io.Discard})
}

func TestMemoryRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m, err := OpenMemory(dir)
	require.NoError(t, err)
	require.NoError(t, m.SetClientName("fp-1", "alice"))
	require.NoError(t, m.SetBSLMatch("fp-1", "My Movie.MKV", "movie.mkv"))
	require.NoError(t, m.SetAdminFingerprint("fp-admin"))

	// Reopen: everything survives, BSL keys are lowercased.
	m2, err := OpenMemory(dir)
	require.NoError(t, err)
	name, ok := m2.ClientName("fp-1")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, map[string]string{"my movie.mkv": "movie.mkv"}, m2.BSLMatches("fp-1"))
	assert.Equal(t, "fp-admin", m2.AdminFingerprint())
}

func TestMemoryFileSecretsAreSealed(t *testing.T) {
	dir := t.TempDir()
	m, err := OpenMemory(dir)
	require.NoError(t, err)
	require.NoError(t, m.SetAdminFingerprint("fp-secret"))

	raw, err := os.ReadFile(filepath.Join(dir, memoryFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "fp-secret")

	var doc memoryDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Len(t, strings.Split(doc.Encrypted, ":"), 3, "sealed format is iv:tag:ciphertext")
}

func TestLegacyMemoryFileMigration(t *testing.T) {
	dir := t.TempDir()

	key, err := resolveKey(dir)
	require.NoError(t, err)
	legacy := legacyDoc{
		AdminFingerprint: "fp-old",
		ClientNames:      map[string]string{"fp-1": "bob"},
		BSLMatches:       map[string]map[string]string{"fp-1": {"old.mkv": "server.mkv"}},
	}
	raw, err := json.Marshal(legacy)
	require.NoError(t, err)
	sealed, err := seal(key, raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, memoryFileName), []byte(sealed), 0o600))

	m, err := OpenMemory(dir)
	require.NoError(t, err)
	assert.Equal(t, "fp-old", m.AdminFingerprint())
	name, _ := m.ClientName("fp-1")
	assert.Equal(t, "bob", name)
	assert.Equal(t, map[string]string{"old.mkv": "server.mkv"}, m.BSLMatches("fp-1"))

	// The file was rewritten in the split format.
	migrated, err := os.ReadFile(filepath.Join(dir, memoryFileName))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(string(migrated)), "{"))
}

func TestSealOpenRejectsTampering(t *testing.T) {
	key := make([]byte, 32)
	sealed, err := seal(key, []byte(`{"x":1}`))
	require.NoError(t, err)

	plain, err := open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(plain))

	_, err = open(key, "nonsense")
	assert.ErrorIs(t, err, ErrBadCiphertext)

	flipped := []byte(sealed)
	last := len(flipped) - 1
	if flipped[last] == '0' {
		flipped[last] = '1'
	} else {
		flipped[last] = '0'
	}
	_, err = open(key, string(flipped))
	assert.ErrorIs(t, err, ErrBadCiphertext)
}

func TestKeyFromEnvIsDeterministic(t *testing.T) {
	t.Setenv(KeyEnvVar, "correct horse battery staple")
	k1, err := resolveKey(t.TempDir())
	require.NoError(t, err)
	k2, err := resolveKey(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}
