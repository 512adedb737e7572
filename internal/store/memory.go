// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package store is the persistence layer: the encrypted memory file, the
// per-room admin table, tail-capped event logs, sidecar track manifests and
// the thumbnail cache. All writes are atomic whole-file replacements.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/roomcast/roomcast/internal/logging"
)

const memoryFileName = "memory.json"

// secrets is the plaintext carried inside the memory file's encrypted
// field. The legacy single-room admin fingerprint is the only sensitive
// datum.
type secrets struct {
	AdminFingerprint string `json:"adminFingerprint,omitempty"`
}

// memoryDoc is the on-disk shape of the memory file.
type memoryDoc struct {
	Encrypted   string                       `json:"encrypted"`
	ClientNames map[string]string            `json:"clientNames"`
	BSLMatches  map[string]map[string]string `json:"bslMatches"`
}

// legacyDoc is the plaintext of the old fully-encrypted format: the whole
// document sealed as one blob.
type legacyDoc struct {
	AdminFingerprint string                       `json:"adminFingerprint,omitempty"`
	ClientNames      map[string]string            `json:"clientNames"`
	BSLMatches       map[string]map[string]string `json:"bslMatches"`
}

// Memory is the process's durable key-value memory: persisted display names
// keyed by fingerprint, persisted BSL matches keyed by fingerprint and
// lowercased client file name, and the legacy admin fingerprint.
type Memory struct {
	mu   sync.Mutex
	path string
	key  []byte

	admin       string
	clientNames map[string]string
	bslMatches  map[string]map[string]string
}

// OpenMemory loads (or initializes) the memory file in dataDir. A legacy
// fully-encrypted file is migrated to the split format in place.
func OpenMemory(dataDir string) (*Memory, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	key, err := resolveKey(dataDir)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		path:        filepath.Join(dataDir, memoryFileName),
		key:         key,
		clientNames: make(map[string]string),
		bslMatches:  make(map[string]map[string]string),
	}

	raw, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory file: %w", err)
	}

	// Format probe: the split format is a JSON object, the legacy format is
	// one sealed blob.
	if trimmed := strings.TrimSpace(string(raw)); !strings.HasPrefix(trimmed, "{") {
		if err := m.migrateLegacy(trimmed); err != nil {
			return nil, err
		}
		return m, nil
	}

	var doc memoryDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse memory file: %w", err)
	}
	if doc.ClientNames != nil {
		m.clientNames = doc.ClientNames
	}
	if doc.BSLMatches != nil {
		m.bslMatches = doc.BSLMatches
	}
	if doc.Encrypted != "" {
		plain, err := open(m.key, doc.Encrypted)
		if err != nil {
			// A wrong key loses the admin fingerprint but not the rest.
			logging.Warn().Err(err).Msg("memory file secrets undecryptable, dropping them")
		} else {
			var sec secrets
			if err := json.Unmarshal(plain, &sec); err != nil {
				return nil, fmt.Errorf("parse memory secrets: %w", err)
			}
			m.admin = sec.AdminFingerprint
		}
	}
	return m, nil
}

// migrateLegacy decrypts an old-format file and rewrites it split.
func (m *Memory) migrateLegacy(sealed string) error {
	plain, err := open(m.key, sealed)
	if err != nil {
		return fmt.Errorf("migrate legacy memory file: %w", err)
	}
	var doc legacyDoc
	if err := json.Unmarshal(plain, &doc); err != nil {
		return fmt.Errorf("parse legacy memory file: %w", err)
	}
	m.admin = doc.AdminFingerprint
	if doc.ClientNames != nil {
		m.clientNames = doc.ClientNames
	}
	if doc.BSLMatches != nil {
		m.bslMatches = doc.BSLMatches
	}
	logging.Info().Str("path", m.path).Msg("migrated legacy memory file to split format")
	return m.persistLocked()
}

// persistLocked rewrites the whole document atomically. Callers hold m.mu.
func (m *Memory) persistLocked() error {
	sealed, err := seal(m.key, mustJSON(secrets{AdminFingerprint: m.admin}))
	if err != nil {
		return fmt.Errorf("seal memory secrets: %w", err)
	}
	doc := memoryDoc{
		Encrypted:   sealed,
		ClientNames: m.clientNames,
		BSLMatches:  m.bslMatches,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(m.path, raw, 0o600)
}

func mustJSON(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// ClientName returns the persisted display name for a fingerprint.
func (m *Memory) ClientName(fingerprint string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.clientNames[fingerprint]
	return name, ok
}

// SetClientName persists a display name for a fingerprint.
func (m *Memory) SetClientName(fingerprint, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientNames[fingerprint] = name
	return m.persistLocked()
}

// BSLMatches returns a copy of the persisted matches for a fingerprint,
// keyed by lowercased client file name.
func (m *Memory) BSLMatches(fingerprint string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.bslMatches[fingerprint]))
	for k, v := range m.bslMatches[fingerprint] {
		out[k] = v
	}
	return out
}

// SetBSLMatch persists one client-file-to-server-file pair for a
// fingerprint. The client name key is lowercased.
func (m *Memory) SetBSLMatch(fingerprint, clientFileName, serverFilename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := m.bslMatches[fingerprint]
	if byName == nil {
		byName = make(map[string]string)
		m.bslMatches[fingerprint] = byName
	}
	byName[strings.ToLower(clientFileName)] = serverFilename
	return m.persistLocked()
}

// AdminFingerprint returns the legacy single-room admin fingerprint.
func (m *Memory) AdminFingerprint() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.admin
}

// SetAdminFingerprint persists the legacy single-room admin fingerprint.
func (m *Memory) SetAdminFingerprint(fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admin = fingerprint
	return m.persistLocked()
}
