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
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/roomcast/roomcast/internal/logging"
)

// StaleManifestAge is how long a manifest may reference a missing source
// file before its sidecars are deleted.
const StaleManifestAge = 7 * 24 * time.Hour

const manifestDirName = ".manifests"

// ExternalTrack is one sidecar track extracted from a media file.
type ExternalTrack struct {
	Type     string `json:"type"` // "audio" or "subtitle"
	Language string `json:"lang,omitempty"`
	Title    string `json:"title,omitempty"`
	Path     string `json:"path"` // on-disk sidecar file
	URL      string `json:"url"`  // client-facing fetch path
}

// Manifest records the sidecar tracks of one media file plus the last time
// the source file was seen on disk.
type Manifest struct {
	LastSeen       time.Time       `json:"lastSeen"`
	ExternalTracks []ExternalTrack `json:"externalTracks"`
}

// ManifestStore persists one manifest per media file under
// mediaDir/.manifests.
type ManifestStore struct {
	mu       sync.Mutex
	mediaDir string
	dir      string
}

// NewManifestStore creates the manifest directory under mediaDir.
func NewManifestStore(mediaDir string) (*ManifestStore, error) {
	dir := filepath.Join(mediaDir, manifestDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	return &ManifestStore{mediaDir: mediaDir, dir: dir}, nil
}

func (s *ManifestStore) path(filename string) string {
	return filepath.Join(s.dir, filename+".json")
}

// Load returns the manifest for a media file, or an empty manifest when
// none exists.
func (s *ManifestStore) Load(filename string) (Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(filename)
}

func (s *ManifestStore) loadLocked(filename string) (Manifest, error) {
	raw, err := os.ReadFile(s.path(filename))
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, nil
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest for %s: %w", filename, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest for %s: %w", filename, err)
	}
	return m, nil
}

// Save writes the manifest for a media file, stamping LastSeen.
func (s *ManifestStore) Save(filename string, m Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.LastSeen = time.Now().UTC()
	return s.saveLocked(filename, m)
}

func (s *ManifestStore) saveLocked(filename string, m Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(s.path(filename), raw, 0o644)
}

// AppendTracks adds sidecar tracks to a media file's manifest.
func (s *ManifestStore) AppendTracks(filename string, tracks []ExternalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.loadLocked(filename)
	if err != nil {
		return err
	}
	m.ExternalTracks = append(m.ExternalTracks, tracks...)
	m.LastSeen = time.Now().UTC()
	return s.saveLocked(filename, m)
}

// All returns every manifest keyed by media filename.
func (s *ManifestStore) All() (map[string]Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Manifest)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		filename := strings.TrimSuffix(e.Name(), ".json")
		m, err := s.loadLocked(filename)
		if err != nil {
			logging.Warn().Err(err).Str("file", filename).Msg("skipping unreadable manifest")
			continue
		}
		out[filename] = m
	}
	return out, nil
}

// SweepStale walks every manifest once. Manifests whose source file exists
// get a fresh LastSeen; manifests whose source has been missing longer than
// StaleManifestAge lose their sidecar files and are deleted.
func (s *ManifestStore) SweepStale(now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		filename := strings.TrimSuffix(e.Name(), ".json")
		m, err := s.loadLocked(filename)
		if err != nil {
			continue
		}

		if _, err := os.Stat(filepath.Join(s.mediaDir, filename)); err == nil {
			m.LastSeen = now
			if err := s.saveLocked(filename, m); err != nil {
				logging.Warn().Err(err).Str("file", filename).Msg("failed to refresh manifest")
			}
			continue
		}

		if now.Sub(m.LastSeen) <= StaleManifestAge {
			continue
		}
		for _, tr := range m.ExternalTracks {
			if err := os.Remove(tr.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.Warn().Err(err).Str("path", tr.Path).Msg("failed to delete stale sidecar")
			}
		}
		if err := os.Remove(s.path(filename)); err != nil {
			logging.Warn().Err(err).Str("file", filename).Msg("failed to delete stale manifest")
		} else {
			logging.Info().
				Str("file", filename).
				Int("sidecars", len(m.ExternalTracks)).
				Msg("deleted stale manifest")
		}
	}
	return nil
}

// OrphanSidecars returns sidecar files in the manifest directory's sidecar
// store that no manifest references.
func (s *ManifestStore) OrphanSidecars() ([]string, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]bool)
	for _, m := range all {
		for _, tr := range m.ExternalTracks {
			referenced[filepath.Clean(tr.Path)] = true
		}
	}

	var orphans []string
	err = filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, ".json") {
			return err
		}
		if !referenced[filepath.Clean(path)] {
			orphans = append(orphans, path)
		}
		return nil
	})
	return orphans, err
}
