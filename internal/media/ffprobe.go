// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/playlist"
	"github.com/roomcast/roomcast/internal/store"
)

// listCacheTTL bounds how stale the library listing and per-file probes may
// be.
const listCacheTTL = 20 * time.Second

// probeFunc runs ffprobe and returns its JSON output. Replaceable in tests.
type probeFunc func(ctx context.Context, path string) ([]byte, error)

// FFprobe is the production Adapter: directory listing plus ffprobe stream
// enumeration, merged with sidecar manifests.
type FFprobe struct {
	mediaDir  string
	manifests *store.ManifestStore
	probe     probeFunc

	mu       sync.Mutex
	files    []File
	filesAt  time.Time
	tracks   map[string]playlist.TrackSet
	tracksAt map[string]time.Time
}

// NewFFprobe creates the adapter for mediaDir.
func NewFFprobe(mediaDir string, manifests *store.ManifestStore) *FFprobe {
	return &FFprobe{
		mediaDir:  mediaDir,
		manifests: manifests,
		probe:     runFFprobe,
		tracks:    make(map[string]playlist.TrackSet),
		tracksAt:  make(map[string]time.Time),
	}
}

func runFFprobe(ctx context.Context, path string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// ListMedia enumerates playable files in the media directory, cached for
// listCacheTTL.
func (f *FFprobe) ListMedia(ctx context.Context) ([]File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files != nil && time.Since(f.filesAt) < listCacheTTL {
		return f.files, nil
	}

	entries, err := os.ReadDir(f.mediaDir)
	if err != nil {
		return nil, fmt.Errorf("list media dir: %w", err)
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !playlist.PlayableExt(e.Name()) {
			continue
		}
		files = append(files, File{
			Filename: e.Name(),
			Kind:     playlist.KindForFilename(e.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	f.files = files
	f.filesAt = time.Now()
	return files, nil
}

// ffprobeDoc mirrors the parts of ffprobe's -show_streams output we read.
type ffprobeDoc struct {
	Streams []struct {
		Index       int    `json:"index"`
		CodecType   string `json:"codec_type"`
		CodecName   string `json:"codec_name"`
		Disposition struct {
			Default int `json:"default"`
		} `json:"disposition"`
		Tags struct {
			Language string `json:"language"`
			Title    string `json:"title"`
		} `json:"tags"`
	} `json:"streams"`
}

// TracksFor probes one file's container streams and merges in manifest
// sidecars at indices >= playlist.SidecarIndexBase. Probe failure yields
// empty container tracks, not an error: a broken file still gets its
// sidecars.
func (f *FFprobe) TracksFor(ctx context.Context, filename string) (playlist.TrackSet, error) {
	f.mu.Lock()
	if at, ok := f.tracksAt[filename]; ok && time.Since(at) < listCacheTTL {
		set := f.tracks[filename]
		f.mu.Unlock()
		return set, nil
	}
	f.mu.Unlock()

	var set playlist.TrackSet
	raw, err := f.probe(ctx, filepath.Join(f.mediaDir, filename))
	if err != nil {
		logging.Warn().Err(err).Str("file", filename).Msg("ffprobe failed, tracks limited to sidecars")
	} else {
		var doc ffprobeDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return playlist.TrackSet{}, fmt.Errorf("parse ffprobe output for %s: %w", filename, err)
		}
		audioN, subN := 0, 0
		for _, s := range doc.Streams {
			tr := playlist.Track{
				Codec:    s.CodecName,
				Language: s.Tags.Language,
				Title:    s.Tags.Title,
				Default:  s.Disposition.Default == 1,
			}
			switch s.CodecType {
			case "audio":
				tr.Index = audioN
				audioN++
				set.Audio = append(set.Audio, tr)
			case "subtitle":
				tr.Index = subN
				subN++
				set.Subtitles = append(set.Subtitles, tr)
			}
		}
	}

	if f.manifests != nil {
		manifest, err := f.manifests.Load(filename)
		if err != nil {
			logging.Warn().Err(err).Str("file", filename).Msg("failed to load track manifest")
		} else {
			for i, ext := range manifest.ExternalTracks {
				tr := playlist.Track{
					Index:    playlist.SidecarIndexBase + i,
					Language: ext.Language,
					Title:    ext.Title,
					External: true,
					URL:      ext.URL,
				}
				if ext.Type == "audio" {
					set.Audio = append(set.Audio, tr)
				} else {
					set.Subtitles = append(set.Subtitles, tr)
				}
			}
		}
	}

	f.mu.Lock()
	f.tracks[filename] = set
	f.tracksAt[filename] = time.Now()
	f.mu.Unlock()
	return set, nil
}

// FileSize stats one library file.
func (f *FFprobe) FileSize(filename string) (int64, bool) {
	info, err := os.Stat(filepath.Join(f.mediaDir, filename))
	if err != nil {
		return 0, false
	}
	return info.Size(), true
}

// InvalidateTracks drops the cached probe for a file, after a job rewrote
// its manifest.
func (f *FFprobe) InvalidateTracks(filename string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tracks, filename)
	delete(f.tracksAt, filename)
}
