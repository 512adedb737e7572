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

	"github.com/roomcast/roomcast/internal/store"
)

// Thumbnailer renders one frame per media file into the thumbnail cache.
// Generation never holds a room lock; concurrent requests for the same key
// at worst render twice, the atomic rename keeps the cache consistent.
type Thumbnailer struct {
	mediaDir string
	cache    *store.ThumbCache
}

// NewThumbnailer creates a thumbnailer against the cache.
func NewThumbnailer(mediaDir string, cache *store.ThumbCache) *Thumbnailer {
	return &Thumbnailer{mediaDir: mediaDir, cache: cache}
}

// Generate returns the cache path for (filename, width), rendering the
// thumbnail if it is not cached yet.
func (t *Thumbnailer) Generate(ctx context.Context, filename string, width int) (string, error) {
	if width <= 0 {
		width = store.DefaultThumbnailWidth
	}
	target := t.cache.Path(filename, width)
	if t.cache.Has(filename, width) {
		return target, nil
	}

	input := filepath.Join(t.mediaDir, filename)
	if _, err := os.Stat(input); err != nil {
		return "", fmt.Errorf("source file: %w", err)
	}

	tmp, err := os.CreateTemp(t.cache.Dir(), ".thumb-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-v", "error",
		"-ss", "10",
		"-i", input,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", width),
		"-c:v", "mjpeg",
		"-f", "image2",
		"-y", tmpPath,
	)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg thumbnail: %w", err)
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return "", err
	}
	return target, nil
}
