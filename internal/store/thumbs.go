// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultThumbnailWidth keeps the un-tagged legacy cache filename so
// thumbnails generated by older versions stay valid.
const DefaultThumbnailWidth = 720

// ThumbCache is the filesystem-backed thumbnail cache. It lives in the OS
// temp directory, which the OS clears on reboot; no locking is needed
// beyond the atomic rename performed by the generator.
type ThumbCache struct {
	dir string
}

// NewThumbCache creates the cache directory.
func NewThumbCache() (*ThumbCache, error) {
	dir := filepath.Join(os.TempDir(), "roomcast-thumbs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create thumbnail cache dir: %w", err)
	}
	return &ThumbCache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *ThumbCache) Dir() string { return c.dir }

// Path returns the cache path for (source, width). Width 720 keeps the
// plain legacy filename.
func (c *ThumbCache) Path(sourceFilename string, width int) string {
	base := strings.TrimSuffix(sourceFilename, filepath.Ext(sourceFilename))
	if width == DefaultThumbnailWidth {
		return filepath.Join(c.dir, base+".jpg")
	}
	return filepath.Join(c.dir, fmt.Sprintf("%s_w%d.jpg", base, width))
}

// Has reports whether a cached thumbnail exists for (source, width).
func (c *ThumbCache) Has(sourceFilename string, width int) bool {
	_, err := os.Stat(c.Path(sourceFilename, width))
	return err == nil
}
