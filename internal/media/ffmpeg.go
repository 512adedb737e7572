// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package media

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/store"
)

// FFmpegRunner executes remux, re-encode and extract jobs with the ffmpeg
// binary.
type FFmpegRunner struct {
	mediaDir  string
	manifests *store.ManifestStore
}

// NewFFmpegRunner creates a runner working against mediaDir.
func NewFFmpegRunner(mediaDir string, manifests *store.ManifestStore) *FFmpegRunner {
	return &FFmpegRunner{mediaDir: mediaDir, manifests: manifests}
}

// Run implements Runner.
func (r *FFmpegRunner) Run(ctx context.Context, jobType JobType, filename string, opts Options, progress func(int)) (*Result, error) {
	input := filepath.Join(r.mediaDir, filename)
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("source file: %w", err)
	}

	switch jobType {
	case JobRemux:
		return r.remux(ctx, input, filename, opts, progress)
	case JobReencode:
		return r.reencode(ctx, input, filename, opts, progress)
	case JobExtract:
		return r.extract(ctx, input, filename, opts, progress)
	}
	return nil, fmt.Errorf("unknown job type %q", jobType)
}

func (r *FFmpegRunner) remux(ctx context.Context, input, filename string, opts Options, progress func(int)) (*Result, error) {
	container := opts.Container
	if container == "" {
		container = "mp4"
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	output := filepath.Join(r.mediaDir, base+"_remux."+container)

	progress(10)
	err := runFFmpeg(ctx, "-i", input, "-map", "0", "-c", "copy", "-y", output)
	if err != nil {
		return nil, err
	}
	progress(100)
	return &Result{OutputPath: output}, nil
}

func (r *FFmpegRunner) reencode(ctx context.Context, input, filename string, opts Options, progress func(int)) (*Result, error) {
	codec := opts.Codec
	if codec == "" {
		codec = "libx264"
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	output := filepath.Join(r.mediaDir, base+"_"+codec+".mp4")

	args := []string{"-i", input, "-c:v", codec, "-c:a", "aac"}
	if opts.Bitrate != "" {
		args = append(args, "-b:v", opts.Bitrate)
	}
	if opts.Scale > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:%d", opts.Scale))
	}
	args = append(args, "-y", output)

	progress(5)
	if err := runFFmpeg(ctx, args...); err != nil {
		return nil, err
	}
	progress(100)
	return &Result{OutputPath: output}, nil
}

// extract writes one sidecar per matching stream and records them in the
// file's manifest. Subtitle sidecars are converted to VTT and cleaned of
// duplicate cues.
func (r *FFmpegRunner) extract(ctx context.Context, input, filename string, opts Options, progress func(int)) (*Result, error) {
	trackType := opts.TrackType
	if trackType == "" {
		trackType = "subtitle"
	}

	streams, err := probeStreamsOfType(ctx, input, trackType)
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("no %s streams in %s", trackType, filename)
	}

	sidecarDir := filepath.Join(r.mediaDir, ".manifests")
	var tracks []store.ExternalTrack
	for i, s := range streams {
		var out string
		var args []string
		if trackType == "subtitle" {
			out = filepath.Join(sidecarDir, fmt.Sprintf("%s.%d.vtt", filename, s.index))
			args = []string{"-i", input, "-map", fmt.Sprintf("0:%d", s.index), "-y", out}
		} else {
			out = filepath.Join(sidecarDir, fmt.Sprintf("%s.%d.m4a", filename, s.index))
			args = []string{"-i", input, "-map", fmt.Sprintf("0:%d", s.index), "-c:a", "aac", "-y", out}
		}
		if err := runFFmpeg(ctx, args...); err != nil {
			return nil, err
		}
		if trackType == "subtitle" {
			if err := dedupeVTT(out); err != nil {
				logging.Warn().Err(err).Str("path", out).Msg("vtt cleanup failed")
			}
		}

		tracks = append(tracks, store.ExternalTrack{
			Type:     trackType,
			Language: s.language,
			Title:    s.title,
			Path:     out,
			URL:      fmt.Sprintf("/api/tracks/sidecar/%s/%d", filename, s.index),
		})
		progress((i + 1) * 100 / len(streams))
	}

	if r.manifests != nil {
		if err := r.manifests.AppendTracks(filename, tracks); err != nil {
			return nil, fmt.Errorf("record sidecars: %w", err)
		}
	}
	return &Result{Tracks: tracks}, nil
}

type probedStream struct {
	index    int
	language string
	title    string
}

func probeStreamsOfType(ctx context.Context, input, codecType string) ([]probedStream, error) {
	raw, err := runFFprobe(ctx, input)
	if err != nil {
		return nil, err
	}
	var doc ffprobeDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	var out []probedStream
	for _, s := range doc.Streams {
		if s.CodecType == codecType {
			out = append(out, probedStream{index: s.Index, language: s.Tags.Language, title: s.Tags.Title})
		}
	}
	return out, nil
}

func runFFmpeg(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", append([]string{"-v", "error"}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("ffmpeg: %s", msg)
	}
	return nil
}

// dedupeVTT removes consecutive cues whose text repeats the previous cue,
// an artefact of extracting bitmap-converted or overlapping subtitles.
func dedupeVTT(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var out []string
	var block []string
	var lastText string
	flush := func() {
		if len(block) == 0 {
			return
		}
		text := blockText(block)
		if text == "" || text != lastText {
			out = append(out, block...)
			out = append(out, "")
			lastText = text
		}
		block = nil
	}

	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	flush()

	return renameio.WriteFile(path, []byte(strings.Join(out, "\n")+"\n"), 0o644)
}

// blockText returns the cue text of one VTT block, skipping the timing
// line and headers.
func blockText(block []string) string {
	var text []string
	for _, line := range block {
		if strings.Contains(line, "-->") || strings.HasPrefix(line, "WEBVTT") {
			continue
		}
		text = append(text, strings.TrimSpace(line))
	}
	return strings.Join(text, "\n")
}

// ListEncoders returns the names of the video encoders the local ffmpeg
// build supports.
func ListEncoders(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-v", "error", "-encoders")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}

	var encoders []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		// Encoder lines look like " V....D libx264  H.264 ...".
		if len(fields) >= 2 && strings.HasPrefix(fields[0], "V") && !strings.Contains(fields[0], "=") {
			encoders = append(encoders, fields[1])
		}
	}
	return encoders, sc.Err()
}
