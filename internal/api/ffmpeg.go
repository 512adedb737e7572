// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/media"
	"github.com/roomcast/roomcast/internal/validation"
)

// toolsAuthReq is shared by every media tool request: the password rides
// along on each call rather than in a session.
type toolsAuthReq struct {
	Password string `json:"password"`
}

type runPresetReq struct {
	Password string        `json:"password"`
	Type     media.JobType `json:"type"`
	Filename string        `json:"filename"`
	Options  media.Options `json:"options"`
}

type cancelJobReq struct {
	Password string `json:"password"`
	JobID    string `json:"jobId"`
}

// checkToolsAccess decodes a request body into v and verifies the tools
// password it carries. A false return means the response is already
// written.
func (rt *Router) checkToolsAccess(w http.ResponseWriter, r *http.Request, v any, password func() string) bool {
	if !rt.cfg.FFmpegToolsEnabled() {
		writeError(w, http.StatusServiceUnavailable, "media tools are disabled")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if !media.CheckToolsPassword(rt.cfg.Media.FFmpegToolsPassword, password()) {
		writeError(w, http.StatusForbidden, "invalid password")
		return false
	}
	return true
}

func (rt *Router) handleToolsAuth(w http.ResponseWriter, r *http.Request) {
	var req toolsAuthReq
	if !rt.checkToolsAccess(w, r, &req, func() string { return req.Password }) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (rt *Router) handleRunPreset(w http.ResponseWriter, r *http.Request) {
	var req runPresetReq
	if !rt.checkToolsAccess(w, r, &req, func() string { return req.Password }) {
		return
	}

	switch req.Type {
	case media.JobRemux, media.JobReencode, media.JobExtract:
	default:
		writeError(w, http.StatusBadRequest, "unknown job type")
		return
	}
	if !validation.ValidFilename(req.Filename) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	job, err := rt.queue.Enqueue(req.Type, req.Filename, req.Options)
	if err != nil {
		if errors.Is(err, media.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, "job queue full")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not queue job")
		return
	}

	logging.Info().
		Str("job", job.ID).
		Str("type", string(job.Type)).
		Str("file", job.Filename).
		Msg("media job accepted")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "jobId": job.ID})
}

func (rt *Router) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	var req cancelJobReq
	if !rt.checkToolsAccess(w, r, &req, func() string { return req.Password }) {
		return
	}
	if !rt.queue.Cancel(req.JobID) {
		writeError(w, http.StatusNotFound, "job not found or already finished")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (rt *Router) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": rt.queue.Jobs()})
}

func (rt *Router) handleEncoders(w http.ResponseWriter, r *http.Request) {
	encoders, err := media.ListEncoders(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "ffmpeg not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"encoders": encoders})
}
