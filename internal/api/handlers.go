// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"encoding/base64"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/validation"
)

func (rt *Router) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	sessionID := rt.csrf.EnsureSession(w, r)
	token, err := rt.csrf.TokenFor(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (rt *Router) handleServerMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"serverMode":       rt.cfg.Server.ServerMode,
		"chatEnabled":      rt.cfg.Chat.Enabled,
		"subtitleRenderer": rt.cfg.EffectiveSubtitleRenderer(),
	})
}

func (rt *Router) handleFiles(w http.ResponseWriter, r *http.Request) {
	files, err := rt.adapter.ListMedia(r.Context())
	if err != nil {
		logging.Error().Err(err).Msg("media listing failed")
		writeError(w, http.StatusInternalServerError, "could not list media")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (rt *Router) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": rt.registry.ListPublic()})
}

func (rt *Router) handleRoom(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "roomCode")
	rm, ok := rt.registry.Find(code)
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":      rm.Code,
		"name":      rm.Name,
		"private":   rm.Private,
		"viewers":   rm.ViewerCount(),
		"createdAt": rm.CreatedAt,
	})
}

func (rt *Router) handleTracks(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !validation.ValidFilename(filename) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	tracks, err := rt.adapter.TracksFor(r.Context(), filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "could not probe tracks")
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (rt *Router) handleOrphanSidecars(w http.ResponseWriter, r *http.Request) {
	orphans, err := rt.manifests.OrphanSidecars()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not scan sidecars")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orphans": orphans})
}

// handleSidecar streams one extracted track. The URL was handed out in a
// playlist-update; the manifest is the source of truth for which sidecars
// exist, so nothing outside it is ever served.
func (rt *Router) handleSidecar(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !validation.ValidFilename(filename) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid track index")
		return
	}

	manifest, err := rt.manifests.Load(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "no sidecars for file")
		return
	}
	want := r.URL.Path
	for _, track := range manifest.ExternalTracks {
		if track.URL == want {
			http.ServeFile(w, r, track.Path)
			return
		}
	}
	writeError(w, http.StatusNotFound, "sidecar not found")
}

func (rt *Router) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !validation.ValidFilename(filename) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	width := 0
	if raw := r.URL.Query().Get("width"); raw != "" {
		width, _ = strconv.Atoi(raw)
		if width < 16 || width > 3840 {
			writeError(w, http.StatusBadRequest, "invalid width")
			return
		}
	}

	path, err := rt.thumbs.Generate(r.Context(), filename, width)
	if err != nil {
		writeError(w, http.StatusNotFound, "could not generate thumbnail")
		return
	}
	img, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not read thumbnail")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"thumbnail": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
	})
}

// handleMediaFile streams one library file, honoring range requests.
func (rt *Router) handleMediaFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if !validation.ValidFilename(filename) {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	http.ServeFile(w, r, filepath.Join(rt.cfg.Media.Dir, filename))
}

// Page handlers. The client bundle lives in staticDir; the admin page gets
// its initial state and CSRF token injected server-side when hydration is
// enabled.

const (
	indexPage = "index.html"
	adminPage = "admin.html"
	watchPage = "watch.html"

	hydrationMarker = "</head>"
)

func (rt *Router) handleIndex(w http.ResponseWriter, r *http.Request) {
	rt.servePage(w, r, indexPage)
}

func (rt *Router) handleWatchPage(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "roomCode")
	if _, ok := rt.registry.Find(code); !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	rt.servePage(w, r, watchPage)
}

func (rt *Router) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	if !rt.cfg.Server.DataHydration {
		rt.servePage(w, r, adminPage)
		return
	}

	page, err := os.ReadFile(filepath.Join(rt.staticDir, adminPage))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	sessionID := rt.csrf.EnsureSession(w, r)
	token, err := rt.csrf.TokenFor(sessionID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	state, err := json.Marshal(map[string]any{
		"serverMode": rt.cfg.Server.ServerMode,
		"roomCode":   chi.URLParam(r, "roomCode"),
		"rooms":      rt.registry.ListPublic(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not render state")
		return
	}

	injected := `<meta name="csrf-token" content="` + token + `">` +
		`<script>window.__INITIAL_STATE__=` + string(state) + `;</script>` +
		hydrationMarker
	body := strings.Replace(string(page), hydrationMarker, injected, 1)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(body)); err != nil {
		logging.Error().Err(err).Msg("failed to write admin page")
	}
}

func (rt *Router) servePage(w http.ResponseWriter, r *http.Request, name string) {
	if rt.staticDir == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, filepath.Join(rt.staticDir, name))
}
