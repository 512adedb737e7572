// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/roomcast/roomcast/internal/logging"
)

// writeJSON renders one response body. Encoding failures are logged; the
// status line is already on the wire by then.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError renders a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
