// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package api provides the HTTP surface: pages, the REST endpoints, the
// websocket upgrade and the Prometheus scrape target, routed with chi.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/media"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/store"
)

// Rate limits for the REST surface. The websocket pipeline has its own
// per-address limiter.
const (
	apiRequestsPerMinute   = 300
	thumbRequestsPerMinute = 50
)

// Router builds the HTTP handler tree.
type Router struct {
	cfg       *config.Config
	hub       *session.Hub
	registry  *room.Registry
	csrf      *auth.CSRFStore
	adapter   media.Adapter
	queue     *media.Queue
	thumbs    *media.Thumbnailer
	manifests *store.ManifestStore

	// staticDir holds the client bundle; empty disables page serving.
	staticDir string
}

// Deps collects everything the HTTP surface serves.
type Deps struct {
	Config    *config.Config
	Hub       *session.Hub
	Registry  *room.Registry
	CSRF      *auth.CSRFStore
	Adapter   media.Adapter
	Queue     *media.Queue
	Thumbs    *media.Thumbnailer
	Manifests *store.ManifestStore
	StaticDir string
}

// NewRouter creates a router over the given subsystems.
func NewRouter(d Deps) *Router {
	return &Router{
		cfg:       d.Config,
		hub:       d.Hub,
		registry:  d.Registry,
		csrf:      d.CSRF,
		adapter:   d.Adapter,
		queue:     d.Queue,
		thumbs:    d.Thumbs,
		manifests: d.Manifests,
		staticDir: d.StaticDir,
	}
}

// Handler assembles the route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", auth.CSRFHeaderName},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Pages.
	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware("pages"))
		r.Get("/", rt.handleIndex)
		r.Get("/admin", rt.handleAdminPage)
		r.Get("/admin/{roomCode}", rt.handleAdminPage)
		r.Get("/watch/{roomCode}", rt.handleWatchPage)
	})

	// REST API.
	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(apiRequestsPerMinute, time.Minute))

		r.Group(func(r chi.Router) {
			r.Use(metrics.Middleware("api"))
			r.Get("/csrf-token", rt.handleCSRFToken)
			r.Get("/server-mode", rt.handleServerMode)
			r.Get("/files", rt.handleFiles)
			r.Get("/rooms", rt.handleRooms)
			r.Get("/rooms/{roomCode}", rt.handleRoom)
			r.Get("/tracks/orphans", rt.handleOrphanSidecars)
			r.Get("/tracks/sidecar/{filename}/{index}", rt.handleSidecar)
			r.Get("/tracks/{filename}", rt.handleTracks)
		})

		// Thumbnails spawn ffmpeg on a cache miss, so they get their own
		// stricter limit.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(thumbRequestsPerMinute, time.Minute))
			r.Use(metrics.Middleware("thumbnail"))
			r.Get("/thumbnail/{filename}", rt.handleThumbnail)
		})

		// Media tools: password gated per request, CSRF gated on mutation.
		r.Route("/ffmpeg", func(r chi.Router) {
			r.Use(metrics.Middleware("ffmpeg"))
			r.Get("/jobs", rt.handleJobs)
			r.Get("/encoders", rt.handleEncoders)

			r.Group(func(r chi.Router) {
				r.Use(rt.csrf.Middleware)
				r.Post("/auth", rt.handleToolsAuth)
				r.Post("/run-preset", rt.handleRunPreset)
				r.Post("/cancel", rt.handleCancelJob)
			})
		})
	})

	// Media file streaming for the player.
	r.Group(func(r chi.Router) {
		r.Use(metrics.Middleware("media"))
		r.Get("/media/{filename}", rt.handleMediaFile)
	})

	// Websocket upgrade and observability.
	r.Get("/ws", rt.hub.ServeWS)
	r.Handle("/metrics", metrics.Handler())

	return r
}
