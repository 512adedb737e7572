// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package server assembles the subsystems into a running coordinator: the
// persistent stores, the media toolchain, the websocket hub, the protocol
// dispatcher and the HTTP surface, all under one suture supervision tree.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/roomcast/roomcast/internal/api"
	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/chat"
	"github.com/roomcast/roomcast/internal/clock"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/media"
	"github.com/roomcast/roomcast/internal/metrics"
	"github.com/roomcast/roomcast/internal/protocol"
	"github.com/roomcast/roomcast/internal/room"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/store"
)

// Supervision parameters, shared by the root and its children.
const (
	failureThreshold = 5.0
	failureDecay     = 30.0
	failureBackoff   = 15 * time.Second
	shutdownTimeout  = 10 * time.Second

	// trackRefreshTimeout bounds the ffprobe run after a media job lands
	// new sidecars.
	trackRefreshTimeout = 15 * time.Second
)

// Server owns every subsystem for one coordinator process.
type Server struct {
	cfg *config.Config

	memory    *store.Memory
	admins    *store.AdminTable
	logs      *store.LogSink
	manifests *store.ManifestStore

	adapter *media.FFprobe
	queue   *media.Queue

	hub      *session.Hub
	registry *room.Registry
	disp     *protocol.Dispatcher

	sup *suture.Supervisor
}

// New constructs the full subsystem graph from the configuration. Nothing
// is listening yet; Run starts the supervision tree.
func New(cfg *config.Config) (*Server, error) {
	memory, err := store.OpenMemory(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	admins, err := store.OpenAdminTable(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open admin table: %w", err)
	}
	logs, err := store.NewLogSink(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}
	manifests, err := store.NewManifestStore(cfg.Media.Dir)
	if err != nil {
		return nil, fmt.Errorf("open manifest store: %w", err)
	}
	thumbCache, err := store.NewThumbCache()
	if err != nil {
		return nil, fmt.Errorf("open thumbnail cache: %w", err)
	}

	adapter := media.NewFFprobe(cfg.Media.Dir, manifests)
	runner := media.NewFFmpegRunner(cfg.Media.Dir, manifests)
	queue := media.NewQueue(runner)
	thumbs := media.NewThumbnailer(cfg.Media.Dir, thumbCache)

	hub := session.NewHub(session.NewAddrLimiter())
	registry := room.NewRegistry(admins)
	authority := auth.NewAuthority(memory, cfg.Admin.FingerprintLock)
	relay := chat.NewRelay(cfg.Chat.Enabled, memory)
	csrf := auth.NewCSRFStore(cfg.Server.UseHTTPS)

	disp := protocol.New(protocol.Deps{
		Config:    cfg,
		Hub:       hub,
		Registry:  registry,
		Authority: authority,
		Memory:    memory,
		Logs:      logs,
		Media:     adapter,
		Chat:      relay,
	})
	disp.Attach()

	router := api.NewRouter(api.Deps{
		Config:    cfg,
		Hub:       hub,
		Registry:  registry,
		CSRF:      csrf,
		Adapter:   adapter,
		Queue:     queue,
		Thumbs:    thumbs,
		Manifests: manifests,
		StaticDir: cfg.Server.StaticDir,
	})

	s := &Server{
		cfg:       cfg,
		memory:    memory,
		admins:    admins,
		logs:      logs,
		manifests: manifests,
		adapter:   adapter,
		queue:     queue,
		hub:       hub,
		registry:  registry,
		disp:      disp,
	}

	// Finished jobs invalidate the probe cache and push the refreshed
	// track lists into every room that references the file.
	queue.SetTrackHook(s.refreshTracks)

	s.sup = buildTree(s, router.Handler())
	metrics.Rooms.Set(float64(registry.Count()))
	return s, nil
}

// buildTree wires the supervised services: the playback clock and the media
// job queue in a core layer, the HTTP listener in its own layer so a
// listener failure never restarts the clock.
func buildTree(s *Server, handler http.Handler) *suture.Supervisor {
	spec := suture.Spec{
		EventHook:        supervisionHook,
		FailureThreshold: failureThreshold,
		FailureDecay:     failureDecay,
		FailureBackoff:   failureBackoff,
		Timeout:          shutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: failureThreshold,
		FailureDecay:     failureDecay,
		FailureBackoff:   failureBackoff,
		Timeout:          shutdownTimeout,
	}

	root := suture.New("roomcast", spec)
	core := suture.New("core", childSpec)
	web := suture.New("web", childSpec)

	core.Add(clock.NewTicker(s.registry, clock.DefaultTickInterval))
	core.Add(s.queue)
	web.Add(&httpService{
		addr:     fmt.Sprintf(":%d", s.cfg.Server.Port),
		handler:  handler,
		certFile: s.cfg.Server.SSLCertFile,
		keyFile:  s.cfg.Server.SSLKeyFile,
		useTLS:   s.cfg.Server.UseHTTPS,
	})

	root.Add(core)
	root.Add(web)
	return root
}

// supervisionHook routes suture lifecycle events into the structured log.
func supervisionHook(e suture.Event) {
	switch e.Type() {
	case suture.EventTypeServicePanic, suture.EventTypeStopTimeout, suture.EventTypeBackoff:
		logging.Warn().Str("event", e.String()).Msg("supervision event")
	default:
		logging.Debug().Str("event", e.String()).Msg("supervision event")
	}
}

// Run blocks serving until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.manifests.SweepStale(time.Now()); err != nil {
		logging.Warn().Err(err).Msg("stale sidecar sweep failed")
	}

	logging.Info().
		Int("port", s.cfg.Server.Port).
		Bool("https", s.cfg.Server.UseHTTPS).
		Bool("server_mode", s.cfg.Server.ServerMode).
		Msg("roomcast starting")

	err := s.sup.Serve(ctx)
	s.hub.CloseAll()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// refreshTracks re-probes a file after a media job rewrote its sidecar
// manifest and fans the merged track list out to every room playing it.
func (s *Server) refreshTracks(filename string, _ []store.ExternalTrack) {
	s.adapter.InvalidateTracks(filename)

	ctx, cancel := context.WithTimeout(context.Background(), trackRefreshTimeout)
	defer cancel()
	tracks, err := s.adapter.TracksFor(ctx, filename)
	if err != nil {
		logging.Warn().Err(err).Str("file", filename).Msg("track refresh after media job failed")
		return
	}

	for _, r := range s.registry.All() {
		if r.UpdateItemTracks(filename, tracks, s.emitter(r.Code)) {
			logging.Info().Str("room", r.Code).Str("file", filename).Msg("playlist tracks refreshed")
		}
	}
}

func (s *Server) emitter(roomCode string) room.Emit {
	return func(event string, data any) {
		metrics.Broadcasts.WithLabelValues(event).Inc()
		s.hub.BroadcastRoom(roomCode, event, data)
	}
}
