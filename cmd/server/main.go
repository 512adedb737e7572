// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

// Package main is the entry point for the Roomcast coordinator.
//
// Roomcast keeps any number of viewers in sync while they watch the same
// media: playback position is anchored to the wall clock, every control
// action is rebroadcast to the room, and viewers with local copies of the
// media can play them in lockstep via BSL matching.
//
// The server initializes in the following order:
//
//  1. Configuration: layered from defaults, an optional KEY=VALUE file and
//     environment variables (koanf)
//  2. Logging: structured zerolog output per LOG_LEVEL / LOG_FORMAT
//  3. Stores: encrypted memory file, room admin table, event logs and
//     sidecar manifests under DATA_DIR / MEDIA_DIR
//  4. Subsystems: websocket hub, room registry, media toolchain, chat
//     relay and the protocol dispatcher
//  5. Supervision: the playback clock, the media job queue and the HTTP
//     listener run under a suture tree with restart backoff
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger a graceful shutdown: the listener stops
// accepting, in-flight requests get 10 s to finish, then every websocket
// connection is closed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/logging"
	"github.com/roomcast/roomcast/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "roomcast:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)
	logging.Info().Msg("roomcast stopped")
	return err
}
