// Roomcast - Synchronized Multi-Client Media Playback Coordinator
// Copyright 2026 Roomcast contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/roomcast/roomcast

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where the KEY=VALUE config file is
// searched in order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"roomcast.env",
	"/etc/roomcast/roomcast.env",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          3000,
			UseHTTPS:      false,
			ServerMode:    false,
			DataHydration: true,
			DataDir:       "data",
			StaticDir:     "static",
		},
		Playback: PlaybackConfig{
			VolumeStep:       5,
			MaxVolume:        100,
			SkipSeconds:      5,
			SkipIntroSeconds: 87,
			VideoAutoplay:    false,
			JoinMode:         JoinModeSync,
			SubtitleRenderer: SubtitleRendererWSR,
		},
		BSL: BSLConfig{
			Mode:           BSLModeAny,
			AdvancedMatch:  true,
			MatchThreshold: 1,
		},
		Client: ClientConfig{},
		Admin:  AdminConfig{},
		Chat: ChatConfig{
			Enabled: true,
		},
		Media: MediaConfig{
			Dir: "media",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional config file and
// the environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		parser := dotenv.ParserEnv("", ".", envTransform)
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps the flat KEY names (environment variables and config file
// keys) to nested koanf paths. Unknown keys are dropped so that unrelated
// environment variables never pollute the configuration.
var envMappings = map[string]string{
	"PORT":           "server.port",
	"USE_HTTPS":      "server.use_https",
	"SSL_KEY_FILE":   "server.ssl_key_file",
	"SSL_CERT_FILE":  "server.ssl_cert_file",
	"SERVER_MODE":    "server.server_mode",
	"DATA_HYDRATION": "server.data_hydration",
	"DATA_DIR":       "server.data_dir",
	"STATIC_DIR":     "server.static_dir",

	"VOLUME_STEP":        "playback.volume_step",
	"MAX_VOLUME":         "playback.max_volume",
	"SKIP_SECONDS":       "playback.skip_seconds",
	"SKIP_INTRO_SECONDS": "playback.skip_intro_seconds",
	"VIDEO_AUTOPLAY":     "playback.video_autoplay",
	"JOIN_MODE":          "playback.join_mode",
	"SUBTITLE_RENDERER":  "playback.subtitle_renderer",

	"BSL_MODE":            "bsl.mode",
	"BSL_ADVANCED_MATCH":  "bsl.advanced_match",
	"BSL_MATCH_THRESHOLD": "bsl.match_threshold",

	"CLIENT_CONTROLS_DISABLED": "client.controls_disabled",
	"CLIENT_SYNC_DISABLED":     "client.sync_disabled",

	"ADMIN_FINGERPRINT_LOCK": "admin.fingerprint_lock",

	"CHAT_ENABLED": "chat.enabled",

	"MEDIA_DIR":             "media.dir",
	"FFMPEG_TOOLS_PASSWORD": "media.ffmpeg_tools_password",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

func envTransform(key string) string {
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
