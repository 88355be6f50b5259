// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dosehub/config.yaml",
	"/etc/dosehub/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            3001,
			Host:            "0.0.0.0",
			WSPath:          "/ws",
			Timeout:         30 * time.Second,
			ShutdownGrace:   2 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Hub: HubConfig{
			MaxConnections:    100,
			MaxMessageSize:    4 << 20, // 4MB
			HeartbeatInterval: 60 * time.Second,
			SendTimeout:       250 * time.Millisecond,
			SendBuffer:        256,
			InboundRate:       20,
			InboundBurst:      40,
		},
		Events: EventsConfig{
			Buffer: 1024,
			NATS: NATSConfig{
				Enabled:        false,
				URL:            "nats://127.0.0.1:4222",
				Subject:        "dosehub.changes",
				QueueGroup:     "dosehub",
				EmbeddedServer: false,
				EmbeddedPort:   4222,
				CloseTimeout:   10 * time.Second,
				RetryCount:     3,
				RetryInterval:  100 * time.Millisecond,
			},
			Redis: RedisConfig{
				Enabled:   false,
				Addr:      "127.0.0.1:6379",
				DB:        0,
				Stream:    "dosehub:changes",
				Group:     "dosehub",
				Consumer:  "dosehub-1",
				BatchSize: 10,
				Block:     5 * time.Second,
			},
		},
		Notifications: NotificationsConfig{
			QueueSize:       1000,
			MaxAttempts:     3,
			BaseDelay:       time.Second,
			MaxDelay:        30 * time.Second,
			Pacing:          100 * time.Millisecond,
			LogRetention:    30 * 24 * time.Hour,
			SweepInterval:   time.Hour,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_port":           "server.port",
	"http_host":           "server.host",
	"http_timeout":        "server.timeout",
	"ws_path":             "server.ws_path",
	"shutdown_grace":      "server.shutdown_grace",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Hub mappings
	"ws_max_connections":    "hub.max_connections",
	"ws_max_message_size":   "hub.max_message_size",
	"ws_heartbeat_interval": "hub.heartbeat_interval",
	"ws_send_timeout":       "hub.send_timeout",
	"ws_send_buffer":        "hub.send_buffer",
	"ws_inbound_rate":       "hub.inbound_rate",
	"ws_inbound_burst":      "hub.inbound_burst",

	// Event source mappings
	"events_buffer":       "events.buffer",
	"nats_enabled":        "events.nats.enabled",
	"nats_url":            "events.nats.url",
	"nats_subject":        "events.nats.subject",
	"nats_queue_group":    "events.nats.queue_group",
	"nats_embedded":       "events.nats.embedded_server",
	"nats_embedded_port":  "events.nats.embedded_port",
	"nats_close_timeout":  "events.nats.close_timeout",
	"nats_retry_count":    "events.nats.retry_count",
	"nats_retry_interval": "events.nats.retry_interval",
	"redis_enabled":       "events.redis.enabled",
	"redis_addr":          "events.redis.addr",
	"redis_password":      "events.redis.password",
	"redis_db":            "events.redis.db",
	"redis_stream":        "events.redis.stream",
	"redis_group":         "events.redis.group",
	"redis_consumer":      "events.redis.consumer",
	"redis_batch_size":    "events.redis.batch_size",
	"redis_block":         "events.redis.block",

	// Notification mappings
	"notify_queue_size":       "notifications.queue_size",
	"notify_max_attempts":     "notifications.max_attempts",
	"notify_base_delay":       "notifications.base_delay",
	"notify_max_delay":        "notifications.max_delay",
	"notify_pacing":           "notifications.pacing",
	"notify_log_retention":    "notifications.log_retention",
	"notify_sweep_interval":   "notifications.sweep_interval",
	"notify_breaker_failures": "notifications.breaker_failures",
	"notify_breaker_timeout":  "notifications.breaker_timeout",

	// Auth mappings
	"jwt_secret": "auth.jwt_secret",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - WS_MAX_CONNECTIONS -> hub.max_connections
//   - NOTIFY_MAX_ATTEMPTS -> notifications.max_attempts
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// never leak into the configuration.
	return ""
}
