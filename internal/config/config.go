// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// config file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting via environment variables
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Hub           HubConfig           `koanf:"hub"`
	Events        EventsConfig        `koanf:"events"`
	Notifications NotificationsConfig `koanf:"notifications"`
	Auth          AuthConfig          `koanf:"auth"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	Host              string        `koanf:"host"`
	WSPath            string        `koanf:"ws_path" validate:"required,startswith=/"`
	Timeout           time.Duration `koanf:"timeout"`
	ShutdownGrace     time.Duration `koanf:"shutdown_grace" validate:"min=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// HubConfig holds connection registry, transport and heartbeat settings.
type HubConfig struct {
	// MaxConnections bounds the registry. Connections beyond it are refused.
	MaxConnections int `koanf:"max_connections" validate:"min=1"`

	// MaxMessageSize is the largest inbound frame accepted, in bytes.
	MaxMessageSize int64 `koanf:"max_message_size" validate:"min=1"`

	// HeartbeatInterval is the liveness scan period. A connection silent for
	// twice this interval is evicted.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`

	// SendTimeout bounds a single enqueue onto a connection's outbound queue.
	SendTimeout time.Duration `koanf:"send_timeout"`

	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int `koanf:"send_buffer" validate:"min=1"`

	// InboundRate and InboundBurst limit control messages per connection (0 disables).
	InboundRate  float64 `koanf:"inbound_rate" validate:"min=0"`
	InboundBurst int     `koanf:"inbound_burst" validate:"min=0"`
}

// EventsConfig holds the upstream event source settings.
type EventsConfig struct {
	// Buffer is the capacity of the bounded channel feeding the event router.
	Buffer int `koanf:"buffer" validate:"min=1"`

	NATS  NATSConfig  `koanf:"nats"`
	Redis RedisConfig `koanf:"redis"`
}

// NATSConfig configures the optional NATS upstream feed (requires -tags nats).
type NATSConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	Subject        string        `koanf:"subject"`
	QueueGroup     string        `koanf:"queue_group"`
	EmbeddedServer bool          `koanf:"embedded_server"`
	EmbeddedPort   int           `koanf:"embedded_port"`
	CloseTimeout   time.Duration `koanf:"close_timeout"`
	RetryCount     int           `koanf:"retry_count"`
	RetryInterval  time.Duration `koanf:"retry_interval"`
}

// RedisConfig configures the optional Redis Streams upstream feed. Entries
// carry the change notification as a JSON string in their "data" field.
type RedisConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Addr      string        `koanf:"addr"`
	Password  string        `koanf:"password"`
	DB        int           `koanf:"db" validate:"min=0"`
	Stream    string        `koanf:"stream"`
	Group     string        `koanf:"group"`
	Consumer  string        `koanf:"consumer"`
	BatchSize int64         `koanf:"batch_size" validate:"min=0"`
	Block     time.Duration `koanf:"block"`
}

// NotificationsConfig holds escalation queue and delivery log settings
type NotificationsConfig struct {
	QueueSize       int           `koanf:"queue_size" validate:"min=1"`
	MaxAttempts     int           `koanf:"max_attempts" validate:"min=1"`
	BaseDelay       time.Duration `koanf:"base_delay"`
	MaxDelay        time.Duration `koanf:"max_delay"`
	Pacing          time.Duration `koanf:"pacing" validate:"min=0"`
	LogRetention    time.Duration `koanf:"log_retention"`
	SweepInterval   time.Duration `koanf:"sweep_interval"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// AuthConfig holds settings for the AUTHENTICATE control message.
type AuthConfig struct {
	// JWTSecret switches token checking from "non-empty" to HS256 verification.
	JWTSecret string `koanf:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal panic disabled"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LivenessWindow is the silence tolerated before a connection is evicted.
func (h HubConfig) LivenessWindow() time.Duration {
	return 2 * h.HeartbeatInterval
}

// Load reads configuration using Koanf (defaults, file, environment).
func Load() (*Config, error) {
	return LoadWithKoanf()
}
