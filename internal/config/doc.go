// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

/*
Package config provides centralized configuration management for DoseHub.

Configuration is loaded in layers with Koanf v2 (see LoadWithKoanf):
  - Built-in defaults (defaultConfig)
  - Optional YAML file (CONFIG_PATH, then ./config.yaml, /etc/dosehub/config.yaml)
  - Environment variables (highest priority)

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT: bind address (default: 0.0.0.0:3001)
  - WS_PATH: WebSocket endpoint path (default: /ws)
  - CORS_ORIGINS: comma-separated allowed origins (default: *)
  - SHUTDOWN_GRACE: time given to clients to receive SERVER_SHUTDOWN (default: 2s)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT: HTTP API limits

Hub:
  - WS_MAX_CONNECTIONS: concurrent connection cap (default: 100)
  - WS_MAX_MESSAGE_SIZE: inbound frame limit in bytes (default: 4MB)
  - WS_HEARTBEAT_INTERVAL: liveness ping interval (default: 60s)
  - WS_SEND_TIMEOUT: per-recipient enqueue bound (default: 250ms)
  - WS_SEND_BUFFER: per-connection outbound queue length (default: 256)
  - WS_INBOUND_RATE, WS_INBOUND_BURST: per-connection inbound flood control

Events:
  - EVENTS_BUFFER: bounded source capacity (default: 1024)
  - NATS_ENABLED, NATS_URL, NATS_SUBJECT, NATS_EMBEDDED: upstream NATS feed
  - REDIS_ENABLED, REDIS_ADDR, REDIS_STREAM, REDIS_GROUP, REDIS_CONSUMER: upstream Redis Streams feed

Notifications:
  - NOTIFY_QUEUE_SIZE, NOTIFY_MAX_ATTEMPTS, NOTIFY_BASE_DELAY, NOTIFY_MAX_DELAY
  - NOTIFY_PACING, NOTIFY_LOG_RETENTION, NOTIFY_SWEEP_INTERVAL

Auth:
  - JWT_SECRET: when set, AUTHENTICATE tokens must be HS256 JWTs signed with it

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
*/
package config
