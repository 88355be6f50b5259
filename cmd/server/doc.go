// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

// Package main is the entry point for the DoseHub server.
//
// DoseHub pushes radiation dose readings, alerts, personnel and device
// changes to authenticated WebSocket clients, and tracks escalated alerts as
// notifications with bounded retry.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment (Koanf v2)
//  2. Logging: zerolog, bridged to slog for the supervisor
//  3. Channel policy: Casbin role to channel model
//  4. WebSocket hub: registry, broadcaster, heartbeat monitor
//  5. Event source and router: bounded queue feeding channel broadcasts
//  6. Notification layer: escalation queue, retries, delivery log sweeper
//  7. NATS and Redis Streams sources (optional): change feeds from a broker
//     subject or a stream consumer group
//  8. HTTP server: chi router with /ws, /health, /metrics and /api/v1
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (HTTP_PORT, LOG_LEVEL, JWT_SECRET, NATS_ENABLED,
//     REDIS_ENABLED, ...)
//   - Config file (CONFIG_PATH, config.yaml or /etc/dosehub/config.yaml)
//   - Built-in defaults
//
// # Build Tags
//
//	go build ./cmd/server              # HTTP ingest only
//	go build -tags nats ./cmd/server   # adds the NATS change feed and embedded server
//
// # Signal Handling
//
// On SIGINT or SIGTERM the supervisor tree is canceled: the HTTP server
// stops accepting requests, every WebSocket client receives SERVER_SHUTDOWN
// and is closed after the configured grace period, and services that miss
// the shutdown timeout are reported.
//
// # Example Usage
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export NATS_ENABLED=true NATS_EMBEDDED=true
//	./dosehub
package main
