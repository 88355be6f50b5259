// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

/*
Package api provides the HTTP surface of DoseHub on a chi router.

# Routes

	GET  /ws                                WebSocket upgrade (path configurable)
	GET  /health                            uptime, connection count, queue depths
	GET  /metrics                           Prometheus exposition
	GET  /api/v1/ws/stats                   connection, subscription, room and routing counts
	GET  /api/v1/notifications/stats        escalation queue and delivery totals
	GET  /api/v1/notifications/{id}         delivery log entry of one notification
	POST /api/v1/events                     change notification ingest (202, 400, 503)

# Middleware

Every request passes through RequestIDWithLogging (chi RequestID plus a
logging correlation ID), RealIP, Recoverer and go-chi/cors. REST routes add
go-chi/httprate limiting, security headers, Prometheus request metrics and
gzip compression of JSON bodies.

# Response Format

REST responses use APIResponse:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "SERVICE_UNAVAILABLE", "message": "Event queue full"}, "meta": {...}}
*/
package api
