// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/websocket"
)

// ConnectionStats is the body of GET /api/v1/ws/stats: registry counts
// plus the event router's per-channel totals.
type ConnectionStats struct {
	websocket.Stats
	Events *events.RouterStats `json:"events,omitempty"`
}

// WSStats reports connection, subscription and room counts.
func (h *Handler) WSStats(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket hub not initialized")
		return
	}

	stats := ConnectionStats{Stats: h.hub.Registry().Stats()}
	if h.router != nil {
		routed := h.router.Stats()
		stats.Events = &routed
	}
	NewResponseWriter(w, r).Success(stats)
}

// NotificationStats reports escalation queue and delivery totals.
func (h *Handler) NotificationStats(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Notification layer not initialized")
		return
	}
	NewResponseWriter(w, r).Success(h.notifier.Stats())
}

// NotificationDelivery returns the delivery log entry of one notification.
func (h *Handler) NotificationDelivery(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Notification layer not initialized")
		return
	}

	id := chi.URLParam(r, "id")
	entry, ok := h.notifier.Log().Get(id)
	if !ok {
		NewResponseWriter(w, r).NotFound("Notification not found")
		return
	}
	NewResponseWriter(w, r).Success(entry)
}
