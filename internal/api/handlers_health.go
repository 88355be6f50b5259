// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/dosehub/internal/websocket"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status                 string    `json:"status"`
	Version                string    `json:"version"`
	StartedAt              time.Time `json:"startedAt"`
	Uptime                 float64   `json:"uptime"`
	Connections            int       `json:"connections"`
	EventQueueDepth        int       `json:"eventQueueDepth"`
	NotificationQueueDepth int       `json:"notificationQueueDepth"`
	PendingRetries         int       `json:"pendingRetries"`
	BreakerState           string    `json:"breakerState,omitempty"`
}

// Health reports hub uptime, connection count and queue depths. The
// status is "degraded" while the notification breaker is open.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket hub not initialized")
		return
	}

	health := HealthStatus{
		Status:      "healthy",
		Version:     websocket.ServerVersion,
		StartedAt:   h.hub.StartedAt().UTC(),
		Uptime:      h.now().Sub(h.hub.StartedAt()).Seconds(),
		Connections: h.hub.GetClientCount(),
	}
	if h.source != nil {
		health.EventQueueDepth = h.source.Len()
	}
	if h.notifier != nil {
		stats := h.notifier.Stats()
		health.NotificationQueueDepth = stats.Queued
		health.PendingRetries = stats.PendingRetries
		health.BreakerState = stats.BreakerState
		if stats.BreakerState == "open" {
			health.Status = "degraded"
		}
	}

	NewResponseWriter(w, r).Success(health)
}
