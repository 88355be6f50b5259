// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// WebSocket upgrades the request and hands the transport to the hub.
// A full registry is refused with 503 before the upgrade; a race past that
// check is still refused by the hub with an ERROR frame and close 1013.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).ServiceUnavailable("WebSocket service unavailable")
		return
	}
	if h.hub.AtCapacity() {
		metrics.WSRejected.WithLabelValues("capacity").Inc()
		NewResponseWriter(w, r).Overloaded("Connection limit reached", 5*time.Second)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		metrics.WSRejected.WithLabelValues("upgrade").Inc()
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	// The request context ends when this handler returns; the connection
	// keeps the correlation ID but not the cancellation.
	if _, err := h.hub.Accept(context.WithoutCancel(r.Context()), conn); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("WebSocket connection not accepted")
	}
}
