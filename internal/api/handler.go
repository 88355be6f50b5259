// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"net/http"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/notify"
	"github.com/tomtom215/dosehub/internal/websocket"
)

// Dependencies are the components the HTTP surface reads from or feeds.
// Router and Notifier are optional; their endpoints answer 503 when nil.
type Dependencies struct {
	Hub      *websocket.Hub
	Source   *events.Source
	Router   *events.Router
	Notifier *notify.Layer

	// AllowedOrigins is checked against the Origin header of upgrade
	// requests. "*" accepts any origin, including none.
	AllowedOrigins []string
}

// Handler serves the REST endpoints and the WebSocket upgrade route.
type Handler struct {
	hub            *websocket.Hub
	source         *events.Source
	router         *events.Router
	notifier       *notify.Layer
	allowedOrigins []string
	upgrader       gws.Upgrader
	now            func() time.Time
}

// NewHandler creates a Handler around deps.
func NewHandler(deps Dependencies) *Handler {
	h := &Handler{
		hub:            deps.Hub,
		source:         deps.Source,
		router:         deps.Router,
		notifier:       deps.Notifier,
		allowedOrigins: deps.AllowedOrigins,
		now:            time.Now,
	}
	h.upgrader = gws.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
	return h
}

// checkWebSocketOrigin validates WebSocket connection origins. Browsers
// always send Origin, so a missing header is only accepted under "*".
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")

	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return true
		}
		if origin != "" && allowed == origin {
			return true
		}
	}

	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
	} else {
		logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	}
	return false
}
