// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router configures every HTTP route on a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	wsPath        string
}

// NewRouter creates a router. An empty wsPath defaults to "/ws".
func NewRouter(handler *Handler, mw *ChiMiddleware, wsPath string) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	if wsPath == "" {
		wsPath = "/ws"
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		wsPath:        wsPath,
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("Route not found")
	})

	// ========================
	// WebSocket Upgrade
	// ========================
	// Rate limited like the REST surface so reconnect storms are bounded.
	r.With(router.chiMiddleware.RateLimit()).Get(router.wsPath, router.handler.WebSocket)

	// ========================
	// Operational Endpoints
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/health", router.handler.Health)
		r.Handle("/metrics", promhttp.Handler())
	})

	// ========================
	// REST API
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(RequestMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/ws/stats", router.handler.WSStats)
		r.Get("/notifications/stats", router.handler.NotificationStats)
		r.Get("/notifications/{id}", router.handler.NotificationDelivery)
		r.Post("/events", router.handler.PublishEvent)
	})

	return r
}
