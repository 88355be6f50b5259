// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

// Package metrics exposes Prometheus instrumentation for the hub: connection
// churn, fan-out volume, event routing and notification delivery.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of registered WebSocket connections",
		},
	)

	WSAuthenticated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_authentications_total",
			Help: "Total number of successful AUTHENTICATE messages",
		},
	)

	WSRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total number of connections refused at the boundary",
		},
		[]string{"reason"}, // "capacity", "shutdown", "upgrade"
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages written",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of inbound WebSocket messages by decoded type",
		},
		[]string{"type"},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_evictions_total",
			Help: "Total number of connections removed by the hub",
		},
		[]string{"reason"}, // "heartbeat", "send_failure"
	)

	// Broadcast Metrics
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total number of channel and room broadcasts",
		},
		[]string{"kind", "target"},
	)

	BroadcastRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hub_broadcast_recipients",
			Help:    "Number of recipients reached per broadcast",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Event Router Metrics
	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_routed_total",
			Help: "Total number of domain events routed",
		},
		[]string{"entity", "operation"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dropped_total",
			Help: "Total number of domain events rejected before routing",
		},
		[]string{"reason"}, // "source_full", "decode"
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notifications by terminal status",
		},
		[]string{"status"}, // "delivered", "failed", "evicted"
	)

	NotificationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_attempts_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"result"},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Notifications waiting in the ready queue or retry schedule",
		},
	)

	NotificationDeliveryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_delivery_duration_seconds",
			Help:    "Time from notification creation to successful delivery",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBroadcast records a fan-out and the number of recipients reached.
func RecordBroadcast(kind, target string, delivered int) {
	BroadcastsTotal.WithLabelValues(kind, target).Inc()
	BroadcastRecipients.Observe(float64(delivered))
}

// RecordEviction records a connection removed by the hub.
func RecordEviction(reason string) {
	WSEvictions.WithLabelValues(reason).Inc()
}

// RecordEventRouted records a domain event handed to the broadcasters.
func RecordEventRouted(entity, operation string) {
	EventsRouted.WithLabelValues(entity, operation).Inc()
}

// RecordNotificationAttempt records one delivery attempt and its outcome.
func RecordNotificationAttempt(success bool) {
	if success {
		NotificationAttempts.WithLabelValues("success").Inc()
		return
	}
	NotificationAttempts.WithLabelValues("failure").Inc()
}

// RecordNotificationDelivered records a notification reaching its recipients.
func RecordNotificationDelivered(sinceCreated time.Duration) {
	NotificationsTotal.WithLabelValues("delivered").Inc()
	NotificationDeliveryDuration.Observe(sinceCreated.Seconds())
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
