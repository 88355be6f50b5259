// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// ServerVersion is advertised to clients on connect.
const ServerVersion = "1.0.0"

var serverFeatures = []string{"real-time-updates", "push-notifications", "room-subscriptions"}

// Config holds hub limits.
type Config struct {
	MaxMessageSize    int64
	SendTimeout       time.Duration
	SendBuffer        int
	HeartbeatInterval time.Duration
	InboundRate       float64
	InboundBurst      int
	ShutdownGrace     time.Duration
}

// Hub ties the registry to the transport: it accepts upgraded connections,
// runs their pumps and owns shutdown.
type Hub struct {
	cfg         Config
	registry    *Registry
	broadcaster *Broadcaster
	handler     *Handler
	heartbeat   *HeartbeatMonitor
	startedAt   time.Time

	// lifecycle orders registration against the shutdown snapshot so a
	// connection is either notified by Shutdown or refused by Accept.
	lifecycle    sync.Mutex
	writers      sync.WaitGroup
	shuttingDown atomic.Bool
}

// NewHub wires a hub around registry.
func NewHub(cfg Config, registry *Registry, permissions PermissionResolver, auth Authenticator) *Hub {
	broadcaster := NewBroadcaster(registry, cfg.SendTimeout)
	return &Hub{
		cfg:         cfg,
		registry:    registry,
		broadcaster: broadcaster,
		handler:     NewHandler(registry, broadcaster, permissions, auth),
		heartbeat:   NewHeartbeatMonitor(registry, cfg.HeartbeatInterval),
		startedAt:   time.Now(),
	}
}

// Registry returns the registry the hub serves.
func (h *Hub) Registry() *Registry { return h.registry }

// Broadcaster returns the hub's channel and room broadcaster.
func (h *Hub) Broadcaster() *Broadcaster { return h.broadcaster }

// Heartbeat returns the hub's heartbeat monitor.
func (h *Hub) Heartbeat() *HeartbeatMonitor { return h.heartbeat }

// StartedAt returns the time the hub was created.
func (h *Hub) StartedAt() time.Time { return h.startedAt }

// GetClientCount returns the number of registered connections.
func (h *Hub) GetClientCount() int { return h.registry.Count() }

// AtCapacity reports whether a new connection would be refused.
func (h *Hub) AtCapacity() bool {
	h.registry.mu.RLock()
	defer h.registry.mu.RUnlock()
	return h.registry.maxConnections > 0 && len(h.registry.conns) >= h.registry.maxConnections
}

// Accept registers an upgraded transport and starts its pumps. When the hub
// is full or shutting down the transport is closed with an ERROR frame.
func (h *Hub) Accept(ctx context.Context, ws *websocket.Conn) (*Conn, error) {
	var limiter *rate.Limiter
	if h.cfg.InboundRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.cfg.InboundRate), h.cfg.InboundBurst)
	}
	c := newConn(ws, h.cfg.SendBuffer, limiter, time.Now())

	h.lifecycle.Lock()
	if h.shuttingDown.Load() {
		h.lifecycle.Unlock()
		metrics.WSRejected.WithLabelValues("shutdown").Inc()
		reject(ws, CodeServerBusy, "Server is shutting down", websocket.CloseGoingAway)
		return nil, ErrConnectionClosed
	}
	if err := h.registry.Register(c); err != nil {
		h.lifecycle.Unlock()
		metrics.WSRejected.WithLabelValues("capacity").Inc()
		logging.Warn().Err(err).Int("connections", h.registry.Count()).Msg("Connection refused")
		reject(ws, CodeServerBusy, "Connection limit reached", websocket.CloseTryAgainLater)
		return nil, err
	}
	h.writers.Add(1)
	h.lifecycle.Unlock()
	metrics.WSConnections.Set(float64(h.registry.Count()))

	go func() {
		defer h.writers.Done()
		c.writePump()
	}()

	_ = h.broadcaster.Send(c, connectionEstablished{
		Type:         TypeConnectionEstablished,
		ConnectionID: c.id,
		Message:      "Real-time monitoring active",
		ServerInfo:   ServerInfo{Version: ServerVersion, Features: serverFeatures},
		Timestamp:    FormatTimestamp(time.Now()),
	})

	logging.Info().
		Str("conn_id", c.id).
		Int("connections", h.registry.Count()).
		Msg("WebSocket client connected")

	go h.readPump(logging.ContextWithConnectionID(ctx, c.id), c)
	return c, nil
}

// readPump pumps inbound frames into the handler until the transport fails.
func (h *Hub) readPump(ctx context.Context, c *Conn) {
	defer h.disconnect(c)

	// Frames above the soft limit get an error reply. Frames above the hard
	// limit fail the read and close the connection with 1009.
	c.ws.SetReadLimit(h.cfg.MaxMessageSize * 4)
	c.ws.SetPongHandler(func(string) error {
		h.registry.UpdateLiveness(c.id, time.Now())
		return nil
	})

	for {
		_, r, err := c.ws.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Ctx(ctx).Warn().Err(err).Msg("Unexpected websocket close")
			}
			return
		}
		data, err := io.ReadAll(io.LimitReader(r, h.cfg.MaxMessageSize+1))
		if err != nil {
			return
		}
		h.registry.UpdateLiveness(c.id, time.Now())

		if int64(len(data)) > h.cfg.MaxMessageSize {
			if _, err := io.Copy(io.Discard, r); err != nil {
				return
			}
			h.broadcaster.SendError(c, CodeMessageTooLarge, "Message exceeds maximum size")
			continue
		}
		h.handler.Handle(ctx, c, data)
	}
}

func (h *Hub) disconnect(c *Conn) {
	if _, removed := h.registry.Remove(c.id); removed {
		metrics.WSConnections.Set(float64(h.registry.Count()))
		logging.Info().
			Str("conn_id", c.id).
			Dur("duration", time.Since(c.connectedAt)).
			Msg("WebSocket client disconnected")
	}
	c.Close()
}

// RunWithContext blocks until ctx is canceled, then shuts the hub down. It is
// run under the supervisor.
func (h *Hub) RunWithContext(ctx context.Context) error {
	<-ctx.Done()
	h.logGracefulShutdown(ctx)
	return ctx.Err()
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	closed := h.Shutdown()
	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// Shutdown sends SERVER_SHUTDOWN to every connection, closes them, and waits
// for writers to flush before dropping transports. Queueing the notice and
// flushing share one deadline of ShutdownGrace, so slow clients cannot hold
// shutdown past it. It returns the number of connections closed.
func (h *Hub) Shutdown() int {
	h.lifecycle.Lock()
	if !h.shuttingDown.CompareAndSwap(false, true) {
		h.lifecycle.Unlock()
		return 0
	}
	conns := h.registry.All()
	h.lifecycle.Unlock()

	deadline := time.Now().Add(h.cfg.ShutdownGrace)
	frame, err := json.Marshal(shutdownEnvelope{
		Type:      TypeServerShutdown,
		Message:   "Server is shutting down",
		Timestamp: FormatTimestamp(time.Now()),
	})
	if err == nil {
		for _, c := range conns {
			_ = c.enqueue(frame, time.Until(deadline))
		}
	}
	for _, c := range conns {
		h.registry.Remove(c.id)
		c.CloseWith(websocket.CloseGoingAway, "server shutdown")
	}
	metrics.WSConnections.Set(0)

	flushed := make(chan struct{})
	go func() {
		h.writers.Wait()
		close(flushed)
	}()
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-flushed:
	case <-timer.C:
		for _, c := range conns {
			c.forceClose()
		}
	}
	return len(conns)
}

func reject(ws *websocket.Conn, code ErrorCode, message string, closeCode int) {
	defer func() { _ = ws.Close() }()

	frame, err := json.Marshal(errorEnvelope{
		Type:      TypeError,
		Error:     ErrorBody{Code: code, Message: message},
		Timestamp: FormatTimestamp(time.Now()),
	})
	if err != nil {
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return
	}
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, message))
}
