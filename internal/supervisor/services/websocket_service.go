// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/dosehub/internal/logging"
)

// ContextHub is satisfied by *websocket.Hub. RunWithContext blocks until ctx
// is canceled, then sends SERVER_SHUTDOWN to every connection and closes
// them within the hub's grace period.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
	GetClientCount() int
}

// WebSocketHubService ties the hub's lifetime to the core layer so that
// process shutdown reaches every live connection.
type WebSocketHubService struct {
	hub ContextHub
}

// NewWebSocketHubService wraps hub.
func NewWebSocketHubService(hub ContextHub) *WebSocketHubService {
	return &WebSocketHubService{hub: hub}
}

// Serve implements suture.Service. The hub never finishes on its own, so a
// return before cancellation is reported as a failure.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	err := w.hub.RunWithContext(ctx)
	if ctx.Err() != nil {
		logging.Info().Int("remaining_connections", w.hub.GetClientCount()).Msg("WebSocket hub stopped")
		return ctx.Err()
	}
	if err == nil {
		return fmt.Errorf("websocket hub stopped unexpectedly")
	}
	return err
}

// String implements fmt.Stringer for supervisor logging.
func (w *WebSocketHubService) String() string {
	return "websocket-hub"
}
