// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

/*
Package services provides suture.Service wrappers for DoseHub components
whose lifecycle does not already match suture's Serve pattern.

Components that own a loop (HeartbeatMonitor, events.Router, notify.Layer,
notify.Sweeper) implement Serve and String themselves and are added to the
tree directly. The wrappers here translate the remaining patterns.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server; binds the listener inside Serve and exposes the bound Addr
  - Graceful Shutdown on cancellation with a configurable timeout

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub.RunWithContext
  - Sends SERVER_SHUTDOWN to every connection before closing it

Event Source (EventSourceService):
  - Wraps an upstream subscriber such as events.NATSSource
  - Returns transient failures for restart, closes the source on shutdown

# Usage Example

	tree.AddCoreService(services.NewWebSocketHubService(hub))
	tree.AddIngestService(services.NewEventSourceService(natsSource))
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, 10*time.Second))

# Return Behavior

  - Return nil: Service stopped cleanly, will not be restarted
  - Return error: Service crashed, will be restarted
  - Context canceled: Shutdown requested, return ctx.Err()
*/
package services
