// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

/*
Package supervisor runs DoseHub's long-lived services under a suture v4 tree.

	dosehub
	├── ingest-layer   nats-source (NATS_ENABLED, -tags nats)
	│                  redis-source (REDIS_ENABLED)
	├── core-layer     websocket-hub, heartbeat, event-router,
	│                  notification-worker, delivery-log-sweeper
	└── api-layer      http-server

Layers restart independently. A broker outage backs off in the ingest layer
(IngestBackoff, 30s by default) while clients stay connected; a crashing
router or notification worker restarts without dropping connections; the
HTTP server keeps answering /health throughout.

Wiring, as done in cmd/server:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddCoreService(services.NewWebSocketHubService(hub))
	tree.AddCoreService(hub.Heartbeat())
	tree.AddIngestService(services.NewEventSourceService(redisSource))
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, 10*time.Second))
	errCh := tree.ServeBackground(ctx)

A service returning an error is restarted; returning ctx.Err() after
cancellation ends it. TreeConfig.ShutdownTimeout must exceed the hub's
shutdown grace so that SERVER_SHUTDOWN reaches every client before the tree
gives up on the hub. Services that still miss it are listed by
UnstoppedServiceReport.

Supervisor events (restarts, backoff, timeouts) are logged through zerolog
via sutureslog and the logging package's slog handler.
*/
package supervisor
