// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/dosehub/internal/api"
	"github.com/tomtom215/dosehub/internal/auth"
	"github.com/tomtom215/dosehub/internal/authz"
	"github.com/tomtom215/dosehub/internal/config"
	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/notify"
	"github.com/tomtom215/dosehub/internal/supervisor"
	"github.com/tomtom215/dosehub/internal/supervisor/services"
	"github.com/tomtom215/dosehub/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("ws_path", cfg.Server.WSPath).
		Int("max_connections", cfg.Hub.MaxConnections).
		Dur("heartbeat_interval", cfg.Hub.HeartbeatInterval).
		Bool("jwt", cfg.Auth.JWTSecret != "").
		Bool("nats", cfg.Events.NATS.Enabled).
		Bool("redis", cfg.Events.Redis.Enabled).
		Msg("Starting DoseHub with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	treeConfig := supervisor.DefaultTreeConfig()
	// Each service must be allowed to outlive the hub's shutdown grace.
	if minTimeout := cfg.Server.ShutdownGrace + 5*time.Second; treeConfig.ShutdownTimeout < minTimeout {
		treeConfig.ShutdownTimeout = minTimeout
	}
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), treeConfig)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// ========================
	// Core: hub, router, notifications
	// ========================
	resolver, err := authz.NewResolver(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load channel policy")
	}

	hub := websocket.NewHub(websocket.Config{
		MaxMessageSize:    cfg.Hub.MaxMessageSize,
		SendTimeout:       cfg.Hub.SendTimeout,
		SendBuffer:        cfg.Hub.SendBuffer,
		HeartbeatInterval: cfg.Hub.HeartbeatInterval,
		InboundRate:       cfg.Hub.InboundRate,
		InboundBurst:      cfg.Hub.InboundBurst,
		ShutdownGrace:     cfg.Server.ShutdownGrace,
	}, websocket.NewRegistry(cfg.Hub.MaxConnections), resolver, auth.New(cfg.Auth))

	source := events.NewSource(cfg.Events.Buffer)

	notifier := notify.NewLayer(cfg.Notifications, hub.Broadcaster())
	notifier.OnFailure(func(n *notify.Notification, err error) {
		logging.Error().
			Err(err).
			Str("notification_id", n.ID).
			Str("type", string(n.Type)).
			Int("attempts", n.Delivery.Attempts).
			Msg("Notification delivery failed permanently")
	})

	router := events.NewRouter(source, hub.Broadcaster(), notifier)

	tree.AddCoreService(services.NewWebSocketHubService(hub))
	tree.AddCoreService(hub.Heartbeat())
	tree.AddCoreService(router)
	tree.AddCoreService(notifier)
	tree.AddCoreService(notify.NewSweeper(notifier.Log(), cfg.Notifications.SweepInterval))

	// ========================
	// Ingest: optional NATS and Redis Streams feeds
	// ========================
	if cfg.Events.NATS.Enabled {
		natsSource, err := events.NewNATSSource(cfg.Events.NATS, source)
		if err != nil {
			logging.Warn().Err(err).Msg("NATS source unavailable, continuing with HTTP ingest only")
		} else {
			tree.AddIngestService(services.NewEventSourceService(natsSource))
			logging.Info().
				Str("url", natsSource.ClientURL()).
				Str("subject", cfg.Events.NATS.Subject).
				Msg("NATS source added to supervisor tree (ingest layer)")
		}
	}
	if cfg.Events.Redis.Enabled {
		tree.AddIngestService(services.NewEventSourceService(events.NewRedisSource(cfg.Events.Redis, source)))
		logging.Info().
			Str("addr", cfg.Events.Redis.Addr).
			Str("stream", cfg.Events.Redis.Stream).
			Str("group", cfg.Events.Redis.Group).
			Msg("Redis source added to supervisor tree (ingest layer)")
	}

	// ========================
	// API: HTTP and WebSocket upgrade
	// ========================
	handler := api.NewHandler(api.Dependencies{
		Hub:            hub,
		Source:         source,
		Router:         router,
		Notifier:       notifier,
		AllowedOrigins: cfg.Server.CORSOrigins,
	})
	chiMiddleware := api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(cfg.Server))

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, chiMiddleware, cfg.Server.WSPath).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Interface("layout", tree.Layout()).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// ServeBackground delivers exactly one value and never closes the channel.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("DoseHub stopped gracefully")
}
