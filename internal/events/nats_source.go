// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

//go:build nats

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/dosehub/internal/config"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// NATSSource feeds change notifications published on a NATS subject into a
// Source. It can optionally run an embedded NATS server for single-instance
// deployments.
type NATSSource struct {
	cfg        config.NATSConfig
	source     *Source
	embedded   *server.Server
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter
}

// NewNATSSource connects to cfg.URL, or to an embedded server when
// cfg.EmbeddedServer is set.
func NewNATSSource(cfg config.NATSConfig, source *Source) (*NATSSource, error) {
	n := &NATSSource{
		cfg:    cfg,
		source: source,
		logger: watermill.NewSlogLogger(logging.NewComponentSlogLogger("nats-source")),
	}

	url := cfg.URL
	if cfg.EmbeddedServer {
		ns, err := startEmbeddedServer(cfg.EmbeddedPort)
		if err != nil {
			return nil, err
		}
		n.embedded = ns
		url = ns.ClientURL()
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.RetryCount),
		natsgo.ReconnectWait(cfg.RetryInterval),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				n.logger.Error("NATS source disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			n.logger.Info("NATS source reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, n.logger)
	if err != nil {
		n.shutdownEmbedded()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	n.subscriber = sub
	return n, nil
}

func startEmbeddedServer(port int) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		ServerName: "dosehub-events",
		Host:       "127.0.0.1",
		Port:       port,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}
	return ns, nil
}

// ClientURL returns the URL of the embedded server, or "" when not embedded.
func (n *NATSSource) ClientURL() string {
	if n.embedded == nil {
		return ""
	}
	return n.embedded.ClientURL()
}

// Serve consumes the configured subject until ctx is canceled. Messages that
// do not decode are acked and dropped; a message that cannot be queued
// before shutdown is nacked.
func (n *NATSSource) Serve(ctx context.Context) error {
	messages, err := n.subscriber.Subscribe(ctx, n.cfg.Subject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", n.cfg.Subject, err)
	}
	logging.Info().Str("subject", n.cfg.Subject).Msg("NATS source subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			n.handle(ctx, msg)
		}
	}
}

func (n *NATSSource) handle(ctx context.Context, msg *message.Message) {
	ev, err := ParseChange(msg.Payload, time.Now())
	if err != nil {
		metrics.EventsDropped.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable change notification")
		msg.Ack()
		return
	}
	if err := n.source.Publish(ctx, ev); err != nil {
		msg.Nack()
		return
	}
	msg.Ack()
}

// String implements fmt.Stringer for supervisor logging.
func (n *NATSSource) String() string {
	return "nats-source"
}

// Close closes the subscriber and stops the embedded server.
func (n *NATSSource) Close() error {
	err := n.subscriber.Close()
	n.shutdownEmbedded()
	return err
}

func (n *NATSSource) shutdownEmbedded() {
	if n.embedded != nil {
		n.embedded.Shutdown()
		n.embedded.WaitForShutdown()
	}
}
