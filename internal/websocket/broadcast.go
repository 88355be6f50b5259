// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// Eviction reasons recorded in metrics and logs.
const (
	EvictSendFailure = "send_failure"
	EvictHeartbeat   = "heartbeat"
)

// Broadcaster fans envelopes out to registry lookups. Every send is bounded
// by sendTimeout; a recipient that cannot take a frame in time is evicted and
// delivery continues with the rest.
type Broadcaster struct {
	registry    *Registry
	sendTimeout time.Duration
	now         func() time.Time
}

// NewBroadcaster creates a broadcaster over registry.
func NewBroadcaster(registry *Registry, sendTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		registry:    registry,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}
}

// BroadcastToChannel sends payload in a BROADCAST envelope to every
// subscriber of channel and returns how many accepted it.
func (b *Broadcaster) BroadcastToChannel(channel string, payload any) int {
	conns := b.registry.Lookup(channel)
	delivered := b.fanout(conns, broadcastEnvelope{
		Type:      TypeBroadcast,
		Channel:   channel,
		Timestamp: FormatTimestamp(b.now()),
		Data:      payload,
	})
	metrics.RecordBroadcast("channel", channel, delivered)

	logging.Debug().
		Str("channel", channel).
		Int("subscribers", len(conns)).
		Int("delivered", delivered).
		Msg("Channel broadcast")
	return delivered
}

// BroadcastToRoom sends payload in a ROOM_BROADCAST envelope to every member
// of room. Rooms carry no permission check.
func (b *Broadcaster) BroadcastToRoom(room string, payload any) int {
	conns := b.registry.RoomMembers(room)
	delivered := b.fanout(conns, roomBroadcastEnvelope{
		Type:      TypeRoomBroadcast,
		Room:      room,
		Timestamp: FormatTimestamp(b.now()),
		Data:      payload,
	})
	metrics.RecordBroadcast("room", room, delivered)

	logging.Debug().
		Str("room", room).
		Int("members", len(conns)).
		Int("delivered", delivered).
		Msg("Room broadcast")
	return delivered
}

// DeliverNotification sends a NOTIFICATION envelope to every authenticated
// subscriber of the notifications channel. It fails with ErrNoRecipients when
// nobody is eligible and with ErrDeliveryFailed when every send failed.
func (b *Broadcaster) DeliverNotification(notification any) (int, error) {
	conns := b.registry.LookupAuthenticated(NotificationsChannel)
	if len(conns) == 0 {
		return 0, ErrNoRecipients
	}
	delivered := b.fanout(conns, notificationEnvelope{
		Type:         TypeNotification,
		Channel:      NotificationsChannel,
		Timestamp:    FormatTimestamp(b.now()),
		Notification: notification,
	})
	metrics.RecordBroadcast("notification", NotificationsChannel, delivered)
	if delivered == 0 {
		return 0, ErrDeliveryFailed
	}
	return delivered, nil
}

// Send delivers a single envelope to c, evicting it on failure.
func (b *Broadcaster) Send(c *Conn, envelope any) error {
	frame, err := json.Marshal(envelope)
	if err != nil {
		logging.Error().Err(err).Str("conn_id", c.id).Msg("Failed to marshal envelope")
		return err
	}
	if err := c.enqueue(frame, b.sendTimeout); err != nil {
		b.evict(c, err)
		return err
	}
	return nil
}

// SendError replies with an ERROR envelope.
func (b *Broadcaster) SendError(c *Conn, code ErrorCode, message string) {
	metrics.WSErrors.WithLabelValues(string(code)).Inc()
	_ = b.Send(c, errorEnvelope{
		Type:      TypeError,
		Error:     ErrorBody{Code: code, Message: message},
		Timestamp: FormatTimestamp(b.now()),
	})
}

func (b *Broadcaster) fanout(conns []*Conn, envelope any) int {
	if len(conns) == 0 {
		return 0
	}
	frame, err := json.Marshal(envelope)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal broadcast envelope")
		return 0
	}

	delivered := 0
	for _, c := range conns {
		if err := c.enqueue(frame, b.sendTimeout); err != nil {
			b.evict(c, err)
			continue
		}
		delivered++
	}
	return delivered
}

func (b *Broadcaster) evict(c *Conn, cause error) {
	if errors.Is(cause, ErrConnectionClosed) {
		b.registry.Remove(c.id)
		return
	}
	evict(b.registry, c, EvictSendFailure)
}

// evict removes c from the registry and closes its transport.
func evict(registry *Registry, c *Conn, reason string) {
	if _, removed := registry.Remove(c.id); removed {
		metrics.RecordEviction(reason)
		metrics.WSConnections.Set(float64(registry.Count()))
		logging.Info().
			Str("conn_id", c.id).
			Str("reason", reason).
			Msg("Connection evicted")
	}
	c.CloseWith(websocket.CloseGoingAway, reason)
}
