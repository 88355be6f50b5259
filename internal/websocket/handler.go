// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// DefaultRole is assigned when AUTHENTICATE carries no role.
const DefaultRole = "user"

// ErrInvalidCredentials is returned by an Authenticator that rejects the
// presented credentials.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator validates AUTHENTICATE credentials and returns the identity
// and role to record for the connection.
type Authenticator interface {
	Authenticate(ctx context.Context, token, userID, role string) (Authenticated, error)
}

// PermissionResolver maps roles to the channels they may subscribe to.
type PermissionResolver interface {
	AllowedChannels(role string) []string
	Allows(role, channel string) bool
	FilterSubscriptionRequest(role string, requested []string) (accepted, rejected []string)
}

// Handler interprets inbound control messages for one hub.
type Handler struct {
	registry    *Registry
	broadcaster *Broadcaster
	permissions PermissionResolver
	auth        Authenticator
	startedAt   time.Time
	now         func() time.Time
}

// NewHandler creates a handler. All collaborators are required.
func NewHandler(registry *Registry, broadcaster *Broadcaster, permissions PermissionResolver, auth Authenticator) *Handler {
	now := time.Now
	return &Handler{
		registry:    registry,
		broadcaster: broadcaster,
		permissions: permissions,
		auth:        auth,
		startedAt:   now(),
		now:         now,
	}
}

// Handle processes one inbound text frame from c. Protocol errors are
// answered with an ERROR envelope and never close the connection.
func (h *Handler) Handle(ctx context.Context, c *Conn, data []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		h.broadcaster.SendError(c, CodeRateLimited, "Too many messages")
		return
	}

	msg := Decode(data)
	metrics.WSMessagesReceived.WithLabelValues(msg.inboundKind()).Inc()

	// AUTHENTICATE logs the identity it establishes itself.
	if _, reauth := msg.(Authenticate); !reauth {
		if auth, ok := h.authState(c).(Authenticated); ok {
			ctx = logging.ContextWithUserID(ctx, auth.UserID)
		}
	}

	switch m := msg.(type) {
	case Authenticate:
		h.authenticate(ctx, c, m)
	case Subscribe:
		h.subscribe(c, m)
	case Unsubscribe:
		h.unsubscribe(c, m)
	case JoinRoom:
		h.joinRoom(ctx, c, m)
	case LeaveRoom:
		h.leaveRoom(ctx, c, m)
	case Ping:
		_ = h.broadcaster.Send(c, pongReply{Type: TypePong, Timestamp: h.timestamp()})
	case GetStatus:
		h.status(c)
	case Unrecognized:
		logging.Ctx(ctx).Debug().Str("type", m.Type).Msg("Unknown message type")
		h.broadcaster.SendError(c, CodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", m.Type))
	case Malformed:
		h.broadcaster.SendError(c, m.Code, m.Message)
	}
}

func (h *Handler) authenticate(ctx context.Context, c *Conn, m Authenticate) {
	if m.Token == "" || m.UserID == "" {
		h.broadcaster.SendError(c, CodeAuthenticationFailed, "Invalid credentials")
		return
	}
	role := m.Role
	if role == "" {
		role = DefaultRole
	}

	identity, err := h.auth.Authenticate(ctx, m.Token, m.UserID, role)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", m.UserID).Msg("Authentication rejected")
		h.broadcaster.SendError(c, CodeAuthenticationFailed, "Invalid credentials")
		return
	}

	pruned, err := h.registry.Authenticate(c.id, identity, h.permissions.Allows)
	if err != nil {
		return
	}
	metrics.WSAuthenticated.Inc()

	event := logging.Ctx(ctx).Info().Str("user_id", identity.UserID).Str("role", identity.Role)
	if len(pruned) > 0 {
		event = event.Strs("pruned_channels", pruned)
	}
	event.Msg("Client authenticated")

	_ = h.broadcaster.Send(c, authenticatedReply{
		Type:        TypeAuthenticated,
		Success:     true,
		UserID:      identity.UserID,
		Role:        identity.Role,
		Permissions: h.permissions.AllowedChannels(identity.Role),
		Timestamp:   h.timestamp(),
	})
}

func (h *Handler) subscribe(c *Conn, m Subscribe) {
	accepted, rejected := h.permissions.FilterSubscriptionRequest(h.roleOf(c), m.Channels)
	if err := h.registry.Subscribe(c.id, accepted); err != nil {
		return
	}
	_ = h.broadcaster.Send(c, subscriptionReply{
		Type:               TypeSubscriptionConfirmed,
		SubscribedChannels: accepted,
		RejectedChannels:   rejected,
		Timestamp:          h.timestamp(),
	})
}

func (h *Handler) unsubscribe(c *Conn, m Unsubscribe) {
	remaining, err := h.registry.Unsubscribe(c.id, m.Channels)
	if err != nil {
		return
	}
	_ = h.broadcaster.Send(c, unsubscriptionReply{
		Type:                 TypeUnsubscriptionConfirmed,
		UnsubscribedChannels: m.Channels,
		RemainingChannels:    remaining,
		Timestamp:            h.timestamp(),
	})
}

func (h *Handler) joinRoom(ctx context.Context, c *Conn, m JoinRoom) {
	if _, ok := h.authState(c).(Authenticated); !ok {
		h.broadcaster.SendError(c, CodeNotAuthenticated, "Authentication required to join rooms")
		return
	}
	count, err := h.registry.JoinRoom(c.id, m.Room)
	if err != nil {
		return
	}
	logging.Ctx(ctx).Debug().Str("room", m.Room).Int("members", count).Msg("Client joined room")
	_ = h.broadcaster.Send(c, roomReply{Type: TypeRoomJoined, Room: m.Room, MemberCount: count, Timestamp: h.timestamp()})
}

func (h *Handler) leaveRoom(ctx context.Context, c *Conn, m LeaveRoom) {
	count, err := h.registry.LeaveRoom(c.id, m.Room)
	if err != nil {
		return
	}
	logging.Ctx(ctx).Debug().Str("room", m.Room).Int("members", count).Msg("Client left room")
	_ = h.broadcaster.Send(c, roomReply{Type: TypeRoomLeft, Room: m.Room, MemberCount: count, Timestamp: h.timestamp()})
}

func (h *Handler) status(c *Conn) {
	info, ok := h.registry.Describe(c.id)
	if !ok {
		return
	}
	status := ConnectionStatus{
		ConnectionID:     info.ID,
		ConnectedAt:      FormatTimestamp(info.ConnectedAt),
		Subscriptions:    info.Subscriptions,
		Rooms:            info.Rooms,
		TotalConnections: h.registry.Count(),
		ServerUptime:     h.now().Sub(h.startedAt).Seconds(),
	}
	if auth, ok := info.Auth.(Authenticated); ok {
		status.Authenticated = true
		status.UserID = auth.UserID
		status.Role = auth.Role
	}
	_ = h.broadcaster.Send(c, statusReply{Type: TypeConnectionStatus, Status: status, Timestamp: h.timestamp()})
}

func (h *Handler) authState(c *Conn) AuthState {
	state, _ := h.registry.AuthOf(c.id)
	return state
}

// roleOf returns the role of an authenticated connection, or "" otherwise.
func (h *Handler) roleOf(c *Conn) string {
	if auth, ok := h.authState(c).(Authenticated); ok {
		return auth.Role
	}
	return ""
}

func (h *Handler) timestamp() string {
	return FormatTimestamp(h.now())
}
