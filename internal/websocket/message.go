// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import "time"

// Outbound envelope types.
const (
	TypeConnectionEstablished   = "CONNECTION_ESTABLISHED"
	TypeAuthenticated           = "AUTHENTICATED"
	TypeSubscriptionConfirmed   = "SUBSCRIPTION_CONFIRMED"
	TypeUnsubscriptionConfirmed = "UNSUBSCRIPTION_CONFIRMED"
	TypeRoomJoined              = "ROOM_JOINED"
	TypeRoomLeft                = "ROOM_LEFT"
	TypePong                    = "PONG"
	TypeConnectionStatus        = "CONNECTION_STATUS"
	TypeBroadcast               = "BROADCAST"
	TypeRoomBroadcast           = "ROOM_BROADCAST"
	TypeNotification            = "NOTIFICATION"
	TypeError                   = "ERROR"
	TypeServerShutdown          = "SERVER_SHUTDOWN"
)

// NotificationsChannel is the channel notification envelopes are delivered on.
const NotificationsChannel = "notifications"

const timestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t the way every outbound envelope carries it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ServerInfo is advertised in CONNECTION_ESTABLISHED.
type ServerInfo struct {
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

type connectionEstablished struct {
	Type         string     `json:"type"`
	ConnectionID string     `json:"connectionId"`
	Message      string     `json:"message"`
	ServerInfo   ServerInfo `json:"serverInfo"`
	Timestamp    string     `json:"timestamp"`
}

type authenticatedReply struct {
	Type        string   `json:"type"`
	Success     bool     `json:"success"`
	UserID      string   `json:"userId"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Timestamp   string   `json:"timestamp"`
}

type subscriptionReply struct {
	Type               string   `json:"type"`
	SubscribedChannels []string `json:"subscribedChannels"`
	RejectedChannels   []string `json:"rejectedChannels"`
	Timestamp          string   `json:"timestamp"`
}

type unsubscriptionReply struct {
	Type                 string   `json:"type"`
	UnsubscribedChannels []string `json:"unsubscribedChannels"`
	RemainingChannels    []string `json:"remainingChannels"`
	Timestamp            string   `json:"timestamp"`
}

type roomReply struct {
	Type        string `json:"type"`
	Room        string `json:"room"`
	MemberCount int    `json:"memberCount"`
	Timestamp   string `json:"timestamp"`
}

type pongReply struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// ConnectionStatus is the body of a CONNECTION_STATUS reply.
type ConnectionStatus struct {
	ConnectionID     string   `json:"connectionId"`
	ConnectedAt      string   `json:"connectedAt"`
	Authenticated    bool     `json:"authenticated"`
	UserID           string   `json:"userId,omitempty"`
	Role             string   `json:"role,omitempty"`
	Subscriptions    []string `json:"subscriptions"`
	Rooms            []string `json:"rooms"`
	TotalConnections int      `json:"totalConnections"`
	ServerUptime     float64  `json:"serverUptime"`
}

type statusReply struct {
	Type      string           `json:"type"`
	Status    ConnectionStatus `json:"status"`
	Timestamp string           `json:"timestamp"`
}

type broadcastEnvelope struct {
	Type      string `json:"type"`
	Channel   string `json:"channel"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

type roomBroadcastEnvelope struct {
	Type      string `json:"type"`
	Room      string `json:"room"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

type notificationEnvelope struct {
	Type         string `json:"type"`
	Channel      string `json:"channel"`
	Timestamp    string `json:"timestamp"`
	Notification any    `json:"notification"`
}

// ErrorBody is the payload of an ERROR envelope.
type ErrorBody struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type errorEnvelope struct {
	Type      string    `json:"type"`
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
}

type shutdownEnvelope struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
