// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import "errors"

var (
	// ErrCapacityExceeded is returned by Register when the registry already
	// holds the configured maximum number of connections.
	ErrCapacityExceeded = errors.New("websocket: connection capacity exceeded")

	// ErrDuplicateConnection is returned by Register for an id already present.
	ErrDuplicateConnection = errors.New("websocket: duplicate connection id")

	// ErrConnectionNotFound is returned for operations on an unknown id.
	ErrConnectionNotFound = errors.New("websocket: connection not found")

	// ErrConnectionClosed is returned when sending to a closed connection.
	ErrConnectionClosed = errors.New("websocket: connection closed")

	// ErrSendTimeout is returned when a frame could not be queued within the
	// per-send timeout.
	ErrSendTimeout = errors.New("websocket: send timed out")

	// ErrNoRecipients is returned by DeliverNotification when no connection is
	// eligible to receive it.
	ErrNoRecipients = errors.New("no eligible recipients")

	// ErrDeliveryFailed is returned by DeliverNotification when eligible
	// connections existed but every send failed.
	ErrDeliveryFailed = errors.New("delivery failed for all recipients")
)

// ErrorCode is the machine-readable code carried in an ERROR envelope.
type ErrorCode string

const (
	CodeInvalidMessageFormat ErrorCode = "INVALID_MESSAGE_FORMAT"
	CodeUnknownMessageType   ErrorCode = "UNKNOWN_MESSAGE_TYPE"
	CodeMessageTooLarge      ErrorCode = "MESSAGE_TOO_LARGE"
	CodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	CodeNotAuthenticated     ErrorCode = "NOT_AUTHENTICATED"
	CodeInvalidSubscription  ErrorCode = "INVALID_SUBSCRIPTION"
	CodeInvalidUnsubscribe   ErrorCode = "INVALID_UNSUBSCRIPTION"
	CodeInvalidRoom          ErrorCode = "INVALID_ROOM"
	CodeRateLimited          ErrorCode = "RATE_LIMITED"
	CodeServerBusy           ErrorCode = "SERVER_BUSY"
)
