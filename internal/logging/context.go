// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

// Context keys double as the log field names Ctx emits, in this order.
const (
	correlationIDKey contextKey = "correlation_id"
	connectionIDKey  contextKey = "conn_id"
	userIDKey        contextKey = "user_id"
)

var contextFields = []contextKey{correlationIDKey, connectionIDKey, userIDKey}

// GenerateCorrelationID returns an 8-character random ID.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// ContextWithCorrelationID tags ctx with an HTTP request's correlation ID.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withValue(ctx, correlationIDKey, id)
}

// ContextWithConnectionID tags ctx with a WebSocket connection ID.
func ContextWithConnectionID(ctx context.Context, id string) context.Context {
	return withValue(ctx, connectionIDKey, id)
}

// ContextWithUserID tags ctx with the user an authenticated connection
// belongs to.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	return withValue(ctx, userIDKey, id)
}

func withValue(ctx context.Context, key contextKey, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

// CorrelationIDFromContext returns the correlation ID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return valueOf(ctx, correlationIDKey)
}

// ConnectionIDFromContext returns the connection ID, or "".
func ConnectionIDFromContext(ctx context.Context) string {
	return valueOf(ctx, connectionIDKey)
}

func valueOf(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// Ctx returns the global logger with every ID found in ctx attached.
//
//	logging.Ctx(ctx).Info().Msg("Subscribed")
//	// {"level":"info","conn_id":"...","user_id":"nurse-1","message":"Subscribed"}
func Ctx(ctx context.Context) *zerolog.Logger {
	c := Logger().With()
	for _, key := range contextFields {
		if v := valueOf(ctx, key); v != "" {
			c = c.Str(string(key), v)
		}
	}
	l := c.Logger()
	return &l
}
