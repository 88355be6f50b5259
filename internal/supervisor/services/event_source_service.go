// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomtom215/dosehub/internal/logging"
)

// EventSource is an upstream subscriber feeding the event router, such as
// *events.NATSSource. Serve may be called again after it returns an error;
// Close is final.
type EventSource interface {
	Serve(ctx context.Context) error
	Close() error
	String() string
}

// EventSourceService supervises an EventSource. Transient failures are
// returned to the supervisor for a restart; the source is closed only when
// the tree shuts down.
type EventSourceService struct {
	source    EventSource
	closeOnce sync.Once
}

// NewEventSourceService wraps source.
func NewEventSourceService(source EventSource) *EventSourceService {
	return &EventSourceService{source: source}
}

// Serve implements suture.Service.
func (s *EventSourceService) Serve(ctx context.Context) error {
	err := s.source.Serve(ctx)
	if ctx.Err() != nil {
		s.closeOnce.Do(func() {
			if cerr := s.source.Close(); cerr != nil {
				logging.Warn().Err(cerr).Str("source", s.source.String()).Msg("Event source close failed")
			}
		})
		return ctx.Err()
	}
	if err == nil {
		return fmt.Errorf("%s stopped unexpectedly", s.source)
	}
	return fmt.Errorf("%s: %w", s.source, err)
}

// String implements fmt.Stringer for supervisor logging.
func (s *EventSourceService) String() string {
	return s.source.String()
}
