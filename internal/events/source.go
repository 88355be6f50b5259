// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package events

import (
	"context"
	"errors"

	"github.com/tomtom215/dosehub/internal/metrics"
)

// ErrSourceFull is returned by TryPublish when the buffer is full.
var ErrSourceFull = errors.New("event source buffer full")

// Source is the bounded queue between upstream producers and the Router.
type Source struct {
	ch chan Event
}

// NewSource creates a source holding at most buffer pending events.
func NewSource(buffer int) *Source {
	if buffer < 1 {
		buffer = 1
	}
	return &Source{ch: make(chan Event, buffer)}
}

// Publish queues ev, waiting for room until ctx is done.
func (s *Source) Publish(ctx context.Context, ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish queues ev without waiting.
func (s *Source) TryPublish(ev Event) error {
	select {
	case s.ch <- ev:
		return nil
	default:
		metrics.EventsDropped.WithLabelValues("source_full").Inc()
		return ErrSourceFull
	}
}

// Events returns the receive side for the Router.
func (s *Source) Events() <-chan Event {
	return s.ch
}

// Len returns the number of pending events.
func (s *Source) Len() int {
	return len(s.ch)
}
