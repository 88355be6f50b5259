// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/validation"
)

// maxEventBodySize bounds a single change notification.
const maxEventBodySize = 1 << 20

// EventAccepted is the body of a 202 from POST /api/v1/events.
type EventAccepted struct {
	EntityType string `json:"entityType"`
	Operation  string `json:"operation"`
	RecordID   string `json:"recordId"`
}

// PublishEvent accepts a change notification from the upstream data layer
// and queues it for routing. The queue never blocks the request: a full
// source answers 503 and the caller retries.
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.source == nil {
		rw.ServiceUnavailable("Event source not initialized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEventBodySize)
	var req events.ChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}

	ev, err := req.ToEvent(h.now())
	if err != nil {
		var verr *validation.RequestValidationError
		if errors.As(err, &verr) {
			apiErr := verr.ToAPIError()
			rw.ValidationError(apiErr.Message, apiErr.Fields)
			return
		}
		rw.BadRequest(err.Error())
		return
	}

	if err := h.source.TryPublish(ev); err != nil {
		if errors.Is(err, events.ErrSourceFull) {
			logging.Ctx(r.Context()).Warn().
				Str("entity", string(ev.Entity())).
				Msg("Event source full, change rejected")
			rw.Overloaded("Event queue full", time.Second)
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to publish change")
		rw.InternalError("Failed to queue event")
		return
	}

	change := ev.Change()
	rw.Accepted(EventAccepted{
		EntityType: string(ev.Entity()),
		Operation:  string(change.Operation),
		RecordID:   change.RecordID,
	})
}
