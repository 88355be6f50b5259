// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dosehub/internal/logging"
)

// APIResponse is the envelope of every REST response. Exactly one of Data
// and Error is set.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError is the error half of APIResponse. Details carries the failing
// field paths of a VALIDATION_FAILED error.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// APIMeta contains response metadata.
type APIMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Error codes and the HTTP status each one is sent with.
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
)

var errorStatus = map[string]int{
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeInternalError:      http.StatusInternalServerError,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeValidationFailed:   http.StatusBadRequest,
}

// ResponseWriter writes APIResponse envelopes for one request.
type ResponseWriter struct {
	w       http.ResponseWriter
	r       *http.Request
	started time.Time
}

// NewResponseWriter creates a response writer for r.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r, started: time.Now()}
}

// Success writes a 200 response with data.
func (rw *ResponseWriter) Success(data any) {
	rw.write(http.StatusOK, APIResponse{Success: true, Data: data})
}

// Accepted writes a 202 response with data.
func (rw *ResponseWriter) Accepted(data any) {
	rw.write(http.StatusAccepted, APIResponse{Success: true, Data: data})
}

// Fail writes an error envelope. The status follows from code; unknown
// codes are sent as 500.
func (rw *ResponseWriter) Fail(code, message string, details any) {
	status, ok := errorStatus[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	rw.write(status, APIResponse{Error: &APIError{Code: code, Message: message, Details: details}})
}

// BadRequest writes a 400 BAD_REQUEST.
func (rw *ResponseWriter) BadRequest(message string) {
	rw.Fail(ErrCodeBadRequest, message, nil)
}

// ValidationError writes a 400 VALIDATION_FAILED listing the failing fields.
func (rw *ResponseWriter) ValidationError(message string, fields any) {
	rw.Fail(ErrCodeValidationFailed, message, fields)
}

// NotFound writes a 404.
func (rw *ResponseWriter) NotFound(message string) {
	rw.Fail(ErrCodeNotFound, message, nil)
}

// TooManyRequests writes a 429.
func (rw *ResponseWriter) TooManyRequests(message string) {
	rw.Fail(ErrCodeTooManyRequests, message, nil)
}

// InternalError writes a 500.
func (rw *ResponseWriter) InternalError(message string) {
	rw.Fail(ErrCodeInternalError, message, nil)
}

// ServiceUnavailable writes a 503.
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Fail(ErrCodeServiceUnavailable, message, nil)
}

// Overloaded writes a 503 with a Retry-After hint, for a full event queue
// or connection registry. The hint is rounded up to whole seconds.
func (rw *ResponseWriter) Overloaded(message string, retryAfter time.Duration) {
	secs := int((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	rw.w.Header().Set("Retry-After", strconv.Itoa(secs))
	rw.ServiceUnavailable(message)
}

func (rw *ResponseWriter) write(status int, resp APIResponse) {
	reqID := chimiddleware.GetReqID(rw.r.Context())
	resp.Meta = &APIMeta{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		DurationMs: time.Since(rw.started).Milliseconds(),
	}
	if resp.Error != nil {
		resp.Error.RequestID = reqID
	}

	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(resp); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteError writes an error envelope without holding a ResponseWriter.
func WriteError(w http.ResponseWriter, r *http.Request, code, message string) {
	NewResponseWriter(w, r).Fail(code, message, nil)
}
