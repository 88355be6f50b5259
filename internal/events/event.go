// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

// Package events turns upstream change notifications into channel payloads.
//
// A change arrives as {entityType, operation, recordId, record} and becomes
// one of four Event variants. The Router shapes each variant, computes the
// derived flags (anomalous reading, device status, alert priority), broadcasts
// on the matching channel and hands qualifying events to the Escalator.
package events

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dosehub/internal/validation"
)

// Operation is the kind of change that produced an event.
type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// EntityType names the table a change came from.
type EntityType string

const (
	EntityDoseReading EntityType = "dose_reading"
	EntityAlert       EntityType = "alert"
	EntityPersonnel   EntityType = "personnel"
	EntityDevice      EntityType = "device"
)

// ErrMissingRecord is returned for an INSERT or UPDATE without a record.
var ErrMissingRecord = errors.New("record is required for INSERT and UPDATE")

// Change is the data common to every event variant. Record holds the row as
// enriched by the upstream collaborator; it is nil for deletes.
type Change struct {
	Operation Operation
	RecordID  string
	Record    Record
	Timestamp time.Time
}

// Event is a DoseReading, Alert, Personnel or Device change.
type Event interface {
	Entity() EntityType
	Change() Change
}

type (
	DoseReading struct{ change Change }
	Alert       struct{ change Change }
	Personnel   struct{ change Change }
	Device      struct{ change Change }
)

func (e DoseReading) Entity() EntityType { return EntityDoseReading }
func (e Alert) Entity() EntityType       { return EntityAlert }
func (e Personnel) Entity() EntityType   { return EntityPersonnel }
func (e Device) Entity() EntityType      { return EntityDevice }

func (e DoseReading) Change() Change { return e.change }
func (e Alert) Change() Change       { return e.change }
func (e Personnel) Change() Change   { return e.change }
func (e Device) Change() Change      { return e.change }

// NewEvent wraps c in the variant for entity.
func NewEvent(entity EntityType, c Change) (Event, error) {
	if c.Operation != OperationDelete && c.Record == nil {
		return nil, ErrMissingRecord
	}
	switch entity {
	case EntityDoseReading:
		return DoseReading{change: c}, nil
	case EntityAlert:
		return Alert{change: c}, nil
	case EntityPersonnel:
		return Personnel{change: c}, nil
	case EntityDevice:
		return Device{change: c}, nil
	default:
		return nil, fmt.Errorf("unknown entity type %q", entity)
	}
}

// RecordID accepts a JSON string or number.
type RecordID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("recordId must be a string or number: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// ChangeRequest is the wire form of a change notification.
type ChangeRequest struct {
	EntityType string     `json:"entityType" validate:"required,oneof=dose_reading alert personnel device"`
	Operation  string     `json:"operation" validate:"required,oneof=INSERT UPDATE DELETE"`
	RecordID   RecordID   `json:"recordId" validate:"required"`
	Record     Record     `json:"record,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// ToEvent validates the request and converts it to an Event. A missing
// timestamp defaults to now.
func (r *ChangeRequest) ToEvent(now time.Time) (Event, error) {
	if err := validation.ValidateStruct(r); err != nil {
		return nil, err
	}
	ts := now
	if r.Timestamp != nil {
		ts = *r.Timestamp
	}
	return NewEvent(EntityType(r.EntityType), Change{
		Operation: Operation(r.Operation),
		RecordID:  string(r.RecordID),
		Record:    r.Record,
		Timestamp: ts,
	})
}

// ParseChange decodes and validates a JSON change notification.
func ParseChange(data []byte, now time.Time) (Event, error) {
	var req ChangeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	return req.ToEvent(now)
}

// Record is one row of upstream data. Values come straight from JSON, so
// numbers may arrive as float64 or as numeric strings.
type Record map[string]any

// Float returns the numeric value of key.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// String returns the value of key rendered as a string, or "" when absent.
func (r Record) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// Has reports whether key is present with a non-null value.
func (r Record) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// Time parses key as an RFC 3339 timestamp or a date.
func (r Record) Time(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// With returns a shallow copy of r with extra fields set.
func (r Record) With(fields map[string]any) Record {
	out := make(Record, len(r)+len(fields))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// shape returns the record with fields added. The change's record id fills
// "id" when the record lacks one.
func (c Change) shape(fields map[string]any) Record {
	out := c.Record.With(fields)
	if !out.Has("id") && c.RecordID != "" {
		out["id"] = c.RecordID
	}
	return out
}
