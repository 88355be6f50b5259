// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package events

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/metrics"
)

// Channel names events are broadcast on.
const (
	ChannelReadings  = "readings"
	ChannelAlerts    = "alerts"
	ChannelPersonnel = "personnel"
	ChannelDevices   = "devices"
)

// Payload types.
const (
	TypeReadingUpdate   = "READING_UPDATE"
	TypeReadingDeleted  = "READING_DELETED"
	TypeAlertUpdate     = "ALERT_UPDATE"
	TypeAlertDeleted    = "ALERT_DELETED"
	TypePersonnelUpdate = "PERSONNEL_UPDATE"
	TypePersonnelDelete = "PERSONNEL_DELETED"
	TypeDeviceUpdate    = "DEVICE_UPDATE"
	TypeDeviceDeleted   = "DEVICE_DELETED"
)

// Personnel change actions passed to the Escalator.
const (
	PersonnelAdded   = "ADDED"
	PersonnelUpdated = "UPDATED"
)

const timestampLayout = "2006-01-02T15:04:05.000Z"

// Broadcaster delivers a payload to a channel's subscribers.
type Broadcaster interface {
	BroadcastToChannel(channel string, payload any) int
}

// Escalator receives the events that warrant a tracked notification.
// Implementations must not block.
type Escalator interface {
	EscalateAlert(alert Record)
	EscalateReading(reading Record)
	EscalatePersonnel(personnel Record, action string)
	EscalateDevice(device Record, status DeviceStatus)
}

// ReadingUpdate is the readings channel payload.
type ReadingUpdate struct {
	Type        string `json:"type"`
	Reading     Record `json:"reading"`
	IsAnomalous bool   `json:"isAnomalous"`
}

// AlertUpdate is the alerts channel payload.
type AlertUpdate struct {
	Type     string `json:"type"`
	Alert    Record `json:"alert"`
	Priority int    `json:"priority"`
}

// PersonnelUpdate is the personnel channel payload.
type PersonnelUpdate struct {
	Type      string `json:"type"`
	Personnel Record `json:"personnel"`
}

// DeviceUpdate is the devices channel payload.
type DeviceUpdate struct {
	Type   string       `json:"type"`
	Device Record       `json:"device"`
	Status DeviceStatus `json:"status"`
}

// RouterStats is served alongside the hub statistics.
type RouterStats struct {
	TotalEvents     int64            `json:"totalEvents"`
	EventsByChannel map[string]int64 `json:"eventsByChannel"`
	LastEventTime   *time.Time       `json:"lastEventTime"`
}

// Router is the single consumer of a Source.
type Router struct {
	source      *Source
	broadcaster Broadcaster
	escalator   Escalator
	now         func() time.Time

	mu        sync.Mutex
	counts    map[string]int64
	lastEvent time.Time
}

// NewRouter creates a router. escalator may be nil.
func NewRouter(source *Source, broadcaster Broadcaster, escalator Escalator) *Router {
	return &Router{
		source:      source,
		broadcaster: broadcaster,
		escalator:   escalator,
		now:         time.Now,
		counts:      make(map[string]int64),
	}
}

// Serve routes events until ctx is canceled. It implements suture.Service.
func (r *Router) Serve(ctx context.Context) error {
	logging.Info().Msg("Event router started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.source.Events():
			r.Route(ev)
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (r *Router) String() string {
	return "event-router"
}

// Route shapes one event, broadcasts it and returns the number of
// connections reached.
func (r *Router) Route(ev Event) int {
	change := ev.Change()
	var channel string
	var delivered int

	switch e := ev.(type) {
	case DoseReading:
		channel = ChannelReadings
		delivered = r.routeReading(e.change)
	case Alert:
		channel = ChannelAlerts
		delivered = r.routeAlert(e.change)
	case Personnel:
		channel = ChannelPersonnel
		delivered = r.routePersonnel(e.change)
	case Device:
		channel = ChannelDevices
		delivered = r.routeDevice(e.change)
	default:
		return 0
	}

	r.mu.Lock()
	r.counts[channel]++
	r.lastEvent = r.now()
	r.mu.Unlock()
	metrics.RecordEventRouted(string(ev.Entity()), string(change.Operation))

	logging.Debug().
		Str("entity", string(ev.Entity())).
		Str("operation", string(change.Operation)).
		Str("record_id", change.RecordID).
		Int("delivered", delivered).
		Msg("Event routed")
	return delivered
}

func (r *Router) routeReading(c Change) int {
	if c.Operation == OperationDelete {
		return r.broadcastDeleted(ChannelReadings, TypeReadingDeleted, "readingId", c)
	}
	anomalous := IsAnomalous(c.Record)
	high := IsHigh(c.Record)
	reading := c.shape(map[string]any{
		"isAnomalous": anomalous,
		"isHigh":      high,
		"operation":   string(c.Operation),
	})

	n := r.broadcaster.BroadcastToChannel(ChannelReadings, ReadingUpdate{
		Type:        TypeReadingUpdate,
		Reading:     reading,
		IsAnomalous: anomalous,
	})
	if high && r.escalator != nil {
		r.escalator.EscalateReading(reading)
	}
	return n
}

func (r *Router) routeAlert(c Change) int {
	if c.Operation == OperationDelete {
		return r.broadcastDeleted(ChannelAlerts, TypeAlertDeleted, "alertId", c)
	}
	alert := c.shape(map[string]any{"operation": string(c.Operation)})
	severity := alert.String("severity")

	n := r.broadcaster.BroadcastToChannel(ChannelAlerts, AlertUpdate{
		Type:     TypeAlertUpdate,
		Alert:    alert,
		Priority: AlertPriority(severity),
	})

	// Only new, unacknowledged CRITICAL and HIGH alerts escalate.
	if r.escalator != nil && c.Operation == OperationInsert && !alert.Has("ack_ts") &&
		(severity == "CRITICAL" || severity == "HIGH") {
		r.escalator.EscalateAlert(alert)
	}
	return n
}

func (r *Router) routePersonnel(c Change) int {
	if c.Operation == OperationDelete {
		return r.broadcastDeleted(ChannelPersonnel, TypePersonnelDelete, "personnelId", c)
	}
	personnel := c.shape(map[string]any{"operation": string(c.Operation)})

	n := r.broadcaster.BroadcastToChannel(ChannelPersonnel, PersonnelUpdate{
		Type:      TypePersonnelUpdate,
		Personnel: personnel,
	})
	if r.escalator != nil {
		action := PersonnelUpdated
		if c.Operation == OperationInsert {
			action = PersonnelAdded
		}
		r.escalator.EscalatePersonnel(personnel, action)
	}
	return n
}

func (r *Router) routeDevice(c Change) int {
	if c.Operation == OperationDelete {
		return r.broadcastDeleted(ChannelDevices, TypeDeviceDeleted, "deviceId", c)
	}
	status := DeriveDeviceStatus(c.Record, r.now())
	device := c.shape(map[string]any{
		"status":    string(status),
		"operation": string(c.Operation),
	})

	n := r.broadcaster.BroadcastToChannel(ChannelDevices, DeviceUpdate{
		Type:   TypeDeviceUpdate,
		Device: device,
		Status: status,
	})
	if r.escalator != nil && c.Operation == OperationUpdate && status == DeviceCalibrationDue {
		r.escalator.EscalateDevice(device, status)
	}
	return n
}

// broadcastDeleted sends only the id of the deleted record.
func (r *Router) broadcastDeleted(channel, typ, idKey string, c Change) int {
	return r.broadcaster.BroadcastToChannel(channel, map[string]any{
		"type":      typ,
		idKey:       c.RecordID,
		"timestamp": c.Timestamp.UTC().Format(timestampLayout),
	})
}

// Stats returns event counts per channel and the time of the last event.
func (r *Router) Stats() RouterStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := RouterStats{EventsByChannel: make(map[string]int64, len(r.counts))}
	for ch, n := range r.counts {
		stats.EventsByChannel[ch] = n
		stats.TotalEvents += n
	}
	if !r.lastEvent.IsZero() {
		last := r.lastEvent
		stats.LastEventTime = &last
	}
	return stats
}
