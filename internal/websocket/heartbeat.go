// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"context"
	"time"

	"github.com/tomtom215/dosehub/internal/logging"
)

// HeartbeatMonitor periodically pings every connection and evicts those
// that have shown no sign of life for two intervals.
type HeartbeatMonitor struct {
	registry *Registry
	interval time.Duration
	now      func() time.Time
}

// NewHeartbeatMonitor creates a monitor that scans registry every interval.
func NewHeartbeatMonitor(registry *Registry, interval time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		registry: registry,
		interval: interval,
		now:      time.Now,
	}
}

// Serve runs the scan loop until ctx is canceled. It implements suture.Service.
func (m *HeartbeatMonitor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", m.interval).Msg("Heartbeat monitor started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			pinged, evicted := m.Scan(m.now())
			if evicted > 0 {
				logging.Info().
					Int("pinged", pinged).
					Int("evicted", evicted).
					Msg("Heartbeat scan evicted stale connections")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (m *HeartbeatMonitor) String() string {
	return "heartbeat-monitor"
}

// Scan evicts every connection whose last liveness is older than twice the
// interval and sends a ping to the rest. A connection that answered the
// previous ping with a pong is ALIVE again by the time of this scan.
func (m *HeartbeatMonitor) Scan(now time.Time) (pinged, evicted int) {
	window := 2 * m.interval
	for _, c := range m.registry.All() {
		if now.Sub(c.LastLiveness()) > window {
			evict(m.registry, c, EvictHeartbeat)
			evicted++
			continue
		}
		c.requestPing()
		pinged++
	}
	return pinged, evicted
}
