// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package notify

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/dosehub/internal/logging"
)

// Status is the lifecycle state recorded for a notification.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
	StatusEvicted   Status = "evicted"
)

// Attempt records one delivery attempt.
type Attempt struct {
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Recipients int       `json:"recipients"`
}

// LogEntry is the delivery history of one notification.
type LogEntry struct {
	NotificationID string    `json:"notificationId"`
	Type           Type      `json:"type"`
	Priority       Priority  `json:"priority"`
	Created        time.Time `json:"created"`
	Status         Status    `json:"status"`
	Attempts       []Attempt `json:"attempts"`
	FinalError     string    `json:"finalError,omitempty"`
}

// DeliveryLog keeps the history of every notification for a retention
// window. Entries older than the window are dropped by Sweep.
type DeliveryLog struct {
	mu        sync.RWMutex
	entries   map[string]*LogEntry
	retention time.Duration
}

// NewDeliveryLog creates a log that retains entries for retention.
func NewDeliveryLog(retention time.Duration) *DeliveryLog {
	return &DeliveryLog{
		entries:   make(map[string]*LogEntry),
		retention: retention,
	}
}

// Queued opens the entry for n.
func (l *DeliveryLog) Queued(n *Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[n.ID] = &LogEntry{
		NotificationID: n.ID,
		Type:           n.Type,
		Priority:       n.Priority,
		Created:        n.CreatedAt,
		Status:         StatusQueued,
		Attempts:       []Attempt{},
	}
}

// RecordAttempt appends an attempt. Attempts for swept ids are ignored.
func (l *DeliveryLog) RecordAttempt(id string, a Attempt) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		e.Attempts = append(e.Attempts, a)
		if a.Success {
			e.Status = StatusDelivered
		}
	}
}

// Finish marks id as permanently failed or evicted.
func (l *DeliveryLog) Finish(id string, status Status, reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[id]; ok {
		e.Status = status
		e.FinalError = reason
	}
}

// Get returns a copy of the entry for id.
func (l *DeliveryLog) Get(id string) (LogEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.entries[id]
	if !ok {
		return LogEntry{}, false
	}
	out := *e
	out.Attempts = append([]Attempt(nil), e.Attempts...)
	return out, true
}

// Len returns the number of retained entries.
func (l *DeliveryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Sweep removes entries created before now minus the retention window and
// returns how many were removed.
func (l *DeliveryLog) Sweep(now time.Time) int {
	cutoff := now.Add(-l.retention)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.entries {
		if e.Created.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// logSummary aggregates the log for Stats.
type logSummary struct {
	total         int
	delivered     int
	failed        int
	deliveryTotal time.Duration
}

func (l *DeliveryLog) summarize() logSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := logSummary{total: len(l.entries)}
	for _, e := range l.entries {
		switch e.Status {
		case StatusDelivered:
			s.delivered++
			if len(e.Attempts) > 0 {
				s.deliveryTotal += e.Attempts[len(e.Attempts)-1].Timestamp.Sub(e.Created)
			}
		case StatusFailed, StatusEvicted:
			s.failed++
		}
	}
	return s
}

// Sweeper periodically purges expired delivery log entries.
type Sweeper struct {
	log      *DeliveryLog
	interval time.Duration
	now      func() time.Time
}

// NewSweeper creates a sweeper for log running every interval.
func NewSweeper(log *DeliveryLog, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{log: log, interval: interval, now: time.Now}
}

// Serve sweeps until ctx is canceled. It implements suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if removed := s.log.Sweep(s.now()); removed > 0 {
				logging.Info().Int("removed", removed).Msg("Purged expired notification log entries")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *Sweeper) String() string {
	return "delivery-log-sweeper"
}
