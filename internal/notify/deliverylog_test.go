// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package notify

import (
	"context"
	"testing"
	"time"
)

func TestDeliveryLog_Lifecycle(t *testing.T) {
	t.Parallel()
	log := NewDeliveryLog(30 * 24 * time.Hour)
	now := time.Now()
	n := mustNotification(t, now)

	log.Queued(n)
	entry, ok := log.Get(n.ID)
	if !ok || entry.Status != StatusQueued || len(entry.Attempts) != 0 {
		t.Fatalf("after Queued: %+v, %v", entry, ok)
	}

	log.RecordAttempt(n.ID, Attempt{Timestamp: now, Error: "no eligible recipients"})
	log.RecordAttempt(n.ID, Attempt{Timestamp: now.Add(time.Second), Success: true, Recipients: 4})
	entry, _ = log.Get(n.ID)
	if entry.Status != StatusDelivered || len(entry.Attempts) != 2 || entry.Attempts[1].Recipients != 4 {
		t.Errorf("after delivery: %+v", entry)
	}

	// Get returns a copy.
	entry.Attempts[0].Error = "changed"
	if again, _ := log.Get(n.ID); again.Attempts[0].Error != "no eligible recipients" {
		t.Error("Get() exposed internal attempts slice")
	}

	log.RecordAttempt("missing", Attempt{Success: true})
	if log.Len() != 1 {
		t.Errorf("Len() = %d, want 1", log.Len())
	}
}

func TestDeliveryLog_Sweep(t *testing.T) {
	t.Parallel()
	retention := 30 * 24 * time.Hour
	log := NewDeliveryLog(retention)
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	expired := mustNotification(t, now.Add(-retention-time.Minute))
	kept := mustNotification(t, now.Add(-retention+time.Minute))
	fresh := mustNotification(t, now)
	for _, n := range []*Notification{expired, kept, fresh} {
		log.Queued(n)
	}
	log.Finish(expired.ID, StatusFailed, "gone")

	if removed := log.Sweep(now); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if _, ok := log.Get(expired.ID); ok {
		t.Error("expired entry survived the sweep")
	}
	if _, ok := log.Get(kept.ID); !ok {
		t.Error("entry inside the window was swept")
	}
	if removed := log.Sweep(now); removed != 0 {
		t.Errorf("second Sweep() removed %d, want 0", removed)
	}
}

func TestDeliveryLog_Summary(t *testing.T) {
	t.Parallel()
	log := NewDeliveryLog(time.Hour)
	now := time.Now()

	delivered := mustNotification(t, now)
	failed := mustNotification(t, now)
	queued := mustNotification(t, now)
	for _, n := range []*Notification{delivered, failed, queued} {
		log.Queued(n)
	}
	log.RecordAttempt(delivered.ID, Attempt{Timestamp: delivered.CreatedAt.Add(200 * time.Millisecond), Success: true})
	log.Finish(failed.ID, StatusFailed, "boom")

	s := log.summarize()
	if s.total != 3 || s.delivered != 1 || s.failed != 1 {
		t.Errorf("summarize() = %+v", s)
	}
	if s.deliveryTotal != 200*time.Millisecond {
		t.Errorf("deliveryTotal = %v, want 200ms", s.deliveryTotal)
	}
}

func TestSweeper_Serve(t *testing.T) {
	t.Parallel()
	log := NewDeliveryLog(time.Hour)
	log.Queued(mustNotification(t, time.Now().Add(-2*time.Hour)))

	s := NewSweeper(log, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for log.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweeper did not purge the expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if s.String() != "delivery-log-sweeper" {
		t.Errorf("String() = %q", s.String())
	}
}
