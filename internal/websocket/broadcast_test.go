// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"errors"
	"testing"
	"time"
)

func TestBroadcastToChannel_FailureIsolation(t *testing.T) {
	r := NewRegistry(0)
	b := NewBroadcaster(r, 10*time.Millisecond)

	healthy := registerTestConn(t, r)
	full := newTestConn(1)
	if err := r.Register(full); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	full.send <- []byte(`{}`)
	closed := registerTestConn(t, r)
	closed.Close()
	last := registerTestConn(t, r)

	for _, c := range []*Conn{healthy, full, closed, last} {
		if err := r.Subscribe(c.ID(), []string{"alerts"}); err != nil {
			t.Fatalf("Subscribe() error = %v", err)
		}
	}

	delivered := b.BroadcastToChannel("alerts", map[string]any{"severity": "CRITICAL"})
	if delivered != 2 {
		t.Errorf("BroadcastToChannel() = %d, want 2", delivered)
	}

	for _, c := range []*Conn{healthy, last} {
		frame := nextFrame(t, c)
		if frame["type"] != TypeBroadcast || frame["channel"] != "alerts" {
			t.Errorf("frame = %v, want BROADCAST on alerts", frame)
		}
		data, _ := frame["data"].(map[string]any)
		if data["severity"] != "CRITICAL" {
			t.Errorf("data = %v", data)
		}
		if _, ok := frame["timestamp"].(string); !ok {
			t.Error("envelope missing timestamp")
		}
	}

	for _, c := range []*Conn{full, closed} {
		if _, ok := r.Get(c.ID()); ok {
			t.Errorf("failed recipient %s still registered", c.ID())
		}
	}
	select {
	case <-full.Done():
	default:
		t.Error("timed-out recipient was not closed")
	}
	if got := r.Lookup("alerts"); len(got) != 2 {
		t.Errorf("Lookup(alerts) after broadcast = %d, want 2", len(got))
	}
}

func TestBroadcastToChannel_NoSubscribers(t *testing.T) {
	r := NewRegistry(0)
	b := NewBroadcaster(r, time.Second)
	registerTestConn(t, r)

	if got := b.BroadcastToChannel("devices", "x"); got != 0 {
		t.Errorf("BroadcastToChannel() = %d, want 0", got)
	}
}

func TestBroadcastToRoom(t *testing.T) {
	r := NewRegistry(0)
	b := NewBroadcaster(r, time.Second)
	member := registerTestConn(t, r)
	outsider := registerTestConn(t, r)

	if _, err := r.JoinRoom(member.ID(), "ward-3"); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}

	if got := b.BroadcastToRoom("ward-3", map[string]any{"msg": "hi"}); got != 1 {
		t.Errorf("BroadcastToRoom() = %d, want 1", got)
	}
	frame := nextFrame(t, member)
	if frame["type"] != TypeRoomBroadcast || frame["room"] != "ward-3" {
		t.Errorf("frame = %v, want ROOM_BROADCAST for ward-3", frame)
	}
	expectNoFrame(t, outsider)

	if got := b.BroadcastToRoom("nobody", "x"); got != 0 {
		t.Errorf("BroadcastToRoom() to missing room = %d, want 0", got)
	}
}

func TestDeliverNotification(t *testing.T) {
	t.Run("no eligible recipients", func(t *testing.T) {
		r := NewRegistry(0)
		b := NewBroadcaster(r, time.Second)
		anon := registerTestConn(t, r)
		_ = r.Subscribe(anon.ID(), []string{NotificationsChannel})

		_, err := b.DeliverNotification(map[string]any{"id": "n1"})
		if !errors.Is(err, ErrNoRecipients) {
			t.Errorf("DeliverNotification() error = %v, want ErrNoRecipients", err)
		}
		expectNoFrame(t, anon)
	})

	t.Run("authenticated subscribers only", func(t *testing.T) {
		r := NewRegistry(0)
		b := NewBroadcaster(r, time.Second)
		authed := registerTestConn(t, r)
		anon := registerTestConn(t, r)
		_, _ = r.Authenticate(authed.ID(), Authenticated{UserID: "u", Role: "nurse"}, nil)
		_ = r.Subscribe(authed.ID(), []string{NotificationsChannel})
		_ = r.Subscribe(anon.ID(), []string{NotificationsChannel})

		n, err := b.DeliverNotification(map[string]any{"id": "n1"})
		if err != nil || n != 1 {
			t.Fatalf("DeliverNotification() = %d, %v, want 1, nil", n, err)
		}
		frame := nextFrame(t, authed)
		if frame["type"] != TypeNotification || frame["channel"] != NotificationsChannel {
			t.Errorf("frame = %v", frame)
		}
		notification, _ := frame["notification"].(map[string]any)
		if notification["id"] != "n1" {
			t.Errorf("notification = %v", notification)
		}
		expectNoFrame(t, anon)
	})

	t.Run("all sends fail", func(t *testing.T) {
		r := NewRegistry(0)
		b := NewBroadcaster(r, time.Millisecond)
		c := registerTestConn(t, r)
		_, _ = r.Authenticate(c.ID(), Authenticated{UserID: "u", Role: "admin"}, nil)
		_ = r.Subscribe(c.ID(), []string{NotificationsChannel})
		c.Close()

		_, err := b.DeliverNotification("x")
		if !errors.Is(err, ErrDeliveryFailed) {
			t.Errorf("DeliverNotification() error = %v, want ErrDeliveryFailed", err)
		}
	})
}
