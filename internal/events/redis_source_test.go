// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/tomtom215/dosehub/internal/config"
)

func newTestRedisSource(t *testing.T, buffer int) (*RedisSource, *redis.Client, config.RedisConfig) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{
		Enabled:   true,
		Addr:      mr.Addr(),
		Stream:    "dosehub:changes:test",
		Group:     "dosehub-test",
		Consumer:  "consumer-1",
		BatchSize: 10,
		Block:     50 * time.Millisecond,
	}
	r := NewRedisSource(cfg, NewSource(buffer))
	t.Cleanup(func() { _ = r.Close() })

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return r, client, cfg
}

func addEntry(t *testing.T, client *redis.Client, stream, data string) string {
	t.Helper()
	id, err := client.XAdd(context.Background(), &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{redisDataField: data},
	}).Result()
	if err != nil {
		t.Fatalf("XAdd() error = %v", err)
	}
	return id
}

func receiveEvent(t *testing.T, s *Source) Event {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event received from Redis")
		return nil
	}
}

func TestRedisSource_RoundTrip(t *testing.T) {
	r, client, cfg := newTestRedisSource(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	addEntry(t, client, cfg.Stream, `not json`)
	addEntry(t, client, cfg.Stream, `{"entityType":"alert","operation":"INSERT","recordId":9,"record":{"severity":"HIGH"}}`)

	ev := receiveEvent(t, r.source)
	if _, ok := ev.(Alert); !ok || ev.Change().RecordID != "9" {
		t.Errorf("event = %#v", ev)
	}

	// Both the malformed and the queued entry are acknowledged.
	deadline := time.Now().Add(3 * time.Second)
	for {
		p, err := client.XPending(context.Background(), cfg.Stream, cfg.Group).Result()
		if err != nil {
			t.Fatalf("XPending() error = %v", err)
		}
		if p.Count == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pending entries = %d, want 0", p.Count)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestRedisSource_ReplaysPendingEntries(t *testing.T) {
	r, client, cfg := newTestRedisSource(t, 4)
	ctx := context.Background()

	if err := r.ensureGroup(ctx); err != nil {
		t.Fatalf("ensureGroup() error = %v", err)
	}
	// Creating the group twice is not an error.
	if err := r.ensureGroup(ctx); err != nil {
		t.Fatalf("second ensureGroup() error = %v", err)
	}

	addEntry(t, client, cfg.Stream, `{"entityType":"device","operation":"UPDATE","recordId":"d-1","record":{"status":"ONLINE"}}`)

	// A previous run read the entry but stopped before acknowledging it.
	_, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    cfg.Group,
		Consumer: cfg.Consumer,
		Streams:  []string{cfg.Stream, ">"},
		Count:    10,
		Block:    -1,
	}).Result()
	if err != nil {
		t.Fatalf("XReadGroup() error = %v", err)
	}

	if err := r.drainPending(ctx); err != nil {
		t.Fatalf("drainPending() error = %v", err)
	}
	ev := receiveEvent(t, r.source)
	if ev.Change().RecordID != "d-1" {
		t.Errorf("RecordID = %q, want d-1", ev.Change().RecordID)
	}
	p, err := client.XPending(ctx, cfg.Stream, cfg.Group).Result()
	if err != nil {
		t.Fatalf("XPending() error = %v", err)
	}
	if p.Count != 0 {
		t.Errorf("pending entries = %d, want 0", p.Count)
	}
}

func TestRedisSource_Decode(t *testing.T) {
	r := &RedisSource{now: time.Now}
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{"valid", map[string]interface{}{"data": `{"entityType":"personnel","operation":"DELETE","recordId":3}`}, false},
		{"missing field", map[string]interface{}{"payload": `{}`}, true},
		{"invalid json", map[string]interface{}{"data": `{`}, true},
		{"unknown entity", map[string]interface{}{"data": `{"entityType":"ghost","operation":"DELETE","recordId":3}`}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.decode(redis.XMessage{ID: "1-0", Values: tt.values})
			if (err != nil) != tt.wantErr {
				t.Errorf("decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedisSource_String(t *testing.T) {
	r := NewRedisSource(config.RedisConfig{Addr: "127.0.0.1:0"}, NewSource(1))
	defer func() { _ = r.Close() }()
	if r.String() != "redis-source" {
		t.Errorf("String() = %q, want redis-source", r.String())
	}
}
