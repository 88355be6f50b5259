// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dosehub/internal/authz"
	"github.com/tomtom215/dosehub/internal/websocket"
)

// stubHub runs until canceled, or returns runErr at once.
type stubHub struct {
	runErr error
	runs   atomic.Int32
}

func (s *stubHub) RunWithContext(ctx context.Context) error {
	s.runs.Add(1)
	if s.runErr != nil {
		return s.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubHub) GetClientCount() int { return 0 }

// returningHub returns nil without being canceled.
type returningHub struct{ stubHub }

func (r *returningHub) RunWithContext(context.Context) error {
	r.runs.Add(1)
	return nil
}

var _ suture.Service = (*WebSocketHubService)(nil)

func TestWebSocketHubService_Serve(t *testing.T) {
	t.Run("returns context error on cancellation", func(t *testing.T) {
		hub := &stubHub{}
		svc := NewWebSocketHubService(hub)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(time.Second):
			t.Fatal("Serve did not return after cancellation")
		}
		if hub.runs.Load() != 1 {
			t.Errorf("runs = %d, want 1", hub.runs.Load())
		}
	})

	t.Run("propagates hub errors", func(t *testing.T) {
		want := errors.New("hub startup error")
		err := NewWebSocketHubService(&stubHub{runErr: want}).Serve(context.Background())
		if !errors.Is(err, want) {
			t.Errorf("Serve() error = %v, want %v", err, want)
		}
	})

	t.Run("early clean return is a failure", func(t *testing.T) {
		err := NewWebSocketHubService(&returningHub{}).Serve(context.Background())
		if err == nil {
			t.Error("Serve() error = nil, want failure so the supervisor restarts the hub")
		}
	})
}

func TestWebSocketHubService_String(t *testing.T) {
	if got := NewWebSocketHubService(&stubHub{}).String(); got != "websocket-hub" {
		t.Errorf("String() = %q, want websocket-hub", got)
	}
}

func TestWebSocketHubService_RestartedBySupervisor(t *testing.T) {
	hub := &returningHub{}
	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 100,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          100 * time.Millisecond,
	})
	sup.Add(NewWebSocketHubService(hub))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for hub.runs.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("runs = %d, want a restart", hub.runs.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-errCh
}

func TestWebSocketHubService_RealHubShutsDown(t *testing.T) {
	resolver, err := authz.NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	hub := websocket.NewHub(websocket.Config{
		MaxMessageSize:    4096,
		SendTimeout:       100 * time.Millisecond,
		SendBuffer:        8,
		HeartbeatInterval: time.Second,
		InboundRate:       10,
		InboundBurst:      10,
		ShutdownGrace:     100 * time.Millisecond,
	}, websocket.NewRegistry(10), resolver, nil)
	svc := NewWebSocketHubService(hub)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not shut down")
	}
	if hub.GetClientCount() != 0 {
		t.Errorf("clients after shutdown = %d", hub.GetClientCount())
	}
}
