// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*MockService)(nil)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("creates hierarchical supervisor tree", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  10 * time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.root == nil {
			t.Error("root supervisor should not be nil")
		}
		for l := Layer(0); l < layerCount; l++ {
			if tree.layers[l] == nil {
				t.Errorf("%s supervisor should not be nil", l)
			}
		}
	})

	t.Run("rejects nil logger", func(t *testing.T) {
		if _, err := NewSupervisorTree(nil, TreeConfig{}); err == nil {
			t.Error("NewSupervisorTree(nil) error = nil, want error")
		}
	})

	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
		}
	})
}

func TestSupervisorTreeLayers(t *testing.T) {
	tests := []struct {
		name string
		add  func(*SupervisorTree, suture.Service)
	}{
		{"ingest", func(tr *SupervisorTree, s suture.Service) { tr.AddIngestService(s) }},
		{"core", func(tr *SupervisorTree, s suture.Service) { tr.AddCoreService(s) }},
		{"api", func(tr *SupervisorTree, s suture.Service) { tr.AddAPIService(s) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
			svc := NewMockService(tt.name + "-service")
			tt.add(tree, svc)

			ctx, cancel := context.WithCancel(context.Background())
			errCh := tree.ServeBackground(ctx)

			deadline := time.Now().Add(time.Second)
			for svc.StartCount() < 1 {
				if time.Now().After(deadline) {
					t.Fatalf("%s service was not started", tt.name)
				}
				time.Sleep(5 * time.Millisecond)
			}

			cancel()
			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, context.Canceled) {
					t.Errorf("unexpected error: %v", err)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("tree did not shut down in time")
			}
			if svc.StopCount() != svc.StartCount() {
				t.Errorf("starts = %d, stops = %d", svc.StartCount(), svc.StopCount())
			}
		})
	}
}

func TestSupervisorTreeRemove(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	svc := NewMockService("nats-source")
	token := tree.AddIngestService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(time.Second)
	for svc.StartCount() < 1 {
		if time.Now().After(deadline) {
			t.Fatal("service was not started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := tree.Remove(LayerIngest, token); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	for svc.StopCount() < 1 {
		if time.Now().After(deadline.Add(time.Second)) {
			t.Fatal("removed service did not stop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-errCh
}

func TestSupervisorTreeFailureHandling(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failingSvc := NewMockService("event-router")
	failingSvc.SetFailCount(2)
	stableSvc := NewMockService("http-server")

	tree.AddCoreService(failingSvc)
	tree.AddAPIService(stableSvc)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	go func() { _ = tree.Serve(ctx) }()
	time.Sleep(200 * time.Millisecond)

	if failingSvc.StartCount() < 3 {
		t.Errorf("expected at least 3 starts for failing service, got %d", failingSvc.StartCount())
	}
	if stableSvc.StartCount() != 1 {
		t.Errorf("stable service started %d times, want 1", stableSvc.StartCount())
	}
}

func TestSupervisorTreeUnstoppedServiceReport(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: time.Second})
	tree.AddCoreService(NewMockService("websocket-hub"))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-errCh

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("UnstoppedServiceReport() error = %v", err)
	}
	if len(report) != 0 {
		t.Errorf("unstopped services = %v, want none", report)
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	config := DefaultTreeConfig()
	if config.FailureThreshold != 5.0 {
		t.Errorf("expected FailureThreshold 5.0, got %f", config.FailureThreshold)
	}
	if config.FailureDecay != 30.0 {
		t.Errorf("expected FailureDecay 30.0, got %f", config.FailureDecay)
	}
	if config.FailureBackoff != 15*time.Second {
		t.Errorf("expected FailureBackoff 15s, got %v", config.FailureBackoff)
	}
	if config.ShutdownTimeout != 10*time.Second {
		t.Errorf("expected ShutdownTimeout 10s, got %v", config.ShutdownTimeout)
	}
}

func TestSupervisorTreeLayout(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{})
	tree.AddIngestService(NewMockService("redis-source"))
	tree.AddCoreService(NewMockService("websocket-hub"))
	tree.AddCoreService(NewMockService("heartbeat"))
	tree.AddAPIService(NewMockService("http-server"))

	layout := tree.Layout()
	want := map[string][]string{
		"ingest-layer": {"redis-source"},
		"core-layer":   {"websocket-hub", "heartbeat"},
		"api-layer":    {"http-server"},
	}
	for layer, names := range want {
		got := layout[layer]
		if len(got) != len(names) {
			t.Errorf("%s = %v, want %v", layer, got, names)
			continue
		}
		for i := range names {
			if got[i] != names[i] {
				t.Errorf("%s[%d] = %q, want %q", layer, i, got[i], names[i])
			}
		}
	}
}

func TestLayerString(t *testing.T) {
	if LayerCore.String() != "core-layer" {
		t.Errorf("LayerCore = %q", LayerCore.String())
	}
	if Layer(7).String() != "layer(7)" {
		t.Errorf("Layer(7) = %q", Layer(7).String())
	}
}
