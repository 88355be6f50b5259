// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Layer selects one of the three child supervisors.
type Layer int

const (
	// LayerIngest holds upstream change feeds (NATS, Redis Streams).
	LayerIngest Layer = iota
	// LayerCore holds the hub, heartbeat, event router, notification
	// worker and delivery log sweeper.
	LayerCore
	// LayerAPI holds the HTTP server.
	LayerAPI

	layerCount
)

var layerNames = [layerCount]string{"ingest-layer", "core-layer", "api-layer"}

func (l Layer) String() string {
	if l < 0 || l >= layerCount {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

// TreeConfig holds supervisor tree configuration. Zero fields take the
// values from DefaultTreeConfig.
type TreeConfig struct {
	// FailureThreshold is the decayed failure count that triggers backoff.
	FailureThreshold float64
	// FailureDecay is the failure half-life in seconds.
	FailureDecay float64
	// FailureBackoff is the pause once the threshold is crossed.
	FailureBackoff time.Duration
	// IngestBackoff replaces FailureBackoff for the ingest layer, where a
	// broker outage makes rapid restarts pointless.
	IngestBackoff time.Duration
	// ShutdownTimeout bounds how long each service may take to stop. It must
	// exceed the hub's shutdown grace period.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's defaults plus a 30s ingest backoff.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		IngestBackoff:    30 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

func (c TreeConfig) withDefaults() TreeConfig {
	d := DefaultTreeConfig()
	if c.FailureThreshold == 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = d.FailureDecay
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = d.FailureBackoff
	}
	if c.IngestBackoff == 0 {
		c.IngestBackoff = d.IngestBackoff
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	return c
}

// SupervisorTree is the three-layer suture tree DoseHub runs under:
//
//	dosehub
//	├── ingest-layer   upstream change feeds
//	├── core-layer     hub, heartbeat, router, notifications, sweeper
//	└── api-layer      HTTP server
//
// A failing feed restarts without touching live connections, and the API
// layer keeps answering /health while core services restart.
type SupervisorTree struct {
	root   *suture.Supervisor
	layers [layerCount]*suture.Supervisor
	config TreeConfig

	mu    sync.Mutex
	names [layerCount][]string
}

// NewSupervisorTree builds the tree. Supervisor events are logged through
// logger via sutureslog.
func NewSupervisorTree(logger *slog.Logger, config TreeConfig) (*SupervisorTree, error) {
	if logger == nil {
		return nil, fmt.Errorf("supervisor tree requires a logger")
	}
	config = config.withDefaults()

	handler := &sutureslog.Handler{Logger: logger}
	t := &SupervisorTree{config: config}
	t.root = suture.New("dosehub", suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	})

	// Children inherit the root's event hook when added.
	for l := Layer(0); l < layerCount; l++ {
		spec := suture.Spec{
			FailureThreshold: config.FailureThreshold,
			FailureDecay:     config.FailureDecay,
			FailureBackoff:   config.FailureBackoff,
			Timeout:          config.ShutdownTimeout,
		}
		if l == LayerIngest {
			spec.FailureBackoff = config.IngestBackoff
		}
		t.layers[l] = suture.New(l.String(), spec)
		t.root.Add(t.layers[l])
	}
	return t, nil
}

// Add starts svc under layer once the tree is serving.
func (t *SupervisorTree) Add(layer Layer, svc suture.Service) suture.ServiceToken {
	t.mu.Lock()
	t.names[layer] = append(t.names[layer], fmt.Sprint(svc))
	t.mu.Unlock()
	return t.layers[layer].Add(svc)
}

// Remove stops and removes a service previously added to layer.
func (t *SupervisorTree) Remove(layer Layer, token suture.ServiceToken) error {
	return t.layers[layer].Remove(token)
}

// AddIngestService adds an upstream change feed.
func (t *SupervisorTree) AddIngestService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerIngest, svc)
}

// AddCoreService adds a hub-side service.
func (t *SupervisorTree) AddCoreService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerCore, svc)
}

// AddAPIService adds the HTTP server.
func (t *SupervisorTree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.Add(LayerAPI, svc)
}

// Layout returns the names of the services added to each layer, keyed by
// layer name, in insertion order. Removed services are still listed.
func (t *SupervisorTree) Layout() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]string, layerCount)
	for l := Layer(0); l < layerCount; l++ {
		out[l.String()] = append([]string(nil), t.names[l]...)
	}
	return out
}

// Serve runs the tree until ctx is canceled.
func (t *SupervisorTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine. The channel receives exactly
// one value when the tree stops and is never closed.
func (t *SupervisorTree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *SupervisorTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
