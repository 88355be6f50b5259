// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

//go:build !nats

package events

import (
	"context"
	"fmt"

	"github.com/tomtom215/dosehub/internal/config"
)

// NATSSource is a stub for non-NATS builds.
type NATSSource struct{}

// NewNATSSource returns an error in non-NATS builds.
func NewNATSSource(_ config.NATSConfig, _ *Source) (*NATSSource, error) {
	return nil, fmt.Errorf("NATS support not enabled (build with -tags nats)")
}

// ClientURL returns "" in non-NATS builds.
func (n *NATSSource) ClientURL() string { return "" }

// Serve returns immediately in non-NATS builds.
func (n *NATSSource) Serve(_ context.Context) error {
	return fmt.Errorf("NATS support not enabled (build with -tags nats)")
}

// String implements fmt.Stringer.
func (n *NATSSource) String() string { return "nats-source" }

// Close is a no-op stub.
func (n *NATSSource) Close() error { return nil }
