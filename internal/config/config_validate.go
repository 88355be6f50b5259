// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package config

import (
	"fmt"
	"time"

	"github.com/tomtom215/dosehub/internal/validation"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := c.validateHub(); err != nil {
		return err
	}

	if err := c.validateNotifications(); err != nil {
		return err
	}

	if err := c.validateNATS(); err != nil {
		return err
	}

	return c.validateRedis()
}

// validateHub checks timing relationships the struct tags cannot express.
func (c *Config) validateHub() error {
	if c.Hub.HeartbeatInterval < time.Second {
		return fmt.Errorf("WS_HEARTBEAT_INTERVAL must be at least 1s, got %v", c.Hub.HeartbeatInterval)
	}
	if c.Hub.SendTimeout <= 0 {
		return fmt.Errorf("WS_SEND_TIMEOUT must be positive, got %v", c.Hub.SendTimeout)
	}
	if c.Hub.InboundRate > 0 && c.Hub.InboundBurst < 1 {
		return fmt.Errorf("WS_INBOUND_BURST must be at least 1 when WS_INBOUND_RATE is set")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.BaseDelay <= 0 {
		return fmt.Errorf("NOTIFY_BASE_DELAY must be positive, got %v", n.BaseDelay)
	}
	if n.MaxDelay < n.BaseDelay {
		return fmt.Errorf("NOTIFY_MAX_DELAY (%v) must not be less than NOTIFY_BASE_DELAY (%v)", n.MaxDelay, n.BaseDelay)
	}
	if n.LogRetention <= 0 {
		return fmt.Errorf("NOTIFY_LOG_RETENTION must be positive, got %v", n.LogRetention)
	}
	if n.SweepInterval <= 0 {
		return fmt.Errorf("NOTIFY_SWEEP_INTERVAL must be positive, got %v", n.SweepInterval)
	}
	return nil
}

// validateNATS validates the upstream feed (only if enabled)
func (c *Config) validateNATS() error {
	if !c.Events.NATS.Enabled {
		return nil
	}
	if c.Events.NATS.URL == "" && !c.Events.NATS.EmbeddedServer {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true")
	}
	if c.Events.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	return nil
}

func (c *Config) validateRedis() error {
	r := c.Events.Redis
	if !r.Enabled {
		return nil
	}
	if r.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if r.Stream == "" || r.Group == "" || r.Consumer == "" {
		return fmt.Errorf("REDIS_STREAM, REDIS_GROUP and REDIS_CONSUMER are required when REDIS_ENABLED=true")
	}
	if r.Block < 0 {
		return fmt.Errorf("REDIS_BLOCK must not be negative, got %v", r.Block)
	}
	return nil
}
