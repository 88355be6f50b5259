// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

// Package authz resolves which channels a role may subscribe to.
//
// The policy is a Casbin RBAC model (model.conf) and policy (policy.csv),
// both embedded. NewResolver evaluates the policy once for every known role
// and channel; after construction the Resolver is immutable and safe for
// concurrent use without locking.
package authz

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Channel names known to the hub.
const (
	ChannelAlerts        = "alerts"
	ChannelReadings      = "readings"
	ChannelPersonnel     = "personnel"
	ChannelDevices       = "devices"
	ChannelNotifications = "notifications"
	ChannelSystem        = "system"
)

// Roles known to the policy.
const (
	RoleAdmin      = "admin"
	RoleDoctor     = "doctor"
	RoleNurse      = "nurse"
	RoleTechnician = "technician"
	RoleUser       = "user"

	// RoleUnauthenticated is the role of a connection that has not authenticated.
	// It is allowed no channels.
	RoleUnauthenticated = ""
)

// ActionSubscribe is the Casbin action checked for channel subscriptions.
const ActionSubscribe = "subscribe"

// Channels lists every channel in canonical order.
var Channels = []string{
	ChannelAlerts,
	ChannelReadings,
	ChannelPersonnel,
	ChannelDevices,
	ChannelNotifications,
	ChannelSystem,
}

// Roles lists every role with an explicit policy entry.
var Roles = []string{RoleAdmin, RoleDoctor, RoleNurse, RoleTechnician, RoleUser}

// Config holds configuration for the Resolver.
type Config struct {
	// ModelPath is the path to a Casbin model file. If empty, uses embedded model.
	ModelPath string

	// PolicyPath is the path to a Casbin policy file. If empty, uses embedded policy.
	PolicyPath string

	// DefaultRole is applied to authenticated roles with no policy entry.
	DefaultRole string
}

// Resolver maps roles to their permitted channel sets.
type Resolver struct {
	defaultRole string
	allowed     map[string][]string
	allowedSet  map[string]map[string]struct{}
}

// NewResolver loads the Casbin policy and precomputes each role's channel set.
func NewResolver(cfg *Config) (*Resolver, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = RoleUser
	}

	enforcer, err := newEnforcer(cfg)
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		defaultRole: cfg.DefaultRole,
		allowed:     make(map[string][]string, len(Roles)),
		allowedSet:  make(map[string]map[string]struct{}, len(Roles)),
	}
	for _, role := range Roles {
		set := make(map[string]struct{})
		channels := make([]string, 0, len(Channels))
		for _, ch := range Channels {
			ok, err := enforcer.Enforce(role, ch, ActionSubscribe)
			if err != nil {
				return nil, fmt.Errorf("enforcement failed for %s/%s: %w", role, ch, err)
			}
			if ok {
				channels = append(channels, ch)
				set[ch] = struct{}{}
			}
		}
		r.allowed[role] = channels
		r.allowedSet[role] = set
	}

	if _, ok := r.allowed[r.defaultRole]; !ok {
		return nil, fmt.Errorf("default role %q has no policy entry", r.defaultRole)
	}

	return r, nil
}

func newEnforcer(cfg *Config) (*casbin.SyncedEnforcer, error) {
	var m model.Model
	var err error
	if cfg.ModelPath != "" && fileExists(cfg.ModelPath) {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" && fileExists(cfg.PolicyPath) {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	return enforcer, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			continue
		}

		rule := parts[1:]
		switch parts[0] {
		case "p":
			if len(rule) >= 3 {
				if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
					return fmt.Errorf("failed to add policy %v: %w", rule, err)
				}
			}
		case "g":
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		}
	}
	return nil
}

// normalize maps a role to the policy role it resolves to.
func (r *Resolver) normalize(role string) string {
	if role == RoleUnauthenticated {
		return RoleUnauthenticated
	}
	if _, ok := r.allowed[role]; ok {
		return role
	}
	return r.defaultRole
}

// AllowedChannels returns the channels a role may subscribe to, in canonical order.
// Unrecognized roles resolve to the default role; the unauthenticated role
// resolves to an empty set. The returned slice is a copy.
func (r *Resolver) AllowedChannels(role string) []string {
	role = r.normalize(role)
	if role == RoleUnauthenticated {
		return []string{}
	}
	out := make([]string, len(r.allowed[role]))
	copy(out, r.allowed[role])
	return out
}

// Allows reports whether role may subscribe to channel.
func (r *Resolver) Allows(role, channel string) bool {
	role = r.normalize(role)
	if role == RoleUnauthenticated {
		return false
	}
	_, ok := r.allowedSet[role][channel]
	return ok
}

// FilterSubscriptionRequest partitions requested channels into those the role
// may subscribe to and those it may not. Input order is preserved within each
// partition; both slices are non-nil.
func (r *Resolver) FilterSubscriptionRequest(role string, requested []string) (accepted, rejected []string) {
	accepted = make([]string, 0, len(requested))
	rejected = make([]string, 0)
	for _, ch := range requested {
		if r.Allows(role, ch) {
			accepted = append(accepted, ch)
		} else {
			rejected = append(rejected, ch)
		}
	}
	return accepted, rejected
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
