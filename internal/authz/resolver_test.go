// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package authz

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func setupResolver(t *testing.T) *Resolver {
	t.Helper()
	r, err := NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

func TestAllowedChannels_PolicyTable(t *testing.T) {
	t.Parallel()
	r := setupResolver(t)

	tests := []struct {
		role string
		want []string
	}{
		{RoleAdmin, []string{"alerts", "readings", "personnel", "devices", "notifications", "system"}},
		{RoleDoctor, []string{"alerts", "readings", "personnel", "notifications"}},
		{RoleNurse, []string{"alerts", "readings", "notifications"}},
		{RoleTechnician, []string{"readings", "devices", "notifications"}},
		{RoleUser, []string{"readings", "notifications"}},
		{"janitor", []string{"readings", "notifications"}},
		{"ADMIN", []string{"readings", "notifications"}},
		{RoleUnauthenticated, []string{}},
	}

	for _, tt := range tests {
		t.Run("role="+tt.role, func(t *testing.T) {
			got := r.AllowedChannels(tt.role)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedChannels(%q) = %v, want %v", tt.role, got, tt.want)
			}
		})
	}
}

func TestAllowedChannels_ReturnsCopy(t *testing.T) {
	t.Parallel()
	r := setupResolver(t)

	got := r.AllowedChannels(RoleUser)
	got[0] = "system"
	if r.Allows(RoleUser, "system") {
		t.Error("mutating the returned slice changed the resolver")
	}
	if again := r.AllowedChannels(RoleUser); again[0] != "readings" {
		t.Errorf("AllowedChannels(user)[0] = %q after mutation, want readings", again[0])
	}
}

func TestFilterSubscriptionRequest(t *testing.T) {
	t.Parallel()
	r := setupResolver(t)

	tests := []struct {
		name         string
		role         string
		requested    []string
		wantAccepted []string
		wantRejected []string
	}{
		{"admin all", RoleAdmin, []string{"alerts", "system"}, []string{"alerts", "system"}, []string{}},
		{"user partial", RoleUser, []string{"alerts", "readings"}, []string{"readings"}, []string{"alerts"}},
		{"order preserved", RoleNurse, []string{"system", "notifications", "devices", "alerts"},
			[]string{"notifications", "alerts"}, []string{"system", "devices"}},
		{"unknown channel", RoleAdmin, []string{"bogus"}, []string{}, []string{"bogus"}},
		{"unauthenticated", RoleUnauthenticated, []string{"readings"}, []string{}, []string{"readings"}},
		{"empty request", RoleDoctor, nil, []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, rejected := r.FilterSubscriptionRequest(tt.role, tt.requested)
			if !reflect.DeepEqual(accepted, tt.wantAccepted) {
				t.Errorf("accepted = %v, want %v", accepted, tt.wantAccepted)
			}
			if !reflect.DeepEqual(rejected, tt.wantRejected) {
				t.Errorf("rejected = %v, want %v", rejected, tt.wantRejected)
			}
		})
	}
}

// TestFilterSubscriptionRequest_Partition checks, for every role and every subset
// of candidate channel names, that the request is split exactly into the part
// the role is allowed and the remainder.
func TestFilterSubscriptionRequest_Partition(t *testing.T) {
	t.Parallel()
	r := setupResolver(t)

	candidates := append(append([]string{}, Channels...), "bogus", "Alerts")
	roles := append(append([]string{}, Roles...), RoleUnauthenticated, "janitor")

	for _, role := range roles {
		allowed := make(map[string]bool)
		for _, ch := range r.AllowedChannels(role) {
			allowed[ch] = true
		}

		for mask := 0; mask < 1<<len(candidates); mask++ {
			var requested []string
			for i, ch := range candidates {
				if mask&(1<<i) != 0 {
					requested = append(requested, ch)
				}
			}

			accepted, rejected := r.FilterSubscriptionRequest(role, requested)
			if len(accepted)+len(rejected) != len(requested) {
				t.Fatalf("role %q %v: |accepted|+|rejected| = %d, want %d",
					role, requested, len(accepted)+len(rejected), len(requested))
			}
			seen := make(map[string]bool)
			for _, ch := range accepted {
				if !allowed[ch] {
					t.Fatalf("role %q: accepted disallowed channel %q", role, ch)
				}
				seen[ch] = true
			}
			for _, ch := range rejected {
				if allowed[ch] {
					t.Fatalf("role %q: rejected allowed channel %q", role, ch)
				}
				if seen[ch] {
					t.Fatalf("role %q: channel %q in both partitions", role, ch)
				}
			}
		}
	}
}

func TestNewResolver_PolicyFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.csv")
	policy := "p, admin, system, subscribe\np, user, readings, subscribe\n"
	if err := os.WriteFile(policyPath, []byte(policy), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r, err := NewResolver(&Config{PolicyPath: policyPath})
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if got := r.AllowedChannels(RoleAdmin); !reflect.DeepEqual(got, []string{"system"}) {
		t.Errorf("AllowedChannels(admin) = %v, want [system]", got)
	}
	if r.Allows(RoleDoctor, "alerts") {
		t.Error("doctor should have no channels under the custom policy")
	}
}

func TestNewResolver_UnknownDefaultRole(t *testing.T) {
	t.Parallel()

	if _, err := NewResolver(&Config{DefaultRole: "janitor"}); err == nil {
		t.Error("expected error for default role without policy entry")
	}
}
