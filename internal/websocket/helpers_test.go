// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package websocket

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dosehub/internal/authz"
	"github.com/tomtom215/dosehub/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

// staticAuth accepts any credentials and echoes the requested role.
type staticAuth struct{}

func (staticAuth) Authenticate(_ context.Context, _, userID, role string) (Authenticated, error) {
	return Authenticated{UserID: userID, Role: role}, nil
}

// rejectAuth rejects every credential.
type rejectAuth struct{}

func (rejectAuth) Authenticate(context.Context, string, string, string) (Authenticated, error) {
	return Authenticated{}, ErrInvalidCredentials
}

func testResolver(t *testing.T) *authz.Resolver {
	t.Helper()
	r, err := authz.NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	return r
}

// newTestConn creates a connection with no transport; frames stay on its
// send queue where tests can read them.
func newTestConn(sendBuffer int) *Conn {
	return newConn(nil, sendBuffer, nil, time.Now())
}

func registerTestConn(t *testing.T, r *Registry) *Conn {
	t.Helper()
	c := newTestConn(16)
	if err := r.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return c
}

// nextFrame pops and decodes the next queued frame.
func nextFrame(t *testing.T, c *Conn) map[string]any {
	t.Helper()
	select {
	case frame := <-c.send:
		var out map[string]any
		if err := json.Unmarshal(frame, &out); err != nil {
			t.Fatalf("frame is not JSON: %v", err)
		}
		return out
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
		return nil
	}
}

func expectNoFrame(t *testing.T, c *Conn) {
	t.Helper()
	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame: %s", frame)
	default:
	}
}

func errorCode(frame map[string]any) string {
	body, ok := frame["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := body["code"].(string)
	return code
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, _ := item.(string)
		out = append(out, s)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
