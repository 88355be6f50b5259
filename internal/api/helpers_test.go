// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dosehub/internal/auth"
	"github.com/tomtom215/dosehub/internal/authz"
	"github.com/tomtom215/dosehub/internal/config"
	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/logging"
	"github.com/tomtom215/dosehub/internal/notify"
	"github.com/tomtom215/dosehub/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

type testEnv struct {
	hub      *websocket.Hub
	source   *events.Source
	router   *events.Router
	notifier *notify.Layer
	handler  *Handler
}

func newTestEnv(t *testing.T, maxConnections, sourceBuffer int) *testEnv {
	t.Helper()
	resolver, err := authz.NewResolver(nil)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	hub := websocket.NewHub(websocket.Config{
		MaxMessageSize:    16 * 1024,
		SendTimeout:       time.Second,
		SendBuffer:        16,
		HeartbeatInterval: time.Minute,
		ShutdownGrace:     100 * time.Millisecond,
	}, websocket.NewRegistry(maxConnections), resolver, auth.StaticAuthenticator{})
	t.Cleanup(func() { hub.Shutdown() })

	source := events.NewSource(sourceBuffer)
	notifier := notify.NewLayer(config.NotificationsConfig{
		QueueSize:    10,
		MaxAttempts:  3,
		BaseDelay:    time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		LogRetention: time.Hour,
	}, hub.Broadcaster())
	router := events.NewRouter(source, hub.Broadcaster(), notifier)

	return &testEnv{
		hub:      hub,
		source:   source,
		router:   router,
		notifier: notifier,
		handler: NewHandler(Dependencies{
			Hub:            hub,
			Source:         source,
			Router:         router,
			Notifier:       notifier,
			AllowedOrigins: []string{"https://dashboard.example"},
		}),
	}
}

func (e *testEnv) mux(mw *ChiMiddleware) http.Handler {
	return NewRouter(e.handler, mw, "/ws").SetupChi()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeResponse decodes an APIResponse, re-decoding Data into out when out
// is non-nil.
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder, out any) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	if out != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		if err != nil {
			t.Fatalf("re-marshal data: %v", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return resp
}
