// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/dosehub/internal/events"
	"github.com/tomtom215/dosehub/internal/notify"
	"github.com/tomtom215/dosehub/internal/websocket"
)

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	env.handler.now = func() time.Time { return env.hub.StartedAt().Add(90 * time.Second) }
	if err := env.source.TryPublish(mustEvent(t, `{"entityType":"alert","operation":"INSERT","recordId":1,"record":{"severity":"LOW"}}`)); err != nil {
		t.Fatalf("TryPublish() error = %v", err)
	}

	w := doRequest(t, env.mux(nil), http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var health HealthStatus
	decodeResponse(t, w, &health)
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}
	if health.Uptime != 90 {
		t.Errorf("uptime = %v, want 90", health.Uptime)
	}
	if health.Version != websocket.ServerVersion {
		t.Errorf("version = %q", health.Version)
	}
	if health.Connections != 0 {
		t.Errorf("connections = %d, want 0", health.Connections)
	}
	if health.EventQueueDepth != 1 {
		t.Errorf("eventQueueDepth = %d, want 1", health.EventQueueDepth)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("health response should carry security headers")
	}
}

func TestHealth_NoHub(t *testing.T) {
	h := NewHandler(Dependencies{})
	w := doRequest(t, NewRouter(h, nil, "").SetupChi(), http.MethodGet, "/health", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestWSStats(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	env.router.Route(mustEvent(t, `{"entityType":"dose_reading","operation":"INSERT","recordId":7,"record":{"hp10":1.5}}`))

	w := doRequest(t, env.mux(nil), http.MethodGet, "/api/v1/ws/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var stats ConnectionStats
	decodeResponse(t, w, &stats)
	if stats.TotalConnections != 0 || stats.AuthenticatedConnections != 0 {
		t.Errorf("connections = %+v, want zero", stats.Stats)
	}
	if stats.Events == nil {
		t.Fatal("events stats missing")
	}
	if stats.Events.TotalEvents != 1 {
		t.Errorf("totalEvents = %d, want 1", stats.Events.TotalEvents)
	}
	if stats.Events.LastEventTime == nil {
		t.Error("lastEventTime should be set after routing")
	}
}

func TestNotificationStats(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	n, err := notify.New(notify.TypeHighAlert, "Dose threshold exceeded", nil, nil, time.Now(), 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.notifier.Enqueue(n)

	w := doRequest(t, env.mux(nil), http.MethodGet, "/api/v1/notifications/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var stats notify.Stats
	decodeResponse(t, w, &stats)
	if stats.Queued != 1 {
		t.Errorf("queued = %d, want 1", stats.Queued)
	}
	if stats.TotalSent != 1 {
		t.Errorf("totalSent = %d, want 1", stats.TotalSent)
	}
}

func TestNotificationDelivery(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	n, err := notify.New(notify.TypeCriticalAlert, "Critical dose", nil, nil, time.Now(), 3)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	id := env.notifier.Enqueue(n)
	mux := env.mux(nil)

	t.Run("known id", func(t *testing.T) {
		w := doRequest(t, mux, http.MethodGet, "/api/v1/notifications/"+id, "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var entry notify.LogEntry
		decodeResponse(t, w, &entry)
		if entry.NotificationID != id {
			t.Errorf("notificationId = %q, want %q", entry.NotificationID, id)
		}
		if entry.Status != notify.StatusQueued {
			t.Errorf("status = %q, want queued", entry.Status)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		w := doRequest(t, mux, http.MethodGet, "/api/v1/notifications/notif_0_deadbeef", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestNotificationEndpoints_NoNotifier(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	h := NewHandler(Dependencies{Hub: env.hub, Source: env.source})
	mux := NewRouter(h, nil, "/ws").SetupChi()

	for _, path := range []string{"/api/v1/notifications/stats", "/api/v1/notifications/x"} {
		if w := doRequest(t, mux, http.MethodGet, path, ""); w.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s status = %d, want 503", path, w.Code)
		}
	}
}

func TestPublishEvent(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantErr  string
	}{
		{
			name:     "valid insert",
			body:     `{"entityType":"alert","operation":"INSERT","recordId":12,"record":{"severity":"HIGH"}}`,
			wantCode: http.StatusAccepted,
		},
		{
			name:     "string record id",
			body:     `{"entityType":"device","operation":"UPDATE","recordId":"dev-9","record":{"status":"ACTIVE"}}`,
			wantCode: http.StatusAccepted,
		},
		{
			name:     "malformed json",
			body:     `{"entityType":`,
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeBadRequest,
		},
		{
			name:     "unknown entity",
			body:     `{"entityType":"shipment","operation":"INSERT","recordId":1}`,
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeValidationFailed,
		},
		{
			name:     "insert without record",
			body:     `{"entityType":"alert","operation":"INSERT","recordId":1}`,
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeBadRequest,
		},
		{
			name:     "missing operation",
			body:     `{"entityType":"alert","recordId":1}`,
			wantCode: http.StatusBadRequest,
			wantErr:  ErrCodeValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 10, 4)
			w := doRequest(t, env.mux(nil), http.MethodPost, "/api/v1/events", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantCode, w.Body.String())
			}
			response := decodeResponse(t, w, nil)
			if tt.wantErr != "" {
				if response.Error == nil || response.Error.Code != tt.wantErr {
					t.Errorf("error = %+v, want code %s", response.Error, tt.wantErr)
				}
				if env.source.Len() != 0 {
					t.Errorf("rejected change was queued")
				}
				return
			}
			if env.source.Len() != 1 {
				t.Errorf("source len = %d, want 1", env.source.Len())
			}
		})
	}
}

func TestPublishEvent_AcceptedBody(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	w := doRequest(t, env.mux(nil), http.MethodPost, "/api/v1/events",
		`{"entityType":"personnel","operation":"DELETE","recordId":44}`)

	var accepted EventAccepted
	decodeResponse(t, w, &accepted)
	want := EventAccepted{EntityType: "personnel", Operation: "DELETE", RecordID: "44"}
	if accepted != want {
		t.Errorf("accepted = %+v, want %+v", accepted, want)
	}

	ev := <-env.source.Events()
	if _, ok := ev.(events.Personnel); !ok {
		t.Errorf("queued event = %T, want events.Personnel", ev)
	}
}

func TestPublishEvent_SourceFull(t *testing.T) {
	env := newTestEnv(t, 10, 1)
	mux := env.mux(nil)
	body := `{"entityType":"alert","operation":"INSERT","recordId":1,"record":{"severity":"LOW"}}`

	if w := doRequest(t, mux, http.MethodPost, "/api/v1/events", body); w.Code != http.StatusAccepted {
		t.Fatalf("first publish status = %d, want 202", w.Code)
	}
	w := doRequest(t, mux, http.MethodPost, "/api/v1/events", body)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("second publish status = %d, want 503", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q, want 1", got)
	}
	response := decodeResponse(t, w, nil)
	if response.Error == nil || !strings.Contains(response.Error.Message, "full") {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestNotFoundUsesEnvelope(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	w := doRequest(t, env.mux(nil), http.MethodGet, "/api/v1/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	response := decodeResponse(t, w, nil)
	if response.Error == nil || response.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v", response.Error)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 10, 4)
	w := doRequest(t, env.mux(nil), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "websocket_connections_rejected_total") &&
		!strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics body does not look like Prometheus exposition")
	}
}

func mustEvent(t *testing.T, body string) events.Event {
	t.Helper()
	ev, err := events.ParseChange([]byte(body), time.Now())
	if err != nil {
		t.Fatalf("ParseChange() error = %v", err)
	}
	return ev
}
