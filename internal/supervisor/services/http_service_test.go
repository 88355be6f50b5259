// DoseHub - Real-Time Radiation Dose Monitoring Hub
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dosehub

package services

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// stubServer serves until Shutdown, or fails immediately with serveErr.
type stubServer struct {
	serveErr    error
	shutdownErr error
	serving     chan struct{}
	stop        chan struct{}
	shutdowns   atomic.Int32
}

func newStubServer() *stubServer {
	return &stubServer{serving: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (s *stubServer) Serve(l net.Listener) error {
	defer l.Close()
	select {
	case s.serving <- struct{}{}:
	default:
	}
	if s.serveErr != nil {
		return s.serveErr
	}
	<-s.stop
	return http.ErrServerClosed
}

func (s *stubServer) Shutdown(context.Context) error {
	if s.shutdowns.Add(1) == 1 {
		close(s.stop)
	}
	return s.shutdownErr
}

func waitServing(t *testing.T, s *stubServer) {
	t.Helper()
	select {
	case <-s.serving:
	case <-time.After(time.Second):
		t.Fatal("server did not start serving")
	}
}

func TestNewHTTPServerService_DefaultTimeout(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		svc := NewHTTPServerService(newStubServer(), "127.0.0.1:0", d)
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("shutdownTimeout(%v) = %v, want 10s", d, svc.shutdownTimeout)
		}
	}
}

func TestHTTPServerService_Serve(t *testing.T) {
	t.Run("binds, reports addr and shuts down on cancel", func(t *testing.T) {
		stub := newStubServer()
		svc := NewHTTPServerService(stub, "127.0.0.1:0", time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		waitServing(t, stub)

		if addr := svc.Addr(); !strings.HasPrefix(addr, "127.0.0.1:") || strings.HasSuffix(addr, ":0") {
			t.Errorf("Addr() = %q, want bound 127.0.0.1 port", addr)
		}

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() error = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if stub.shutdowns.Load() != 1 {
			t.Errorf("Shutdown calls = %d, want 1", stub.shutdowns.Load())
		}
		if svc.Addr() != "" {
			t.Errorf("Addr() after stop = %q, want empty", svc.Addr())
		}
	})

	t.Run("port in use is a service failure", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Listen() error = %v", err)
		}
		defer ln.Close()

		svc := NewHTTPServerService(newStubServer(), ln.Addr().String(), time.Second)
		err = svc.Serve(context.Background())
		if err == nil || !strings.Contains(err.Error(), "listen on") {
			t.Errorf("Serve() error = %v, want listen failure", err)
		}
	})

	t.Run("serve error is returned", func(t *testing.T) {
		stub := newStubServer()
		stub.serveErr = errors.New("accept: too many open files")
		svc := NewHTTPServerService(stub, "127.0.0.1:0", time.Second)

		err := svc.Serve(context.Background())
		if err == nil || !strings.Contains(err.Error(), "too many open files") {
			t.Errorf("Serve() error = %v", err)
		}
	})

	t.Run("shutdown error is returned", func(t *testing.T) {
		stub := newStubServer()
		stub.shutdownErr = errors.New("deadline exceeded")
		svc := NewHTTPServerService(stub, "127.0.0.1:0", time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		waitServing(t, stub)
		cancel()

		err := <-done
		if err == nil || !strings.Contains(err.Error(), "shutdown failed") {
			t.Errorf("Serve() error = %v, want shutdown failure", err)
		}
	})
}

func TestHTTPServerService_String(t *testing.T) {
	if got := NewHTTPServerService(newStubServer(), ":0", 0).String(); got != "http-server" {
		t.Errorf("String() = %q, want http-server", got)
	}
}

func TestHTTPServerService_RealServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":"healthy"}`)
	})
	svc := NewHTTPServerService(&http.Server{Handler: mux, ReadHeaderTimeout: time.Second}, "127.0.0.1:0", time.Second)

	sup := suture.NewSimple("test")
	sup.Add(svc)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for svc.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server never bound")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := http.Get("http://" + svc.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "healthy") {
		t.Errorf("body = %q", body)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
