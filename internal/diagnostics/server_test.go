package diagnostics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNew_EmptyAddrDisabled(t *testing.T) {
	if s := New(Config{}, func() bool { return true }); s != nil {
		t.Fatalf("expected nil Server for empty Addr")
	}
}

func TestServer_HealthzReflectsHealthFunc(t *testing.T) {
	healthy := true
	s := New(Config{Addr: "127.0.0.1:0"}, func() bool { return healthy })
	if s == nil {
		t.Fatalf("expected non-nil Server")
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 when healthy, got %d", rec.Code)
	}

	healthy = false
	rec = httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when unhealthy, got %d", rec.Code)
	}
}

func TestServer_StartStopsOnContextCancel(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, func() bool { return true })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Start did not return after context cancellation")
	}
}
