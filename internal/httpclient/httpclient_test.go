package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/j4ng5y/flutter-docs-mcp-server/internal/breaker"
	"github.com/j4ng5y/flutter-docs-mcp-server/internal/ratelimit"
)

func testPolicy() Policy {
	p := DefaultPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	p.MaxRetries = 2
	return p
}

func newTestClient() *Client {
	return New(testPolicy(), ratelimit.NewRegistry(), breaker.NewRegistry(), zerolog.Nop())
}

func TestGetSuccessOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient()
	body, err := c.Get(context.Background(), srv.URL, "test:id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("got %q", body)
	}
}

func TestGetRetriesOn5xxThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := newTestClient()
	body, err := c.Get(context.Background(), srv.URL, "test:id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("got %q", body)
	}
	if atomic.LoadInt32(&attempts) != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestGetNeverRetriesOn404(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Get(context.Background(), srv.URL, "test:id")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	se, ok := err.(*StatusError)
	if !ok || se.Status != 404 {
		t.Fatalf("expected *StatusError{404}, got %v (%T)", err, err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for a 404, got %d", attempts)
	}
}

func TestGetExhaustsRetriesOn5xxAndTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breakers := breaker.NewRegistry()
	c := New(testPolicy(), ratelimit.NewRegistry(), breakers, zerolog.Nop())

	// failure_threshold defaults to 5; drive it there.
	for i := 0; i < 5; i++ {
		if _, err := c.Get(context.Background(), srv.URL, "test:id"); err == nil {
			t.Fatalf("expected error on attempt %d", i)
		}
	}

	_, err := c.Get(context.Background(), srv.URL, "test:id")
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
}
