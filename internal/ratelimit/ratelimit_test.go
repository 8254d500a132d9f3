package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitGrantsFirstTokenImmediately(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	if err := r.Wait(ctx, "api.flutter.dev"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait took %v, want near-instant (burst token)", elapsed)
	}
}

func TestNewRegistryWithRateOverridesDefault(t *testing.T) {
	r := NewRegistryWithRate(1000)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// Burst is 1, so the first Wait is free; a fast configured rate should
	// let the second Wait through quickly instead of at the ~500ms default.
	if err := r.Wait(ctx, "api.flutter.dev"); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := r.Wait(ctx, "api.flutter.dev"); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("second Wait at 1000 req/s took %v, want near-instant", elapsed)
	}
}

func TestNewRegistryWithRateFallsBackOnNonPositive(t *testing.T) {
	r := NewRegistryWithRate(0)
	if r.newLimiter == nil {
		t.Fatal("expected a usable limiter factory for a non-positive rate")
	}
}

func TestWaitIsPerHost(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Wait(ctx, "api.flutter.dev"); err != nil {
		t.Fatal(err)
	}
	// A different host must not be throttled by api.flutter.dev's bucket.
	done := make(chan error, 1)
	go func() { done <- r.Wait(ctx, "pub.dev") }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(200 * time.Millisecond):
		t.Error("Wait on a fresh host blocked; registries should be per-host")
	}
}
