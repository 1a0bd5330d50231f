package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	sw := NewSlidingWindow(3, time.Second)

	for i := 0; i < 3; i++ {
		if !sw.Allow() {
			t.Errorf("Expected request %d to be allowed", i+1)
		}
	}

	if sw.Allow() {
		t.Error("Expected request to be denied when limit is reached")
	}
	if sw.Remaining() != 0 {
		t.Errorf("Expected 0 remaining, got %d", sw.Remaining())
	}

	sw.Reset()
	if len(sw.requests) != 0 {
		t.Error("Expected requests to be cleared after reset")
	}
}

func TestSlidingWindowSlides(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sw := PerHour(2)
	sw.now = func() time.Time { return clock }

	sw.Allow()
	clock = clock.Add(20 * time.Minute)
	sw.Allow()

	if sw.Allow() {
		t.Error("Expected third run within the hour to be denied")
	}
	if d := sw.Delay(); d != 40*time.Minute {
		t.Errorf("Expected 40m delay, got %s", d)
	}

	clock = clock.Add(40 * time.Minute)
	if !sw.Allow() {
		t.Error("Expected run to be allowed once the first left the window")
	}
	if sw.Remaining() != 0 {
		t.Errorf("Expected 0 remaining, got %d", sw.Remaining())
	}
}

func TestSlidingWindowUnlimited(t *testing.T) {
	sw := NewSlidingWindow(0, time.Hour)
	for i := 0; i < 100; i++ {
		if !sw.Allow() {
			t.Fatal("Expected a disabled limiter to allow every request")
		}
	}
	if sw.Remaining() != -1 {
		t.Errorf("Expected -1 remaining for unlimited, got %d", sw.Remaining())
	}
}

func TestSlidingWindowWait(t *testing.T) {
	sw := NewSlidingWindow(1, 50*time.Millisecond)

	start := time.Now()
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := sw.Wait(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Expected second wait to block, took %s", elapsed)
	}
}

func TestSlidingWindowWaitCancelled(t *testing.T) {
	sw := PerHour(1)
	sw.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sw.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

var _ Limiter = (*SlidingWindow)(nil)
