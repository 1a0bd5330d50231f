package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter caps how often harvest runs may start
type Limiter interface {
	// Allow records a run if the limit permits it
	Allow() bool
	// Wait blocks until a run is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// SlidingWindow allows at most maxRequests within any windowSize interval.
// A non-positive maximum disables the limit.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	capacity := maxRequests
	if capacity < 0 {
		capacity = 0
	}
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, capacity),
		now:         time.Now,
	}
}

// PerHour is a sliding window of n runs per hour
func PerHour(n int) *SlidingWindow {
	return NewSlidingWindow(n, time.Hour)
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.maxRequests <= 0 {
		return true
	}

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}
	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		delay := sw.Delay()
		if delay <= 0 {
			delay = 100 * time.Millisecond
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Delay returns how long until the oldest request leaves the window, or
// zero when a request would be allowed now
func (sw *SlidingWindow) Delay() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.maxRequests <= 0 {
		return 0
	}
	now := sw.now()
	sw.cleanOldRequests(now)
	if len(sw.requests) < sw.maxRequests {
		return 0
	}
	return sw.windowSize - now.Sub(sw.requests[0])
}

// Remaining returns how many requests the current window still allows
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.maxRequests <= 0 {
		return -1
	}
	sw.cleanOldRequests(sw.now())
	return sw.maxRequests - len(sw.requests)
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}
