// Package ratelimit provides sliding-window admission control for externally
// billed operations.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultRequestsPerMinute is used when no limit is configured.
const DefaultRequestsPerMinute = 60

const window = 60 * time.Second

// Limiter admits requests while the trailing 60-second window holds fewer than
// the configured number of timestamps. Admission is immediate yes/no; callers
// decide whether to retry later.
type Limiter struct {
	requestsPerMinute int
	now               func() time.Time

	mu       sync.Mutex
	requests []time.Time // monotonically non-decreasing
}

// New creates a limiter admitting requestsPerMinute requests per trailing
// minute. Non-positive limits fall back to DefaultRequestsPerMinute.
func New(requestsPerMinute int) *Limiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	return &Limiter{
		requestsPerMinute: requestsPerMinute,
		now:               time.Now,
	}
}

// NewWithClock creates a limiter with a custom clock. Used in tests.
func NewWithClock(requestsPerMinute int, now func() time.Time) *Limiter {
	l := New(requestsPerMinute)
	l.now = now
	return l
}

// Allow evicts timestamps older than the window, then admits the request
// (recording the current time) iff the window still has room. A denied call
// does not mutate the queue beyond eviction.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	i := 0
	for i < len(l.requests) && l.requests[i].Before(cutoff) {
		i++
	}
	l.requests = l.requests[i:]

	if len(l.requests) < l.requestsPerMinute {
		l.requests = append(l.requests, now)
		return true
	}
	return false
}

// Pending returns the number of timestamps currently in the window.
func (l *Limiter) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}
