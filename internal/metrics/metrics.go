// Package metrics tracks usage counters for externally billed operations.
package metrics

import (
	"sync"
	"time"

	"github.com/hyperjump/webrag/internal/models"
)

// Collector accumulates request counters, a running mean of response times,
// and total token usage. All counters are monotonically non-decreasing;
// total = successful + failed holds after every Record call.
type Collector struct {
	now func() time.Time

	mu                  sync.Mutex
	totalRequests       int64
	successfulRequests  int64
	failedRequests      int64
	averageResponseTime float64 // seconds
	totalTokensUsed     int64
	startTime           time.Time
}

// New returns an empty collector with the clock started now.
func New() *Collector {
	return NewWithClock(time.Now)
}

// NewWithClock returns a collector using a custom clock. Used in tests.
func NewWithClock(now func() time.Time) *Collector {
	return &Collector{now: now, startTime: now()}
}

// Record registers one request outcome, updating the running mean
// incrementally: ((old_avg * (n-1)) + elapsed) / n.
func (c *Collector) Record(success bool, elapsed time.Duration, tokensUsed int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests++
	if success {
		c.successfulRequests++
	} else {
		c.failedRequests++
	}
	n := float64(c.totalRequests)
	c.averageResponseTime = (c.averageResponseTime*(n-1) + elapsed.Seconds()) / n
	c.totalTokensUsed += int64(tokensUsed)
}

// Snapshot returns the current counters. Uptime is derived from the start
// time at call time, not stored.
func (c *Collector) Snapshot() *models.MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &models.MetricsSnapshot{
		TotalRequests:       c.totalRequests,
		SuccessfulRequests:  c.successfulRequests,
		FailedRequests:      c.failedRequests,
		AverageResponseTime: c.averageResponseTime,
		TotalTokensUsed:     c.totalTokensUsed,
		UptimeSeconds:       c.now().Sub(c.startTime).Seconds(),
	}
}

// Reset zeroes all counters and restarts the clock.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests = 0
	c.successfulRequests = 0
	c.failedRequests = 0
	c.averageResponseTime = 0
	c.totalTokensUsed = 0
	c.startTime = c.now()
}

// Restore replaces the counters with the snapshot's values. The start time is
// rebased to now minus the snapshot's uptime, so uptime continues accruing
// from the restored baseline.
func (c *Collector) Restore(snap *models.MetricsSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests = snap.TotalRequests
	c.successfulRequests = snap.SuccessfulRequests
	c.failedRequests = snap.FailedRequests
	c.averageResponseTime = snap.AverageResponseTime
	c.totalTokensUsed = snap.TotalTokensUsed
	c.startTime = c.now().Add(-time.Duration(snap.UptimeSeconds * float64(time.Second)))
}
