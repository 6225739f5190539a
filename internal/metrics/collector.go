package metrics

import (
	"sync/atomic"
	"time"
)

// Collector tracks live gateway metrics using atomic counters for
// lock-free, concurrent-safe updates. It provides an in-memory real-time
// view of dispatch throughput and redirect behaviour.
type Collector struct {
	dispatches       int64
	intercepts       int64
	forwards         int64
	downstreamErrors int64

	activeRequests int64

	startTime time.Time
}

// Stats is a point-in-time snapshot of the collector's counters,
// suitable for JSON serialisation.
type Stats struct {
	Uptime           string  `json:"uptime"`
	Dispatches       int64   `json:"dispatches"`
	Intercepts       int64   `json:"intercepts"`
	Forwards         int64   `json:"forwards"`
	DownstreamErrors int64   `json:"downstream_errors"`
	InterceptRate    float64 `json:"intercept_rate"`
	ActiveRequests   int64   `json:"active_requests"`
}

// NewCollector creates a new Collector with all counters initialised to
// zero and the start time set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// RecordIntercept counts a dispatch answered by the redirect policy.
func (c *Collector) RecordIntercept() {
	atomic.AddInt64(&c.dispatches, 1)
	atomic.AddInt64(&c.intercepts, 1)
}

// RecordForward counts a dispatch forwarded downstream. failed marks
// dispatches whose downstream result resolved with an error.
func (c *Collector) RecordForward(failed bool) {
	atomic.AddInt64(&c.dispatches, 1)
	atomic.AddInt64(&c.forwards, 1)
	if failed {
		atomic.AddInt64(&c.downstreamErrors, 1)
	}
}

// IncrementActive increments the active request counter. Call this when a
// request enters the pipeline.
func (c *Collector) IncrementActive() {
	atomic.AddInt64(&c.activeRequests, 1)
}

// DecrementActive decrements the active request counter. Call this when a
// request leaves the pipeline (regardless of success or failure).
func (c *Collector) DecrementActive() {
	atomic.AddInt64(&c.activeRequests, -1)
}

// Stats returns a point-in-time snapshot of all metrics.
func (c *Collector) Stats() *Stats {
	dispatches := atomic.LoadInt64(&c.dispatches)
	intercepts := atomic.LoadInt64(&c.intercepts)

	var interceptRate float64
	if dispatches > 0 {
		interceptRate = float64(intercepts) / float64(dispatches) * 100
	}

	return &Stats{
		Uptime:           time.Since(c.startTime).Round(time.Second).String(),
		Dispatches:       dispatches,
		Intercepts:       intercepts,
		Forwards:         atomic.LoadInt64(&c.forwards),
		DownstreamErrors: atomic.LoadInt64(&c.downstreamErrors),
		InterceptRate:    interceptRate,
		ActiveRequests:   atomic.LoadInt64(&c.activeRequests),
	}
}
