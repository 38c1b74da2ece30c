package middleware

import (
	"net/http"
	"sync/atomic"
	"time"
)

// MetricsCollector counts requests, failures and throttled calls and keeps
// a running latency total.
type MetricsCollector struct {
	requests  atomic.Int64
	errors    atomic.Int64
	throttled atomic.Int64
	latencyNs atomic.Int64
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests       int64   `json:"request_count"`
	Errors         int64   `json:"error_count"`
	Throttled      int64   `json:"throttled_count"`
	AvgLatencyMsec float64 `json:"avg_latency_ms"`
}

func (mc *MetricsCollector) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Requests:  mc.requests.Load(),
		Errors:    mc.errors.Load(),
		Throttled: mc.throttled.Load(),
	}
	if s.Requests > 0 {
		s.AvgLatencyMsec = float64(mc.latencyNs.Load()) / float64(s.Requests) / float64(time.Millisecond)
	}
	return s
}

func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		mc.requests.Add(1)
		mc.latencyNs.Add(int64(time.Since(start)))
		switch {
		case rw.statusCode == http.StatusTooManyRequests:
			mc.throttled.Add(1)
			mc.errors.Add(1)
		case rw.statusCode >= 400:
			mc.errors.Add(1)
		}
	})
}
