// Package metrics exposes Prometheus collectors for the dictionary service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	fetchesTotal               *prometheus.CounterVec
	limiterInFlight            prometheus.Gauge
	limiterWaitSeconds         prometheus.Histogram
	rateLimitDelaySeconds      prometheus.Histogram
	registryEntries            prometheus.Gauge
	eventsDroppedTotal         prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dictgen_jobs_total",
				Help: "Total number of dictionary jobs, labeled by lifecycle status.",
			},
			[]string{"status"},
		)

		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dictgen_fetches_total",
				Help: "Total number of outbound word fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		limiterInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dictgen_limiter_in_flight",
				Help: "Number of concurrency permits currently held.",
			},
		)

		limiterWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dictgen_limiter_wait_seconds",
				Help:    "Histogram of time spent waiting for a concurrency permit.",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dictgen_rate_limit_delay_seconds",
				Help:    "Histogram of outbound pacing delays.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10},
			},
		)

		registryEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "dictgen_registry_entries",
				Help: "Number of job entries currently held in the registry.",
			},
		)

		eventsDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dictgen_events_dropped_total",
				Help: "Total number of lifecycle events dropped because the hub buffer was full.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveFetch increments the fetch counter for the given outcome.
func ObserveFetch(outcome string) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(outcome).Inc()
}

// SetLimiterInFlight records the number of held permits.
func SetLimiterInFlight(n int64) {
	if limiterInFlight == nil {
		return
	}
	limiterInFlight.Set(float64(n))
}

// ObserveLimiterWait records how long a caller waited for a permit.
func ObserveLimiterWait(d time.Duration) {
	if limiterWaitSeconds == nil {
		return
	}
	limiterWaitSeconds.Observe(d.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// SetRegistryEntries records the registry size.
func SetRegistryEntries(n int) {
	if registryEntries == nil {
		return
	}
	registryEntries.Set(float64(n))
}

// ObserveEventDropped counts an event the hub could not buffer.
func ObserveEventDropped() {
	if eventsDroppedTotal == nil {
		return
	}
	eventsDroppedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
