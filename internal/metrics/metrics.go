// Package metrics exposes Prometheus collectors for the scraper service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	batchURLsTotal             *prometheus.CounterVec
	batchSizeURLs              prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		batchURLsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_batch_urls_total",
				Help: "Total number of batch URLs processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		batchSizeURLs = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_batch_size_urls",
				Help:    "Histogram of submitted batch sizes.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveBatch records the size and per-URL outcomes of a completed batch.
func ObserveBatch(total, succeeded, failed int) {
	batchSizeURLs.Observe(float64(total))
	batchURLsTotal.WithLabelValues("succeeded").Add(float64(succeeded))
	batchURLsTotal.WithLabelValues("failed").Add(float64(failed))
}
