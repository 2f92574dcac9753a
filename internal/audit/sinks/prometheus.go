package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kittagency/ydun-scraper/internal/audit"
)

// PrometheusSink exports scrape pipeline metrics via Prometheus. It owns
// all collectors for compliance decisions, rate-limit waits, retries, and
// extraction outcomes.
type PrometheusSink struct {
	decisions      *prometheus.CounterVec
	rateWaits      *prometheus.HistogramVec
	fetchRetries   *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	fetchBytes     *prometheus.CounterVec
	extractions    *prometheus.CounterVec
	batchRuntime   prometheus.Histogram
	batchesStarted prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_compliance_decisions_total",
			Help: "Compliance decisions partitioned by domain and outcome.",
		}, []string{"domain", "outcome"}),
		rateWaits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_wait_seconds",
			Help:    "Time spent waiting on per-domain request spacing.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"domain"}),
		fetchRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_retries_total",
			Help: "Fetch retries partitioned by domain.",
		}, []string{"domain"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by domain.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"domain"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_fetch_bytes_total",
			Help: "Bytes downloaded per domain.",
		}, []string{"domain"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_extractions_total",
			Help: "Extraction completions partitioned by strategy.",
		}, []string{"method"}),
		batchRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_batch_runtime_seconds",
			Help:    "Wall time per completed batch.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_batches_started_total",
			Help: "Total batches that have started.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.decisions,
		s.rateWaits,
		s.fetchRetries,
		s.fetchDuration,
		s.fetchBytes,
		s.extractions,
		s.batchRuntime,
		s.batchesStarted,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register audit collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []audit.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt audit.Event) {
	domain := evt.Domain
	if domain == "" {
		domain = "unknown"
	}
	switch evt.Stage {
	case audit.StageBatchStart:
		s.batchesStarted.Inc()
	case audit.StageBatchDone:
		s.batchRuntime.Observe(evt.Dur.Seconds())
	case audit.StageDecision:
		outcome := "allowed"
		if !evt.Allowed {
			outcome = "blocked"
		}
		s.decisions.WithLabelValues(domain, outcome).Inc()
	case audit.StageRateWait:
		s.rateWaits.WithLabelValues(domain).Observe(evt.Dur.Seconds())
	case audit.StageFetchRetry:
		s.fetchRetries.WithLabelValues(domain).Inc()
	case audit.StageFetchDone:
		s.fetchDuration.WithLabelValues(domain).Observe(evt.Dur.Seconds())
		if evt.Bytes > 0 {
			s.fetchBytes.WithLabelValues(domain).Add(float64(evt.Bytes))
		}
	case audit.StageExtractDone:
		method := evt.Method
		if method == "" {
			method = "none"
		}
		s.extractions.WithLabelValues(method).Inc()
	}
}

// Close implements the Sink interface; collectors stay registered for the
// process lifetime.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
