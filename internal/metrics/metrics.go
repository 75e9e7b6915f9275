// Package metrics
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the collectors of one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	JobsProcessed   *prometheus.CounterVec
	JobDuration     prometheus.Histogram
	BatchDuration   prometheus.Histogram
	PendingJobs     prometheus.Gauge
	LLMRequests     *prometheus.CounterVec
	LLMTokens       prometheus.Counter
	DedupDecisions  *prometheus.CounterVec
	CleanupAffected *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry, along
// with the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodtruck_jobs_processed_total",
				Help: "Scraping jobs handled by the orchestrator, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		JobDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "foodtruck_job_duration_seconds",
				Help:    "Wall-clock duration of one scraping job.",
				Buckets: prometheus.DefBuckets,
			},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "foodtruck_batch_duration_seconds",
				Help:    "Wall-clock duration of one processing batch.",
				Buckets: []float64{0.5, 1, 2, 5, 9, 15, 30, 60},
			},
		),
		PendingJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "foodtruck_jobs_pending",
				Help: "Pending jobs left after the last batch.",
			},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodtruck_llm_requests_total",
				Help: "LLM extraction requests, labeled by status.",
			},
			[]string{"status"},
		),
		LLMTokens: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "foodtruck_llm_tokens_total",
				Help: "Tokens recorded against the daily LLM budget.",
			},
		),
		DedupDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodtruck_dedup_decisions_total",
				Help: "Duplicate check outcomes, labeled by action.",
			},
			[]string{"action"},
		),
		CleanupAffected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodtruck_cleanup_affected_total",
				Help: "Records changed by cleanup, labeled by operation.",
			},
			[]string{"operation"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "foodtruck_http_requests_total",
				Help: "HTTP requests served, labeled by route and status code.",
			},
			[]string{"route", "code"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.JobsProcessed,
		m.JobDuration,
		m.BatchDuration,
		m.PendingJobs,
		m.LLMRequests,
		m.LLMTokens,
		m.DedupDecisions,
		m.CleanupAffected,
		m.HTTPRequests,
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveJob(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(outcome).Inc()
	m.JobDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBatch(elapsed time.Duration, remaining int) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(elapsed.Seconds())
	m.PendingJobs.Set(float64(remaining))
}

func (m *Metrics) ObserveLLM(status string, tokens int) {
	if m == nil {
		return
	}
	m.LLMRequests.WithLabelValues(status).Inc()
	if tokens > 0 {
		m.LLMTokens.Add(float64(tokens))
	}
}

func (m *Metrics) ObserveDedup(action string) {
	if m == nil {
		return
	}
	m.DedupDecisions.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveCleanup(operation string, affected int) {
	if m == nil || affected <= 0 {
		return
	}
	m.CleanupAffected.WithLabelValues(operation).Add(float64(affected))
}

func (m *Metrics) ObserveHTTP(route string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
