// Package metrics exposes Prometheus counters for scrape runs and downstream events.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsdesk"

// Skip reasons recorded on ScrapeSkipped.
const (
	ReasonCooldown       = "cooldown"
	ReasonAlreadyRunning = "already_running"
)

// Metrics holds every collector registered by the newsdesk.
type Metrics struct {
	registry *prometheus.Registry

	ScrapeRuns       *prometheus.CounterVec
	ArticlesIngested *prometheus.CounterVec
	ScrapeDuration   *prometheus.HistogramVec
	ScrapeSkipped    *prometheus.CounterVec
	EventsPublished  *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ScrapeRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrape_runs_total",
				Help:      "Completed scrape runs by source and final status",
			},
			[]string{"source", "status"},
		),
		ArticlesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "articles_ingested_total",
				Help:      "Articles appended to the store by source",
			},
			[]string{"source"},
		),
		ScrapeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "scrape_duration_seconds",
				Help:      "Wall time of one source run in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 12), // 0.25s to ~8.5min
			},
			[]string{"source"},
		),
		ScrapeSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scrape_skipped_total",
				Help:      "Triggers that did not start a run",
			},
			[]string{"source", "reason"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "New-article events handed to downstream publishers",
			},
			[]string{"result"},
		),
	}
}

// Registry returns the registry backing these collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one finished run. Safe on a nil receiver.
func (m *Metrics) ObserveRun(source, status string, inserted int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScrapeRuns.WithLabelValues(source, status).Inc()
	m.ScrapeDuration.WithLabelValues(source).Observe(elapsed.Seconds())
	if inserted > 0 {
		m.ArticlesIngested.WithLabelValues(source).Add(float64(inserted))
	}
}

// Skipped records a trigger that was refused.
func (m *Metrics) Skipped(source, reason string) {
	if m == nil {
		return
	}
	m.ScrapeSkipped.WithLabelValues(source, reason).Inc()
}

// Published records downstream delivery outcomes.
func (m *Metrics) Published(delivered, failed int) {
	if m == nil {
		return
	}
	if delivered > 0 {
		m.EventsPublished.WithLabelValues("delivered").Add(float64(delivered))
	}
	if failed > 0 {
		m.EventsPublished.WithLabelValues("failed").Add(float64(failed))
	}
}
