// Package metrics exposes prometheus counters for crawls, extractions,
// logins and replayed actions. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rednote"

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	registry *prometheus.Registry

	LoginsTotal        *prometheus.CounterVec
	NotesExtracted     prometheus.Counter
	NoteFailures       *prometheus.CounterVec
	ActionsTotal       *prometheus.CounterVec
	FeedReloads        prometheus.Counter
	ExtractionDuration prometheus.Histogram
	ActiveSessions     prometheus.Gauge
}

// New registers every metric on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		LoginsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Interactive login attempts by result.",
		}, []string{"result"}),
		NotesExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notes_extracted_total",
			Help:      "Notes fully extracted.",
		}),
		NoteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "note_failures_total",
			Help:      "Feed items skipped because a stage failed.",
		}, []string{"stage"}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Replayed interactions by kind and result.",
		}, []string{"kind", "result"}),
		FeedReloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_reloads_total",
			Help:      "Scroll-driven feed reloads.",
		}),
		ExtractionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Time from opening a feed item to having its note.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Browser sessions currently open.",
		}),
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (m *Metrics) ObserveLogin(ok bool) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) ObserveNote(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.NotesExtracted.Inc()
	m.ExtractionDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) IncNoteFailure(stage string) {
	if m == nil {
		return
	}
	m.NoteFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveAction(kind string, ok bool) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(kind, result(ok)).Inc()
}

func (m *Metrics) IncFeedReload() {
	if m == nil {
		return
	}
	m.FeedReloads.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
