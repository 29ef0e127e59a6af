package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Turns               *prometheus.CounterVec
	TurnFailures        *prometheus.CounterVec
	TurnLatency         prometheus.Histogram
	RetrievalDepth      prometheus.Histogram
	RetrievalFallbacks  prometheus.Counter
	EventsSurfaced      prometheus.Counter
	SessionLifecycle    *prometheus.CounterVec
	ArchivedMessages    prometheus.Counter
	ArchiveFailures     *prometheus.CounterVec
	ActiveSocketStreams prometheus.Gauge
}

// NewMetrics registers every collector on reg. Tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Turns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "turns_total",
			Help:      "Chat turns handled, by outcome.",
		}, []string{"outcome"}),
		TurnFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "turn_failures_total",
			Help:      "Chat turns that failed on an external service.",
		}, []string{"stage"}),
		TurnLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "socialsync",
			Name:      "turn_duration_seconds",
			Help:      "Time spent handling one chat turn.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		RetrievalDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "socialsync",
			Name:      "retrieval_depth",
			Help:      "Search calls needed per retrieval, including the fallback.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		RetrievalFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "retrieval_fallbacks_total",
			Help:      "Retrievals that had to use the any-event query.",
		}),
		EventsSurfaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "events_surfaced_total",
			Help:      "Events shown to users.",
		}),
		SessionLifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "session_events_total",
			Help:      "Session lifecycle events: created, reset, completed, expired.",
		}, []string{"event"}),
		ArchivedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "archived_messages_total",
			Help:      "Transcript turns written to the archive.",
		}),
		ArchiveFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialsync",
			Name:      "archive_failures_total",
			Help:      "Archive batches that failed, by retry decision.",
		}, []string{"decision"}),
		ActiveSocketStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "socialsync",
			Name:      "active_chat_sockets",
			Help:      "Open chat websocket connections.",
		}),
	}
}

// ObserveTurn records one finished turn.
func (m *Metrics) ObserveTurn(outcome string, started time.Time) {
	m.Turns.WithLabelValues(outcome).Inc()
	m.TurnLatency.Observe(time.Since(started).Seconds())
}

// NewRegistry returns a registry carrying the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the prometheus text format.
func Handler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
