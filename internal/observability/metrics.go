package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveCalls    prometheus.Gauge
	CallEvents     *prometheus.CounterVec
	Turns          *prometheus.CounterVec
	ClassifierPath *prometheus.CounterVec
	ProviderErrors *prometheus.CounterVec
	TurnLatency    prometheus.Histogram

	Stages *TurnStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveCalls: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_calls",
			Help:      "Number of in-flight call sessions.",
		}),
		CallEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_events_total",
			Help:      "Call session events by type.",
		}, []string{"event"}),
		Turns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Processed turns by intent and action taken.",
		}, []string{"intent", "action"}),
		ClassifierPath: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifier_path_total",
			Help:      "Classification outcomes by tier (short, fast, llm, degraded).",
		}, []string{"path"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Upstream provider errors by provider and code.",
		}, []string{"provider", "code"}),
		TurnLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_latency_ms",
			Help:      "End-to-end turn processing latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		Stages: NewTurnStageWindow(256),
	}
}

// ObserveTurn records one completed turn across all turn-level instruments.
func (m *Metrics) ObserveTurn(intent, action string, d time.Duration) {
	if m == nil {
		return
	}
	m.Turns.WithLabelValues(intent, action).Inc()
	m.TurnLatency.Observe(float64(d.Milliseconds()))
	m.Stages.Observe(StageTurnTotal, float64(d.Milliseconds()))
}

// ObserveClassifierPath counts which classification tier answered.
func (m *Metrics) ObserveClassifierPath(path string) {
	if m == nil {
		return
	}
	m.ClassifierPath.WithLabelValues(path).Inc()
}

// CallEvent counts one call lifecycle event.
func (m *Metrics) CallEvent(event string) {
	if m == nil {
		return
	}
	m.CallEvents.WithLabelValues(event).Inc()
}

// SnapshotTurnStages exposes the rolling latency window for the perf endpoint.
func (m *Metrics) SnapshotTurnStages() TurnStageSnapshot {
	if m == nil {
		return TurnStageSnapshot{}
	}
	return m.Stages.Snapshot()
}

// ProviderError counts one upstream failure.
func (m *Metrics) ProviderError(provider, code string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, code).Inc()
}

// ObserveStage records a sub-turn stage latency in the rolling window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.Stages.Observe(stage, float64(d.Microseconds())/1000)
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
