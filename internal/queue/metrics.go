package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors published by the controller.
// All methods are nil-receiver safe so tests can run unmetered.
type Metrics struct {
	decisions    *prometheus.CounterVec
	evictions    prometheus.Counter
	sessions     prometheus.Gauge
	buffered     prometheus.Gauge
	flushSeconds prometheus.Histogram
	runFailures  prometheus.Counter
}

// NewMetrics creates the controller collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inlet",
			Subsystem: "queue",
			Name:      "decisions_total",
			Help:      "Submission decisions by outcome.",
		}, []string{"outcome"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inlet",
			Subsystem: "queue",
			Name:      "evictions_total",
			Help:      "Buffered messages discarded by the old drop policy.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inlet",
			Subsystem: "queue",
			Name:      "sessions",
			Help:      "Live sessions.",
		}),
		buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "inlet",
			Subsystem: "queue",
			Name:      "buffered_messages",
			Help:      "Messages currently buffered across all sessions.",
		}),
		flushSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "inlet",
			Subsystem: "queue",
			Name:      "flush_duration_seconds",
			Help:      "Downstream processing time per flushed batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		runFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "inlet",
			Subsystem: "queue",
			Name:      "run_failures_total",
			Help:      "Downstream processor errors.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.decisions, m.evictions, m.sessions, m.buffered, m.flushSeconds, m.runFailures)
	}
	return m
}

func (m *Metrics) decision(outcome Outcome) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) evict(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) setBuffered(n int64) {
	if m == nil {
		return
	}
	m.buffered.Set(float64(n))
}

func (m *Metrics) observeFlush(d time.Duration) {
	if m == nil {
		return
	}
	m.flushSeconds.Observe(d.Seconds())
}

func (m *Metrics) runFailure() {
	if m == nil {
		return
	}
	m.runFailures.Inc()
}
