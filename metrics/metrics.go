// File: metrics/metrics.go
// License: Apache-2.0

// Package metrics provides Prometheus instrumentation for the quicsilver
// bridge.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	// Drive cycle metrics
	DriveCycles      prometheus.Counter
	CompletionsFired prometheus.Counter
	WaitDuration     prometheus.Histogram

	// Dispatch metrics
	EventsDispatched *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec
	RelayDepth       prometheus.Gauge

	// Record lifecycle metrics
	ActiveRecords *prometheus.GaugeVec
}

// New creates a new Metrics instance registered on reg. A nil reg falls
// back to the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		DriveCycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quicsilver",
			Name:      "drive_cycles_total",
			Help:      "Total number of drive cycles executed",
		}),
		CompletionsFired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "quicsilver",
			Name:      "completions_fired_total",
			Help:      "Total number of readiness completions fired",
		}),
		WaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quicsilver",
			Name:      "wait_duration_seconds",
			Help:      "Readiness wait duration per drive cycle",
			Buckets:   []float64{.0001, .001, .01, .025, .05, .1, .25, .5},
		}),
		EventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quicsilver",
			Name:      "events_dispatched_total",
			Help:      "Total number of events delivered to handlers",
		}, []string{"kind", "route"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quicsilver",
			Name:      "events_dropped_total",
			Help:      "Total number of events dropped before delivery",
		}, []string{"reason"}),
		RelayDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "quicsilver",
			Name:      "relay_queue_depth",
			Help:      "Events pending in the cross-thread relay queue",
		}),
		ActiveRecords: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quicsilver",
			Name:      "active_context_records",
			Help:      "Live context records by handle kind",
		}, []string{"kind"}),
	}
}

// ObserveDrive tracks one drive cycle: the readiness wait duration and the
// number of completions it fired.
func (m *Metrics) ObserveDrive(wait time.Duration, fired int) {
	m.DriveCycles.Inc()
	m.WaitDuration.Observe(wait.Seconds())
	m.CompletionsFired.Add(float64(fired))
}
