// Package metrics instruments the critique studio with Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "critvid"

// Drift correction kinds.
const (
	CorrectionSoft = "soft"
	CorrectionHard = "hard"
)

// Metrics holds the studio's collectors.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	SessionsSaved     prometheus.Counter
	SessionsDiscarded prometheus.Counter
	SaveFailures      prometheus.Counter
	DriftCorrections  *prometheus.CounterVec
	DesyncWarnings    prometheus.Counter
	SaveLatency       prometheus.Histogram
	ReplayDrift       prometheus.Histogram
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Critique recordings started.",
		}),
		SessionsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_saved_total",
			Help:      "Critique sessions persisted.",
		}),
		SessionsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_discarded_total",
			Help:      "Recordings discarded before save.",
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_failures_total",
			Help:      "Session saves that failed.",
		}),
		DriftCorrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "drift_corrections_total",
			Help:      "Audio drift corrections during replay by kind (soft, hard).",
		}, []string{"kind"}),
		DesyncWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "desync_warnings_total",
			Help:      "Times audio stayed out of sync across consecutive hard corrections.",
		}),
		SaveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "save_duration_seconds",
			Help:      "Time taken to persist a session.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		ReplayDrift: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "drift_seconds",
			Help:      "Absolute audio/video drift observed per replay tick.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.collectors()...)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.SessionsStarted,
		m.SessionsSaved,
		m.SessionsDiscarded,
		m.SaveFailures,
		m.DriftCorrections,
		m.DesyncWarnings,
		m.SaveLatency,
		m.ReplayDrift,
	}
}
