package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option tweaks a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace replaces the "clinic" metric prefix. Empty keeps the default.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces the "risk" subsystem, so collectors read
// <namespace>_<subsystem>_predictions_total and so on.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets the millisecond buckets shared by the HTTP,
// prediction latency and GC pause histograms. The prediction value histogram
// keeps its own linear buckets.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithPrometheusRegistry registers collectors on registry instead of the
// default registerer. Tests pass a fresh registry per manager.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
