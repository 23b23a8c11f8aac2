package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetrics holds the counters collected during one report run.
type RunMetrics struct {
	registry *prometheus.Registry

	SessionsFetched   *prometheus.CounterVec
	SessionsDropped   *prometheus.CounterVec
	SessionsCollected prometheus.Counter
	OutputsRendered   *prometheus.CounterVec
	EnergyKWh         prometheus.Counter
	LastRunTimestamp  prometheus.Gauge
}

// NewRunMetrics registers run counters on a private registry.
func NewRunMetrics(namespace string) *RunMetrics {
	if namespace == "" {
		namespace = "vaeva"
	}
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		SessionsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_fetched_total",
			Help:      "Raw charging sessions returned by vendor backends.",
		}, []string{"site"}),
		SessionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_dropped_total",
			Help:      "Raw charging sessions discarded during normalization.",
		}, []string{"reason"}),
		SessionsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_collected_total",
			Help:      "Normalized sessions available to outputs.",
		}),
		OutputsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outputs_rendered_total",
			Help:      "Render passes completed per output.",
		}, []string{"output", "renderer"}),
		EnergyKWh: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "energy_kwh_total",
			Help:      "Energy delivered by collected sessions.",
		}),
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}),
	}
	m.registry.MustRegister(
		m.SessionsFetched,
		m.SessionsDropped,
		m.SessionsCollected,
		m.OutputsRendered,
		m.EnergyKWh,
		m.LastRunTimestamp,
	)
	return m
}

// Registry exposes the underlying registry (tests, custom exporters).
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *RunMetrics) WriteTextfile(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("metrics: empty textfile path")
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
