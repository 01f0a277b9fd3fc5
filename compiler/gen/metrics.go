package gen

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the run counters of the generator.
type Metrics struct {
	entities    *prometheus.CounterVec
	artifacts   *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	duration    prometheus.Gauge
	gatherer    prometheus.Gatherer
}

// NewMetrics creates the generator metrics and registers them with reg.
// A nil reg uses a private registry. Registering with a registry that
// already holds the metrics reuses the existing collectors, so repeated
// runs in one process accumulate.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{}
	m.entities = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgen_entities_total",
			Help: "Entities processed, by final state",
		},
		[]string{"state"},
	))
	m.artifacts = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgen_artifacts_total",
			Help: "Artifacts handled by the writer, by result",
		},
		[]string{"result"},
	))
	m.diagnostics = register(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubgen_diagnostics_total",
			Help: "Diagnostics recorded, by code and severity",
		},
		[]string{"code", "severity"},
	))
	m.duration = register(reg, prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hubgen_run_duration_seconds",
			Help: "Duration of the last generation run",
		},
	))
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Gatherer returns the registry holding the metrics, if it can be gathered.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// WriteTextfile writes the metrics in textfile-collector format.
func (m *Metrics) WriteTextfile(path string) error {
	if m.gatherer == nil {
		return NewConfigError("Registerer", nil, "metrics registry cannot be gathered")
	}
	return prometheus.WriteToTextfile(path, m.gatherer)
}

func (m *Metrics) entity(s State) {
	m.entities.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) artifact(r WriteResult) {
	m.artifacts.WithLabelValues(r.String()).Inc()
}

func (m *Metrics) diagnostic(d Diagnostic) {
	m.diagnostics.WithLabelValues(string(d.Code), d.Severity.String()).Inc()
}
