// Package metrics defines pulse's prometheus instrumentation.
package metrics

import (
	"time"

	"github.com/pmoves-ai/pulse/internal/probe"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Process states exposed by the State gauge.
const (
	Initializing float64 = iota
	Ready
)

const (
	serviceLabel = "service"
	tierLabel    = "tier"
	statusLabel  = "status"
)

// Metrics holds every collector pulse registers. Construct instances with New.
type Metrics struct {
	registry *prometheus.Registry

	// State is the process lifecycle gauge: 0 initializing, 1 ready.
	State prometheus.Gauge

	// CatalogSize is the number of services in the current catalog.
	CatalogSize prometheus.Gauge

	ProbeDuration *prometheus.HistogramVec
	ServiceUp     *prometheus.GaugeVec
	SweepDuration prometheus.Histogram
}

// New creates a Metrics with a dedicated registry, including the standard go and process
// collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_state",
			Help: "Process state: 0 initializing, 1 ready",
		}),

		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_catalog_services",
			Help: "Number of services in the current catalog",
		}),

		ProbeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pulse_probe_duration_seconds",
				Help:    "Histogram of health probe durations in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{serviceLabel, tierLabel, statusLabel},
		),

		ServiceUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pulse_service_up",
				Help: "Whether the last probe of the service was healthy",
			},
			[]string{serviceLabel, tierLabel},
		),

		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulse_sweep_duration_seconds",
			Help:    "Histogram of full catalog sweep durations in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.State,
		m.CatalogSize,
		m.ProbeDuration,
		m.ServiceUp,
		m.SweepDuration,
	)

	return m
}

// Registry returns the registry all collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveSweep records the outcome of a full sweep.
func (m *Metrics) ObserveSweep(results []probe.Result, elapsed time.Duration) {
	m.SweepDuration.Observe(elapsed.Seconds())

	for _, r := range results {
		m.ProbeDuration.WithLabelValues(r.Service, r.Tier, string(r.Status)).Observe(r.Latency.Seconds())

		up := 0.0
		if r.Status == probe.StatusHealthy {
			up = 1
		}
		m.ServiceUp.WithLabelValues(r.Service, r.Tier).Set(up)
	}
}

// ForgetService removes per-service series, used when a catalog reload drops a service.
func (m *Metrics) ForgetService(service, tier string) {
	m.ServiceUp.DeleteLabelValues(service, tier)
	m.ProbeDuration.DeletePartialMatch(prometheus.Labels{
		serviceLabel: service,
		tierLabel:    tier,
	})
}
