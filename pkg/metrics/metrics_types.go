// Package metrics exposes signal and control loop metrics through a Prometheus registry
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the application
type Registry struct {
	// Signal Metrics
	SignalPhase          *prometheus.GaugeVec
	SignalPhaseChanges   *prometheus.CounterVec
	SignalDecisionsTotal *prometheus.CounterVec
	SignalGreenTime      *prometheus.HistogramVec
	SignalMachineRunning prometheus.Gauge
	SignalObserverErrors prometheus.Counter

	// Loop Metrics
	LoopCyclesTotal     *prometheus.CounterVec
	LoopCycleDuration   prometheus.Histogram
	LoopDetectorGaps    prometheus.Counter
	LoopVehicleCount    *prometheus.GaugeVec
	LoopMovingAverage   *prometheus.GaugeVec
	LoopCongestionLevel *prometheus.GaugeVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initSignalMetrics()
	r.initLoopMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
