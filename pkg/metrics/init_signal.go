package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSignalMetrics() {
	r.SignalPhase = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalflow_signal_phase",
			Help: "Current phase per approach (0=red, 1=yellow, 2=green)",
		},
		[]string{"approach"},
	)

	r.SignalPhaseChanges = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalflow_signal_phase_changes_total",
			Help: "Total number of phase changes",
		},
		[]string{"approach", "phase", "cause"},
	)

	r.SignalDecisionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalflow_signal_decisions_total",
			Help: "Total number of decisions by outcome (switched, adjusted, rejected)",
		},
		[]string{"approach", "outcome"},
	)

	r.SignalGreenTime = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalflow_signal_green_time_seconds",
			Help:    "Committed green duration of applied decisions in seconds",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 75, 90},
		},
		[]string{"approach"},
	)

	r.SignalMachineRunning = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "signalflow_signal_machine_running",
			Help: "1 while the signal machine is running, 0 after reset",
		},
	)

	r.SignalObserverErrors = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "signalflow_signal_observer_errors_total",
			Help: "Total number of errors reported to observers",
		},
	)
}
