package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLoopMetrics() {
	r.LoopCyclesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalflow_loop_cycles_total",
			Help: "Total number of control loop cycles",
		},
		[]string{"status"},
	)

	r.LoopCycleDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signalflow_loop_cycle_duration_seconds",
			Help:    "Control loop cycle duration in seconds, including yellow clearance",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1.0, 3.0, 5.0, 10.0},
		},
	)

	r.LoopDetectorGaps = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "signalflow_loop_detector_gaps_total",
			Help: "Total number of cycles without detector counts",
		},
	)

	r.LoopVehicleCount = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalflow_loop_vehicle_count",
			Help: "Latest vehicle count per approach",
		},
		[]string{"approach"},
	)

	r.LoopMovingAverage = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalflow_loop_moving_average",
			Help: "Moving average of vehicle counts per approach",
		},
		[]string{"approach"},
	)

	r.LoopCongestionLevel = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalflow_loop_congestion_level",
			Help: "Congestion level per approach in [0, 1]",
		},
		[]string{"approach"},
	)
}
