package metrics

import (
	"time"

	"github.com/anggasct/signalflow"
)

// Decision outcomes
const (
	OutcomeSwitched = "switched"
	OutcomeAdjusted = "adjusted"
	OutcomeRejected = "rejected"
)

// RecordPhaseChange records a phase change and updates the phase gauge
func (r *Registry) RecordPhaseChange(change signalflow.PhaseChange) {
	approach := string(change.Approach)
	r.SignalPhase.WithLabelValues(approach).Set(float64(change.To))
	r.SignalPhaseChanges.WithLabelValues(approach, change.To.String(), string(change.Cause)).Inc()
}

// RecordDecision records the outcome of an Apply call
func (r *Registry) RecordDecision(result *signalflow.ApplyResult) {
	approach := string(result.Decision.Approach)

	switch {
	case !result.Success():
		r.SignalDecisionsTotal.WithLabelValues(approach, OutcomeRejected).Inc()
		return
	case result.PhaseChanged:
		r.SignalDecisionsTotal.WithLabelValues(approach, OutcomeSwitched).Inc()
	default:
		r.SignalDecisionsTotal.WithLabelValues(approach, OutcomeAdjusted).Inc()
	}
	r.SignalGreenTime.WithLabelValues(approach).Observe(result.GreenTime.Seconds())
}

// UpdateIntersectionState sets the phase gauges from a snapshot
func (r *Registry) UpdateIntersectionState(state signalflow.IntersectionState) {
	for approach, phase := range state.Phases {
		r.SignalPhase.WithLabelValues(string(approach)).Set(float64(phase))
	}
	if state.Stopped {
		r.SignalMachineRunning.Set(0)
	} else {
		r.SignalMachineRunning.Set(1)
	}
}

// RecordCycle implements signalflow.Recorder
func (r *Registry) RecordCycle(readings map[signalflow.Approach]signalflow.Reading, decision signalflow.Decision, result *signalflow.ApplyResult, duration time.Duration) {
	status := "success"
	if result == nil || result.Error != nil {
		status = "error"
	}
	r.LoopCyclesTotal.WithLabelValues(status).Inc()
	r.LoopCycleDuration.Observe(duration.Seconds())

	for approach, reading := range readings {
		label := string(approach)
		r.LoopVehicleCount.WithLabelValues(label).Set(float64(reading.Count))
		r.LoopMovingAverage.WithLabelValues(label).Set(reading.MovingAverage)
		r.LoopCongestionLevel.WithLabelValues(label).Set(reading.Level)
	}
}

// RecordDetectorGap implements signalflow.Recorder
func (r *Registry) RecordDetectorGap(err error) {
	r.LoopDetectorGaps.Inc()
}

var _ signalflow.Recorder = (*Registry)(nil)
