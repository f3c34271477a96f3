package metrics

import (
	"github.com/anggasct/signalflow"
)

// Observer feeds signal machine notifications into a Registry
type Observer struct {
	registry *Registry
}

// NewObserver creates an observer recording into registry
func NewObserver(registry *Registry) *Observer {
	return &Observer{registry: registry}
}

// OnPhaseChange records the change
func (o *Observer) OnPhaseChange(change signalflow.PhaseChange) {
	o.registry.RecordPhaseChange(change)
}

// OnDecisionApplied records the decision outcome
func (o *Observer) OnDecisionApplied(result *signalflow.ApplyResult) {
	o.registry.RecordDecision(result)
}

// OnMachineStarted publishes the initial phases
func (o *Observer) OnMachineStarted(state signalflow.IntersectionState) {
	o.registry.UpdateIntersectionState(state)
}

// OnMachineReset publishes the all-red phases
func (o *Observer) OnMachineReset(state signalflow.IntersectionState) {
	o.registry.UpdateIntersectionState(state)
}

// OnError counts observer and command errors
func (o *Observer) OnError(err error) {
	o.registry.SignalObserverErrors.Inc()
}

var _ signalflow.ExtendedObserver = (*Observer)(nil)
