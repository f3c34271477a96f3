package observers

import (
	"sync"
	"time"

	"github.com/anggasct/signalflow"
)

// MetricsObserver collects in-memory statistics about signal operation
type MetricsObserver struct {
	phaseVisits      map[signalflow.Approach]map[signalflow.Phase]int
	greenTime        map[signalflow.Approach]time.Duration
	transitionCounts map[string]int
	causeCounts      map[signalflow.Cause]int
	greenSince       map[signalflow.Approach]time.Time
	overrides        int
	adjustments      int
	rejected         int
	errorCount       int
	mutex            sync.RWMutex
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	o := &MetricsObserver{}
	o.reset()
	return o
}

func (o *MetricsObserver) reset() {
	o.phaseVisits = make(map[signalflow.Approach]map[signalflow.Phase]int)
	o.greenTime = make(map[signalflow.Approach]time.Duration)
	o.transitionCounts = make(map[string]int)
	o.causeCounts = make(map[signalflow.Cause]int)
	o.greenSince = make(map[signalflow.Approach]time.Time)
	o.overrides = 0
	o.adjustments = 0
	o.rejected = 0
	o.errorCount = 0
}

// OnPhaseChange records phase visits and accumulates green time
func (o *MetricsObserver) OnPhaseChange(change signalflow.PhaseChange) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	visits, ok := o.phaseVisits[change.Approach]
	if !ok {
		visits = make(map[signalflow.Phase]int)
		o.phaseVisits[change.Approach] = visits
	}
	visits[change.To]++

	o.transitionCounts[change.From.String()+"->"+change.To.String()]++
	o.causeCounts[change.Cause]++

	if change.To == signalflow.PhaseGreen {
		o.greenSince[change.Approach] = change.At
	} else if since, ok := o.greenSince[change.Approach]; ok {
		o.greenTime[change.Approach] += change.At.Sub(since)
		delete(o.greenSince, change.Approach)
	}
}

// OnDecisionApplied counts switches, duration adjustments and rejections
func (o *MetricsObserver) OnDecisionApplied(result *signalflow.ApplyResult) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	switch {
	case !result.Success():
		o.rejected++
	case result.PhaseChanged:
		o.overrides++
	default:
		o.adjustments++
	}
}

// OnMachineStarted implements signalflow.ExtendedObserver
func (o *MetricsObserver) OnMachineStarted(state signalflow.IntersectionState) {}

// OnMachineReset implements signalflow.ExtendedObserver
func (o *MetricsObserver) OnMachineReset(state signalflow.IntersectionState) {}

// OnError records error metrics
func (o *MetricsObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.errorCount++
}

// GetPhaseVisitCounts returns how often each approach entered each phase
func (o *MetricsObserver) GetPhaseVisitCounts() map[signalflow.Approach]map[signalflow.Phase]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[signalflow.Approach]map[signalflow.Phase]int)
	for approach, visits := range o.phaseVisits {
		copied := make(map[signalflow.Phase]int, len(visits))
		for phase, count := range visits {
			copied[phase] = count
		}
		result[approach] = copied
	}
	return result
}

// GetGreenTime returns the completed green time of each approach. A green
// phase still running is not included.
func (o *MetricsObserver) GetGreenTime() map[signalflow.Approach]time.Duration {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[signalflow.Approach]time.Duration)
	for approach, d := range o.greenTime {
		result[approach] = d
	}
	return result
}

// GetGreenShare returns each approach's fraction of completed green time
func (o *MetricsObserver) GetGreenShare() map[signalflow.Approach]float64 {
	greenTime := o.GetGreenTime()

	var total time.Duration
	for _, d := range greenTime {
		total += d
	}

	result := make(map[signalflow.Approach]float64, len(greenTime))
	if total == 0 {
		return result
	}
	for approach, d := range greenTime {
		result[approach] = float64(d) / float64(total)
	}
	return result
}

// GetTransitionCounts returns the number of times each from->to phase transition occurred
func (o *MetricsObserver) GetTransitionCounts() map[string]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[string]int)
	for transition, count := range o.transitionCounts {
		result[transition] = count
	}
	return result
}

// GetCauseCounts returns the number of phase changes per cause
func (o *MetricsObserver) GetCauseCounts() map[signalflow.Cause]int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make(map[signalflow.Cause]int)
	for cause, count := range o.causeCounts {
		result[cause] = count
	}
	return result
}

// GetOverrideCount returns the number of decisions that switched the green approach
func (o *MetricsObserver) GetOverrideCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.overrides
}

// GetAdjustmentCount returns the number of decisions that only changed the green duration
func (o *MetricsObserver) GetAdjustmentCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.adjustments
}

// GetRejectedCount returns the number of decisions that were not applied
func (o *MetricsObserver) GetRejectedCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.rejected
}

// GetErrorCount returns the number of errors
func (o *MetricsObserver) GetErrorCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	return o.errorCount
}

// Reset resets all metrics
func (o *MetricsObserver) Reset() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.reset()
}

var _ signalflow.ExtendedObserver = (*MetricsObserver)(nil)
