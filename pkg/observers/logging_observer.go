// Package observers provides observers for monitoring the signal machine
package observers

import (
	"sync"

	"github.com/go-logr/logr"

	"github.com/anggasct/signalflow"
)

// LoggingObserver logs phase changes and applied decisions through a logr.Logger
type LoggingObserver struct {
	mutex     sync.RWMutex
	logger    logr.Logger
	verbosity int
}

// NewLoggingObserver creates a logging observer. Phase changes are logged at
// the given verbosity; decisions one level higher; errors always.
func NewLoggingObserver(logger logr.Logger, verbosity int) *LoggingObserver {
	return &LoggingObserver{
		logger:    logger,
		verbosity: verbosity,
	}
}

// SetVerbosity changes the verbosity of phase change logs
func (o *LoggingObserver) SetVerbosity(verbosity int) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.verbosity = verbosity
}

func (o *LoggingObserver) v(offset int) logr.Logger {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return o.logger.V(o.verbosity + offset)
}

// OnPhaseChange logs the change
func (o *LoggingObserver) OnPhaseChange(change signalflow.PhaseChange) {
	o.v(0).Info("Phase change",
		"approach", change.Approach,
		"from", change.From,
		"to", change.To,
		"cause", change.Cause)
}

// OnDecisionApplied logs the outcome of an Apply call
func (o *LoggingObserver) OnDecisionApplied(result *signalflow.ApplyResult) {
	if result.Error != nil {
		o.logger.Error(result.Error, "Decision rejected", "decision", result.Decision.String())
		return
	}
	o.v(1).Info("Decision applied",
		"decision", result.Decision.String(),
		"previous", result.Previous,
		"current", result.Current,
		"greenTime", result.GreenTime,
		"phaseChanged", result.PhaseChanged)
}

// OnMachineStarted logs the initial green approach
func (o *LoggingObserver) OnMachineStarted(state signalflow.IntersectionState) {
	o.logger.Info("Signal machine started", "active", state.Active, "greenTime", state.GreenDuration)
}

// OnMachineReset logs the all-red teardown
func (o *LoggingObserver) OnMachineReset(state signalflow.IntersectionState) {
	o.logger.Info("Signal machine reset", "phases", state.Phases)
}

// OnError logs errors
func (o *LoggingObserver) OnError(err error) {
	o.logger.Error(err, "Signal machine error")
}

var _ signalflow.ExtendedObserver = (*LoggingObserver)(nil)
