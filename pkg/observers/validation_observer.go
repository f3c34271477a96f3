package observers

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anggasct/signalflow"
)

// ValidationObserver checks the observed phase sequence against the signal
// safety rules and records every violation. It is meant for soak tests and
// field monitoring; a correct machine never produces a violation.
type ValidationObserver struct {
	signalflow.BaseObserver

	yellow             time.Duration
	phases             map[signalflow.Approach]signalflow.Phase
	yellowSince        map[signalflow.Approach]time.Time
	visitedPhases      map[signalflow.Approach]map[signalflow.Phase]bool
	allowedTransitions map[signalflow.Phase]map[signalflow.Phase]bool
	violations         []string
	mutex              sync.RWMutex
}

// NewValidationObserver creates a validation observer for a machine whose
// initial approach starts green
func NewValidationObserver(approaches *signalflow.Approaches, initial signalflow.Approach, yellow time.Duration) *ValidationObserver {
	o := &ValidationObserver{
		yellow:        yellow,
		phases:        make(map[signalflow.Approach]signalflow.Phase),
		yellowSince:   make(map[signalflow.Approach]time.Time),
		visitedPhases: make(map[signalflow.Approach]map[signalflow.Phase]bool),
		allowedTransitions: map[signalflow.Phase]map[signalflow.Phase]bool{
			signalflow.PhaseRed:    {signalflow.PhaseGreen: true},
			signalflow.PhaseGreen:  {signalflow.PhaseYellow: true},
			signalflow.PhaseYellow: {signalflow.PhaseRed: true},
		},
		violations: make([]string, 0),
	}

	for _, approach := range approaches.All() {
		o.phases[approach] = signalflow.PhaseRed
		o.visitedPhases[approach] = make(map[signalflow.Phase]bool)
	}
	if initial == "" {
		initial = approaches.First()
	}
	o.phases[initial] = signalflow.PhaseGreen

	return o
}

// OnPhaseChange validates a phase change
func (o *ValidationObserver) OnPhaseChange(change signalflow.PhaseChange) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if visited, ok := o.visitedPhases[change.Approach]; ok {
		visited[change.To] = true
	} else {
		o.violations = append(o.violations, fmt.Sprintf("Phase change for unknown approach '%s'", change.Approach))
		return
	}

	if change.Cause == signalflow.CauseStartup {
		return
	}

	if current := o.phases[change.Approach]; current != change.From {
		o.violations = append(o.violations, fmt.Sprintf(
			"Approach '%s' reported leaving %s but was %s", change.Approach, change.From, current))
	}

	if change.Cause != signalflow.CauseReset && !o.allowedTransitions[change.From][change.To] {
		o.violations = append(o.violations, fmt.Sprintf(
			"Invalid transition from %s to %s on approach '%s'", change.From, change.To, change.Approach))
	}

	switch {
	case change.To == signalflow.PhaseYellow:
		o.yellowSince[change.Approach] = change.At
	case change.From == signalflow.PhaseYellow && change.Cause != signalflow.CauseReset:
		if held := change.At.Sub(o.yellowSince[change.Approach]); held < o.yellow {
			o.violations = append(o.violations, fmt.Sprintf(
				"Approach '%s' cleared yellow after %s, minimum is %s", change.Approach, held, o.yellow))
		}
	}

	o.phases[change.Approach] = change.To

	var active []signalflow.Approach
	for approach, phase := range o.phases {
		if phase.IsActive() {
			active = append(active, approach)
		}
	}
	if len(active) > 1 {
		o.violations = append(o.violations, fmt.Sprintf("Multiple approaches active: %v", active))
	}
}

// OnError records errors as violations. Decisions failed by a reset are expected
// and not recorded.
func (o *ValidationObserver) OnError(err error) {
	if errors.Is(err, signalflow.ErrMachineStopped) {
		return
	}
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.violations = append(o.violations, fmt.Sprintf("Error occurred: %v", err))
}

// GetViolations returns all validation violations
func (o *ValidationObserver) GetViolations() []string {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	result := make([]string, len(o.violations))
	copy(result, o.violations)
	return result
}

// GetUnvisitedApproaches returns approaches that have never been green
func (o *ValidationObserver) GetUnvisitedApproaches() []signalflow.Approach {
	o.mutex.RLock()
	defer o.mutex.RUnlock()

	var unvisited []signalflow.Approach
	for approach, visited := range o.visitedPhases {
		if !visited[signalflow.PhaseGreen] {
			unvisited = append(unvisited, approach)
		}
	}

	return unvisited
}

// HasViolations returns whether any violations occurred
func (o *ValidationObserver) HasViolations() bool {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.violations) > 0
}

var _ signalflow.ExtendedObserver = (*ValidationObserver)(nil)
