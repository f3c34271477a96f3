package signalflow

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// RecordingObserver captures every notification for assertions
type RecordingObserver struct {
	BaseObserver

	mutex   sync.RWMutex
	Changes []PhaseChange
	Results []*ApplyResult
	Started []IntersectionState
	Resets  []IntersectionState
	Errors  []error
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

func (o *RecordingObserver) OnPhaseChange(change PhaseChange) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Changes = append(o.Changes, change)
}

func (o *RecordingObserver) OnDecisionApplied(result *ApplyResult) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Results = append(o.Results, result)
}

func (o *RecordingObserver) OnMachineStarted(state IntersectionState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Started = append(o.Started, state)
}

func (o *RecordingObserver) OnMachineReset(state IntersectionState) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Resets = append(o.Resets, state)
}

func (o *RecordingObserver) OnError(err error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	o.Errors = append(o.Errors, err)
}

func (o *RecordingObserver) PhaseChanges() []PhaseChange {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make([]PhaseChange, len(o.Changes))
	copy(result, o.Changes)
	return result
}

func (o *RecordingObserver) ChangeCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Changes)
}

func (o *RecordingObserver) ErrorList() []error {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	result := make([]error, len(o.Errors))
	copy(result, o.Errors)
	return result
}

func (o *RecordingObserver) ResultCount() int {
	o.mutex.RLock()
	defer o.mutex.RUnlock()
	return len(o.Results)
}

// CheckSafety replays the recorded changes from the initial state and returns
// the first violation of the single-green rule or the yellow clearance rule.
// Reset teardown is exempt from the clearance rule.
func (o *RecordingObserver) CheckSafety(approaches *Approaches, initial Approach, yellow time.Duration) error {
	phases := make(map[Approach]Phase)
	for _, a := range approaches.All() {
		phases[a] = PhaseRed
	}
	phases[initial] = PhaseGreen
	yellowSince := make(map[Approach]time.Time)

	for i, change := range o.PhaseChanges() {
		if change.Cause == CauseStartup {
			continue
		}
		if phases[change.Approach] != change.From {
			return fmt.Errorf("change %d: %s reported from %s but was %s", i, change.Approach, change.From, phases[change.Approach])
		}
		if change.From == PhaseGreen && change.To == PhaseRed && change.Cause != CauseReset {
			return fmt.Errorf("change %d: %s went green to red without yellow", i, change.Approach)
		}
		if change.To == PhaseYellow {
			yellowSince[change.Approach] = change.At
		}
		if change.From == PhaseYellow && change.To == PhaseRed && change.Cause != CauseReset {
			if held := change.At.Sub(yellowSince[change.Approach]); held < yellow {
				return fmt.Errorf("change %d: %s yellow held %s, want >= %s", i, change.Approach, held, yellow)
			}
		}

		phases[change.Approach] = change.To

		nonRed := 0
		for _, p := range phases {
			if p != PhaseRed {
				nonRed++
			}
		}
		if nonRed > 1 {
			return fmt.Errorf("change %d: %d approaches non-red after %s -> %s on %s", i, nonRed, change.From, change.To, change.Approach)
		}
	}
	return nil
}

func testSignalConfig() SignalConfig {
	return SignalConfig{
		DefaultGreen: 10 * time.Second,
		MinGreen:     50 * time.Millisecond,
		MaxGreen:     20 * time.Second,
		Yellow:       30 * time.Millisecond,
		TickInterval: 2 * time.Millisecond,
	}
}

func newTestMachine(t *testing.T, config SignalConfig, observers ...Observer) *SignalMachine {
	t.Helper()

	opts := make([]Option, 0, len(observers))
	for _, o := range observers {
		opts = append(opts, WithObserver(o))
	}

	m, err := NewSignalMachine(config, MustApproaches(DefaultApproaches...), opts...)
	if err != nil {
		t.Fatalf("Expected no error creating machine, got: %v", err)
	}
	t.Cleanup(func() { _ = m.Reset() })
	return m
}

func AssertPhases(t *testing.T, state IntersectionState, expected map[Approach]Phase) {
	t.Helper()
	for approach, phase := range expected {
		if state.Phase(approach) != phase {
			t.Errorf("Expected %s to be %s, got %s", approach, phase, state.Phase(approach))
		}
	}
}

func AssertSingleActive(t *testing.T, state IntersectionState) {
	t.Helper()
	if nonRed := state.NonRed(); len(nonRed) > 1 {
		t.Errorf("Expected at most one non-red approach, got %v", nonRed)
	}
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
