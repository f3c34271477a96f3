package signalflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reading is the congestion snapshot of one approach produced by Analyze
type Reading struct {
	Approach      Approach `json:"approach"`
	Count         int      `json:"count"`
	MovingAverage float64  `json:"moving_average"`
	Level         float64  `json:"congestion_level"`
}

// Decision asks the signal machine to give an approach green for a duration
type Decision struct {
	ID        string        `json:"id"`
	Approach  Approach      `json:"direction"`
	GreenTime time.Duration `json:"green_time"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewDecision creates a new decision record
func NewDecision(approach Approach, greenTime time.Duration) Decision {
	return Decision{
		ID:        uuid.New().String(),
		Approach:  approach,
		GreenTime: greenTime,
		CreatedAt: time.Now(),
	}
}

func (d Decision) String() string {
	return fmt.Sprintf("%s for %s", d.Approach, d.GreenTime)
}

// Cause explains why a phase change happened
type Cause string

const (
	// CauseStartup marks the initial phases published by Start
	CauseStartup Cause = "startup"
	// CauseAutonomous marks a change made by the round-robin cycle
	CauseAutonomous Cause = "autonomous"
	// CauseOverride marks a change made while applying a decision
	CauseOverride Cause = "override"
	// CauseReset marks the all-red teardown
	CauseReset Cause = "reset"
)

// PhaseChange is the notification emitted for every phase change of an approach
type PhaseChange struct {
	ID       string    `json:"id"`
	Approach Approach  `json:"approach"`
	From     Phase     `json:"from"`
	To       Phase     `json:"new_phase"`
	At       time.Time `json:"at"`
	Cause    Cause     `json:"cause"`
}

func newPhaseChange(approach Approach, from, to Phase, at time.Time, cause Cause) PhaseChange {
	return PhaseChange{
		ID:       uuid.New().String(),
		Approach: approach,
		From:     from,
		To:       to,
		At:       at,
		Cause:    cause,
	}
}

// ApplyResult represents the result of applying a decision
type ApplyResult struct {
	Decision     Decision
	Applied      bool
	PhaseChanged bool
	Previous     Approach
	Current      Approach
	GreenTime    time.Duration
	Error        error
}

// NewApplyResult creates a new apply result
func NewApplyResult(decision Decision, applied, phaseChanged bool, previous, current Approach) *ApplyResult {
	return &ApplyResult{
		Decision:     decision,
		Applied:      applied,
		PhaseChanged: phaseChanged,
		Previous:     previous,
		Current:      current,
	}
}

// WithError adds an error to the result and marks it as not applied
func (r *ApplyResult) WithError(err error) *ApplyResult {
	r.Error = err
	r.Applied = false
	return r
}

// WithGreenTime records the committed green duration
func (r *ApplyResult) WithGreenTime(d time.Duration) *ApplyResult {
	r.GreenTime = d
	return r
}

// Success returns true if the decision was applied without error
func (r *ApplyResult) Success() bool {
	return r.Applied && r.Error == nil
}
