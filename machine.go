package signalflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// Machine represents a signal controller instance
type Machine interface {
	Start() error
	Reset() error

	Apply(decision Decision) *ApplyResult
	ApplyWithContext(ctx context.Context, decision Decision) *ApplyResult

	State() IntersectionState
	Approaches() *Approaches
	Done() <-chan struct{}

	AddObserver(observer Observer)
	RemoveObserver(observer Observer)
}

// Mode is the global operating mode of the signal machine
type Mode int

const (
	// ModeAutonomous runs the round-robin cycle
	ModeAutonomous Mode = iota
	// ModeOverride is set while a decision is being sequenced through clearance
	ModeOverride
)

func (m Mode) String() string {
	if m == ModeOverride {
		return "override"
	}
	return "autonomous"
}

// IntersectionState is an immutable snapshot of the signal machine
type IntersectionState struct {
	Phases        map[Approach]Phase
	Active        Approach
	LastChange    time.Time
	GreenDuration time.Duration
	Mode          Mode
	Stopped       bool
}

// Phase returns the phase of an approach; unknown approaches are red
func (s IntersectionState) Phase(approach Approach) Phase {
	return s.Phases[approach]
}

// NonRed returns the approaches currently green or yellow
func (s IntersectionState) NonRed() []Approach {
	var result []Approach
	for approach, phase := range s.Phases {
		if phase.IsActive() {
			result = append(result, approach)
		}
	}
	return result
}

type machineStatus int

const (
	statusIdle machineStatus = iota
	statusRunning
	statusReset
)

type applyRequest struct {
	decision Decision
	reply    chan *ApplyResult
}

// override tracks a decision being sequenced through yellow clearance
type override struct {
	request  applyRequest
	green    time.Duration
	previous Approach
}

// Option configures a SignalMachine
type Option func(*SignalMachine)

// WithLogger sets the machine logger
func WithLogger(logger logr.Logger) Option {
	return func(m *SignalMachine) {
		m.logger = logger
	}
}

// WithObserver registers an observer before Start
func WithObserver(observer Observer) Option {
	return func(m *SignalMachine) {
		m.observers.AddObserver(observer)
	}
}

// SignalMachine implements Machine. A single owner goroutine holds the
// intersection state; Apply, Reset and the autonomous ticker are serialized
// through its select loop, so clearance delays never block snapshot readers
// and two overrides can never interleave.
type SignalMachine struct {
	config     SignalConfig
	approaches *Approaches
	observers  *ObserverManager
	logger     logr.Logger
	now        func() time.Time

	// owned by the run goroutine once started
	phases     map[Approach]Phase
	active     Approach
	lastChange time.Time
	committed  time.Duration
	mode       Mode
	stopped    bool
	inFlight   *override
	pending    []applyRequest
	clearance  *time.Timer

	snapshot atomic.Pointer[IntersectionState]

	lifecycle sync.Mutex
	status    machineStatus
	applyCh   chan applyRequest
	resetCh   chan struct{}
	done      chan struct{}
	doneOnce  sync.Once
}

// NewSignalMachine creates a machine with the initial approach green and all others red
func NewSignalMachine(config SignalConfig, approaches *Approaches, opts ...Option) (*SignalMachine, error) {
	if approaches == nil {
		return nil, NewConfigurationError("SignalMachine", "approach set is required")
	}
	if err := validateSignal(config); err != nil {
		return nil, err
	}

	initial := config.InitialApproach
	if initial == "" {
		initial = approaches.First()
	}
	if !approaches.Contains(initial) {
		return nil, NewConfigurationError("SignalMachine", "initial approach '"+string(initial)+"' is not a configured approach")
	}

	m := &SignalMachine{
		config:     config,
		approaches: approaches,
		observers:  NewObserverManager(),
		logger:     logr.Discard(),
		now:        time.Now,
		phases:     make(map[Approach]Phase, approaches.Len()),
		active:     initial,
		committed:  config.DefaultGreen,
		mode:       ModeAutonomous,
		applyCh:    make(chan applyRequest),
		resetCh:    make(chan struct{}),
		done:       make(chan struct{}),
	}

	for _, approach := range approaches.All() {
		m.phases[approach] = PhaseRed
	}
	m.phases[initial] = PhaseGreen
	m.lastChange = m.now()

	for _, opt := range opts {
		opt(m)
	}

	m.publish()
	return m, nil
}

// Start launches the owner goroutine and the autonomous cycle
func (m *SignalMachine) Start() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	switch m.status {
	case statusRunning:
		return NewMachineError(ErrCodeAlreadyStarted, "Start", "signal machine is already started")
	case statusReset:
		return NewMachineError(ErrCodeMachineStopped, "Start", "signal machine has been reset")
	}

	m.status = statusRunning
	m.lastChange = m.now()
	m.publish()

	state := m.State()
	m.observers.NotifyPhaseChange(newPhaseChange(m.active, PhaseRed, PhaseGreen, m.lastChange, CauseStartup))
	m.observers.NotifyMachineStarted(state)
	m.logger.Info("Signal machine started", "active", m.active, "greenTime", m.committed)

	go m.run()
	return nil
}

// Reset stops autonomous timing and forces every approach to red. It is
// terminal: the machine accepts no further decisions afterwards.
func (m *SignalMachine) Reset() error {
	m.lifecycle.Lock()
	status := m.status
	m.status = statusReset
	m.lifecycle.Unlock()

	switch status {
	case statusReset:
		<-m.done
		return nil
	case statusIdle:
		m.teardown()
		m.closeDone()
		return nil
	}

	m.resetCh <- struct{}{}
	<-m.done
	return nil
}

// Done is closed once the machine has been reset
func (m *SignalMachine) Done() <-chan struct{} {
	return m.done
}

// Apply sequences a decision and blocks until it is in effect
func (m *SignalMachine) Apply(decision Decision) *ApplyResult {
	return m.ApplyWithContext(context.Background(), decision)
}

// ApplyWithContext is Apply with a context bounding the wait. Cancelling the
// context abandons the wait only; an accepted decision still completes.
func (m *SignalMachine) ApplyWithContext(ctx context.Context, decision Decision) *ApplyResult {
	current := m.State().Active

	if !m.approaches.Contains(decision.Approach) {
		err := NewUnknownApproachError(decision.Approach)
		result := NewApplyResult(decision, false, false, current, current).WithError(err)
		m.observers.NotifyError(err)
		m.observers.NotifyDecisionApplied(result)
		return result
	}

	m.lifecycle.Lock()
	status := m.status
	m.lifecycle.Unlock()

	switch status {
	case statusIdle:
		return NewApplyResult(decision, false, false, current, current).
			WithError(NewMachineError(ErrCodeMachineNotStarted, "Apply", "signal machine is not started"))
	case statusReset:
		return NewApplyResult(decision, false, false, current, current).
			WithError(NewMachineError(ErrCodeMachineStopped, "Apply", "signal machine has been reset"))
	}

	request := applyRequest{decision: decision, reply: make(chan *ApplyResult, 1)}

	select {
	case m.applyCh <- request:
	case <-m.done:
		return NewApplyResult(decision, false, false, current, current).
			WithError(NewMachineError(ErrCodeMachineStopped, "Apply", "signal machine has been reset"))
	case <-ctx.Done():
		return NewApplyResult(decision, false, false, current, current).WithError(ctx.Err())
	}

	select {
	case result := <-request.reply:
		return result
	case <-ctx.Done():
		return NewApplyResult(decision, false, false, current, current).WithError(ctx.Err())
	}
}

// State returns the latest published snapshot
func (m *SignalMachine) State() IntersectionState {
	s := m.snapshot.Load()
	phases := make(map[Approach]Phase, len(s.Phases))
	for k, v := range s.Phases {
		phases[k] = v
	}
	state := *s
	state.Phases = phases
	return state
}

// Approaches returns the configured approach set
func (m *SignalMachine) Approaches() *Approaches {
	return m.approaches
}

// Config returns the signal timing configuration
func (m *SignalMachine) Config() SignalConfig {
	return m.config
}

// AddObserver adds an observer
func (m *SignalMachine) AddObserver(observer Observer) {
	m.observers.AddObserver(observer)
}

// RemoveObserver removes an observer
func (m *SignalMachine) RemoveObserver(observer Observer) {
	m.observers.RemoveObserver(observer)
}

func (m *SignalMachine) run() {
	ticker := time.NewTicker(m.config.TickInterval)
	defer ticker.Stop()
	defer m.closeDone()

	for {
		select {
		case <-ticker.C:
			m.tick(m.now())
		case request := <-m.applyCh:
			if m.inFlight != nil {
				m.pending = append(m.pending, request)
				continue
			}
			m.beginApply(request)
		case <-m.clearanceC():
			m.completeOverride()
		case <-m.resetCh:
			m.teardown()
			return
		}
	}
}

// tick evaluates the autonomous transition rule
func (m *SignalMachine) tick(now time.Time) {
	if m.mode != ModeAutonomous {
		return
	}

	elapsed := now.Sub(m.lastChange)

	switch m.phases[m.active] {
	case PhaseGreen:
		if elapsed >= m.committed {
			m.lastChange = now
			m.setPhase(m.active, PhaseYellow, now, CauseAutonomous)
		}
	case PhaseYellow:
		if elapsed >= m.config.Yellow {
			next := m.approaches.Next(m.active)
			m.setPhase(m.active, PhaseRed, now, CauseAutonomous)
			m.active = next
			m.committed = m.config.DefaultGreen
			m.lastChange = now
			m.setPhase(next, PhaseGreen, now, CauseAutonomous)
		}
	}
}

func (m *SignalMachine) beginApply(request applyRequest) {
	decision := request.decision
	green := m.config.ClampGreen(decision.GreenTime)
	previous := m.active

	if decision.Approach == m.active && m.phases[m.active] == PhaseGreen {
		m.committed = green
		m.publish()
		m.logger.V(logutil.VERBOSE).Info("Adjusted green time", "approach", m.active, "greenTime", green)
		m.finishApply(request, NewApplyResult(decision, true, false, previous, previous).WithGreenTime(green))
		return
	}

	m.mode = ModeOverride
	m.inFlight = &override{request: request, green: green, previous: previous}

	now := m.now()
	switch m.phases[m.active] {
	case PhaseGreen:
		m.lastChange = now
		m.setPhase(m.active, PhaseYellow, now, CauseOverride)
		m.startClearance(m.config.Yellow)
	case PhaseYellow:
		// an autonomous clearance is already running; honour what is left of it
		remaining := m.config.Yellow - now.Sub(m.lastChange)
		if remaining > 0 {
			m.publish()
			m.startClearance(remaining)
			return
		}
		m.completeOverride()
	default:
		m.completeOverride()
	}
}

func (m *SignalMachine) completeOverride() {
	m.stopClearance()

	ov := m.inFlight
	if ov == nil {
		return
	}
	target := ov.request.decision.Approach
	now := m.now()

	for _, approach := range m.approaches.All() {
		if m.phases[approach] != PhaseRed {
			m.setPhase(approach, PhaseRed, now, CauseOverride)
		}
	}

	m.active = target
	m.committed = ov.green
	m.lastChange = now
	m.mode = ModeAutonomous
	m.inFlight = nil
	m.setPhase(target, PhaseGreen, now, CauseOverride)

	m.logger.Info("Switched green", "approach", target, "greenTime", ov.green, "previous", ov.previous)
	m.finishApply(ov.request, NewApplyResult(ov.request.decision, true, true, ov.previous, target).WithGreenTime(ov.green))

	for m.inFlight == nil && len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.beginApply(next)
	}
}

// finishApply notifies observers before replying so that they have seen the
// outcome by the time Apply returns
func (m *SignalMachine) finishApply(request applyRequest, result *ApplyResult) {
	m.observers.NotifyDecisionApplied(result)
	request.reply <- result
}

// teardown forces all-red and fails every outstanding decision
func (m *SignalMachine) teardown() {
	m.stopClearance()

	stoppedErr := NewMachineError(ErrCodeMachineStopped, "Apply", "signal machine has been reset")
	failed := m.pending
	if m.inFlight != nil {
		failed = append([]applyRequest{m.inFlight.request}, failed...)
		m.inFlight = nil
	}
	for _, request := range failed {
		m.observers.NotifyError(stoppedErr)
		m.finishApply(request, NewApplyResult(request.decision, false, false, m.active, m.active).WithError(stoppedErr))
	}
	m.pending = nil

	now := m.now()
	for _, approach := range m.approaches.All() {
		if m.phases[approach] != PhaseRed {
			m.setPhase(approach, PhaseRed, now, CauseReset)
		}
	}

	m.mode = ModeAutonomous
	m.stopped = true
	m.lastChange = now
	m.publish()

	m.observers.NotifyMachineReset(m.State())
	m.logger.Info("Signal machine reset, all approaches red")
}

// setPhase is the only place phases change. Callers lower the previous
// active approach before raising another, so every published snapshot has
// at most one non-red approach.
func (m *SignalMachine) setPhase(approach Approach, phase Phase, at time.Time, cause Cause) {
	from := m.phases[approach]
	m.phases[approach] = phase
	m.publish()

	m.logger.V(logutil.DEBUG).Info("Phase change", "approach", approach, "from", from, "to", phase, "cause", cause)
	m.observers.NotifyPhaseChange(newPhaseChange(approach, from, phase, at, cause))
}

func (m *SignalMachine) publish() {
	phases := make(map[Approach]Phase, len(m.phases))
	for k, v := range m.phases {
		phases[k] = v
	}
	m.snapshot.Store(&IntersectionState{
		Phases:        phases,
		Active:        m.active,
		LastChange:    m.lastChange,
		GreenDuration: m.committed,
		Mode:          m.mode,
		Stopped:       m.stopped,
	})
}

func (m *SignalMachine) startClearance(d time.Duration) {
	m.stopClearance()
	m.clearance = time.NewTimer(d)
}

func (m *SignalMachine) stopClearance() {
	if m.clearance != nil {
		m.clearance.Stop()
		m.clearance = nil
	}
}

func (m *SignalMachine) clearanceC() <-chan time.Time {
	if m.clearance == nil {
		return nil
	}
	return m.clearance.C
}

func (m *SignalMachine) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

var _ Machine = (*SignalMachine)(nil)
