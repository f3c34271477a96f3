package signalflow

import (
	"fmt"
	"sync"
)

// Observer represents an entity that observes the signal machine
type Observer interface {
	// OnPhaseChange is called for every phase change of an approach
	OnPhaseChange(change PhaseChange)

	// OnDecisionApplied is called when an Apply call completes, successfully or not
	OnDecisionApplied(result *ApplyResult)
}

// ExtendedObserver provides additional optional observation methods
type ExtendedObserver interface {
	Observer

	// OnMachineStarted is called when the owner goroutine starts
	OnMachineStarted(state IntersectionState)

	// OnMachineReset is called after every approach has been forced to red
	OnMachineReset(state IntersectionState)

	// OnError is called when an observer panics or a command fails
	OnError(err error)
}

// BaseObserver provides a default implementation with no-op methods
type BaseObserver struct{}

// OnPhaseChange implements the required Observer method
func (o *BaseObserver) OnPhaseChange(change PhaseChange) {}

// OnDecisionApplied implements the required Observer method
func (o *BaseObserver) OnDecisionApplied(result *ApplyResult) {}

// OnMachineStarted implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineStarted(state IntersectionState) {}

// OnMachineReset implements the optional ExtendedObserver method
func (o *BaseObserver) OnMachineReset(state IntersectionState) {}

// OnError implements the optional ExtendedObserver method
func (o *BaseObserver) OnError(err error) {}

// ObserverFunc adapts a function to an Observer that only sees phase changes
type ObserverFunc func(change PhaseChange)

// OnPhaseChange calls f(change)
func (f ObserverFunc) OnPhaseChange(change PhaseChange) { f(change) }

// OnDecisionApplied does nothing
func (f ObserverFunc) OnDecisionApplied(result *ApplyResult) {}

// ObserverManager manages a collection of observers. Notifications are delivered
// from the machine's owner goroutine; a panicking observer never stops delivery.
type ObserverManager struct {
	mutex     sync.RWMutex
	observers []Observer
}

// NewObserverManager creates a new observer manager
func NewObserverManager() *ObserverManager {
	return &ObserverManager{
		observers: make([]Observer, 0),
	}
}

// AddObserver adds an observer to the manager
func (om *ObserverManager) AddObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	om.observers = append(om.observers, observer)
}

// RemoveObserver removes an observer from the manager
func (om *ObserverManager) RemoveObserver(observer Observer) {
	om.mutex.Lock()
	defer om.mutex.Unlock()
	for i, obs := range om.observers {
		if obs == observer {
			om.observers = append(om.observers[:i], om.observers[i+1:]...)
			break
		}
	}
}

func (om *ObserverManager) snapshot() []Observer {
	om.mutex.RLock()
	defer om.mutex.RUnlock()
	observers := make([]Observer, len(om.observers))
	copy(observers, om.observers)
	return observers
}

// safeNotify runs fn and reports a panic to the observer's OnError when available
func safeNotify(observer Observer, method string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if extObs, ok := observer.(ExtendedObserver); ok {
				func() {
					defer func() { recover() }()
					extObs.OnError(fmt.Errorf("observer panic in %s: %v", method, r))
				}()
			}
		}
	}()
	fn()
}

// NotifyPhaseChange notifies all observers of a phase change
func (om *ObserverManager) NotifyPhaseChange(change PhaseChange) {
	for _, observer := range om.snapshot() {
		safeNotify(observer, "OnPhaseChange", func() { observer.OnPhaseChange(change) })
	}
}

// NotifyDecisionApplied notifies all observers of an Apply outcome
func (om *ObserverManager) NotifyDecisionApplied(result *ApplyResult) {
	for _, observer := range om.snapshot() {
		safeNotify(observer, "OnDecisionApplied", func() { observer.OnDecisionApplied(result) })
	}
}

// NotifyMachineStarted notifies extended observers that the machine started
func (om *ObserverManager) NotifyMachineStarted(state IntersectionState) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			safeNotify(observer, "OnMachineStarted", func() { extObs.OnMachineStarted(state) })
		}
	}
}

// NotifyMachineReset notifies extended observers that the machine was reset
func (om *ObserverManager) NotifyMachineReset(state IntersectionState) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			safeNotify(observer, "OnMachineReset", func() { extObs.OnMachineReset(state) })
		}
	}
}

// NotifyError notifies extended observers of an error
func (om *ObserverManager) NotifyError(err error) {
	for _, observer := range om.snapshot() {
		if extObs, ok := observer.(ExtendedObserver); ok {
			safeNotify(observer, "OnError", func() { extObs.OnError(err) })
		}
	}
}
