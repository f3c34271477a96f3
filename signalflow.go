// Package signalflow implements an adaptive intersection control loop: a
// signal machine that cycles right-of-way through the approaches of an
// intersection, a congestion analyzer that turns vehicle counts into timing
// decisions, and a control loop that feeds one into the other.
//
// The machine guarantees that at most one approach is green or yellow at any
// instant and that no approach goes from green to red without a full yellow
// clearance interval, including while decisions preempt the autonomous cycle.
package signalflow

import (
	"github.com/go-logr/logr"
)

// Intersection bundles the analyzer and signal machine of one intersection
type Intersection struct {
	Config     Config
	Approaches *Approaches
	Machine    *SignalMachine
	Analyzer   *Analyzer
}

// NewIntersection validates the configuration and builds the analyzer and signal machine
func NewIntersection(config Config, logger logr.Logger, observers ...Observer) (*Intersection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	approaches, err := config.ApproachSet()
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(logger.WithName("machine"))}
	for _, observer := range observers {
		opts = append(opts, WithObserver(observer))
	}

	machine, err := NewSignalMachine(config.Signal, approaches, opts...)
	if err != nil {
		return nil, err
	}

	analyzer, err := NewAnalyzer(config.Analyzer, config.Signal, approaches, WithAnalyzerLogger(logger.WithName("analyzer")))
	if err != nil {
		return nil, err
	}

	return &Intersection{
		Config:     config,
		Approaches: approaches,
		Machine:    machine,
		Analyzer:   analyzer,
	}, nil
}

// NewControlLoop creates the control loop of this intersection
func (i *Intersection) NewControlLoop(detector Detector, opts ...LoopOption) (*ControlLoop, error) {
	return NewControlLoop(detector, i.Analyzer, i.Machine, i.Config.Loop, opts...)
}
