// Package detector provides the vehicle count sources feeding the control loop
package detector

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/anggasct/signalflow"
)

var (
	// ErrNoCounts is returned when no counts arrived since the previous cycle
	ErrNoCounts = errors.New("no vehicle counts available")

	// ErrExhausted is returned by a non-looping replay after its last cycle
	ErrExhausted = errors.New("replay script exhausted")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("detector closed")
)

// Source is a detector owning external resources
type Source interface {
	signalflow.Detector
	Close() error
}

// New creates the source selected by config.Mode
func New(config signalflow.DetectorConfig, approaches *signalflow.Approaches, logger logr.Logger) (Source, error) {
	switch config.Mode {
	case "", "random":
		return NewRandom(approaches, config.MaxCount, config.Seed), nil
	case "replay":
		return LoadReplay(config.ReplayFile)
	case "subscribe":
		return NewSubscriber(config.Address, logger)
	default:
		return nil, signalflow.NewConfigurationError("DetectorConfig", fmt.Sprintf("unknown detector mode '%s'", config.Mode))
	}
}
