package signalflow

import (
	"math"
	"sync"
	"time"

	"github.com/go-logr/logr"

	logutil "github.com/anggasct/signalflow/pkg/logging"
	"github.com/anggasct/signalflow/pkg/window"
)

const (
	// BaseGreenTime is the green time granted to an approach with no congestion
	BaseGreenTime = 20 * time.Second
	// CongestionGreenSpan is the extra green time granted at full congestion
	CongestionGreenSpan = 40 * time.Second
)

// Analyzer turns raw vehicle counts into smoothed congestion readings and a
// signal decision. It is safe for concurrent use.
type Analyzer struct {
	config     AnalyzerConfig
	timing     SignalConfig
	approaches *Approaches
	logger     logr.Logger

	mutex   sync.RWMutex
	history map[Approach]*window.Window
	last    map[Approach]Reading
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithAnalyzerLogger sets the analyzer logger
func WithAnalyzerLogger(logger logr.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an analyzer. Signal timing supplies the default and the
// clamping bounds of decided green times.
func NewAnalyzer(config AnalyzerConfig, timing SignalConfig, approaches *Approaches, opts ...AnalyzerOption) (*Analyzer, error) {
	if approaches == nil {
		return nil, NewConfigurationError("Analyzer", "approach set is required")
	}

	collector := NewErrorCollector()
	collectStructErrors(collector, config)
	if err := collector.AsConfigurationError("AnalyzerConfig"); err != nil {
		return nil, err
	}
	if err := validateSignal(timing); err != nil {
		return nil, err
	}

	a := &Analyzer{
		config:     config,
		timing:     timing,
		approaches: approaches,
		logger:     logr.Discard(),
		history:    make(map[Approach]*window.Window),
		last:       make(map[Approach]Reading),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Observe records a vehicle count for an approach. Negative counts are clamped to zero.
func (a *Analyzer) Observe(approach Approach, count int) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.observe(approach, count)
}

func (a *Analyzer) observe(approach Approach, count int) *window.Window {
	if count < 0 {
		count = 0
	}
	w, ok := a.history[approach]
	if !ok {
		w = window.New(a.config.WindowSize)
		a.history[approach] = w
	}
	w.Push(count)
	return w
}

// Analyze records the counts and returns a reading for every configured
// approach present in counts. Missing approaches are not reported.
func (a *Analyzer) Analyze(counts map[Approach]int) map[Approach]Reading {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	readings := make(map[Approach]Reading, len(counts))
	for approach, count := range counts {
		if !a.approaches.Contains(approach) {
			a.logger.V(logutil.DEBUG).Info("Ignoring count for unknown approach", "approach", approach, "count", count)
			continue
		}

		w := a.observe(approach, count)
		avg := w.Mean()
		readings[approach] = Reading{
			Approach:      approach,
			Count:         max(count, 0),
			MovingAverage: avg,
			Level:         math.Min(avg/a.config.CongestionThreshold, 1.0),
		}
	}

	a.last = readings
	return copyReadings(readings)
}

// Decide picks the approach with the strictly greatest congestion level,
// ties going to the earliest approach in cyclic order. Without readings it
// falls back to the first approach with the default green time.
func (a *Analyzer) Decide(readings map[Approach]Reading) Decision {
	best := Approach("")
	bestLevel := -1.0

	for _, approach := range a.approaches.All() {
		reading, ok := readings[approach]
		if !ok {
			continue
		}
		if reading.Level > bestLevel {
			best = approach
			bestLevel = reading.Level
		}
	}

	if best == "" {
		return NewDecision(a.approaches.First(), a.timing.DefaultGreen)
	}

	return NewDecision(best, a.timing.ClampGreen(GreenTimeFor(bestLevel)))
}

// GreenTimeFor maps a congestion level to floor(20 + level*40) seconds
func GreenTimeFor(level float64) time.Duration {
	seconds := math.Floor(BaseGreenTime.Seconds() + level*CongestionGreenSpan.Seconds())
	return time.Duration(seconds) * time.Second
}

// History returns the recorded counts of an approach, oldest first
func (a *Analyzer) History(approach Approach) []int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	if w, ok := a.history[approach]; ok {
		return w.Values()
	}
	return nil
}

// LastReadings returns the readings of the most recent Analyze call
func (a *Analyzer) LastReadings() map[Approach]Reading {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return copyReadings(a.last)
}

func copyReadings(readings map[Approach]Reading) map[Approach]Reading {
	result := make(map[Approach]Reading, len(readings))
	for k, v := range readings {
		result[k] = v
	}
	return result
}
