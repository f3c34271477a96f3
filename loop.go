package signalflow

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// Detector supplies the per-approach vehicle counts of one cycle
type Detector interface {
	Counts(ctx context.Context) (map[Approach]int, error)
}

// DetectorFunc adapts a function to a Detector
type DetectorFunc func(ctx context.Context) (map[Approach]int, error)

// Counts calls f(ctx)
func (f DetectorFunc) Counts(ctx context.Context) (map[Approach]int, error) {
	return f(ctx)
}

// Applier accepts decisions; SignalMachine implements it
type Applier interface {
	ApplyWithContext(ctx context.Context, decision Decision) *ApplyResult
}

// Recorder receives the outcome of each control loop cycle
type Recorder interface {
	RecordCycle(readings map[Approach]Reading, decision Decision, result *ApplyResult, duration time.Duration)
	RecordDetectorGap(err error)
}

// LoopOption configures a ControlLoop
type LoopOption func(*ControlLoop)

// WithLoopLogger sets the loop logger
func WithLoopLogger(logger logr.Logger) LoopOption {
	return func(l *ControlLoop) {
		l.logger = logger
	}
}

// WithRecorder registers a cycle recorder
func WithRecorder(recorder Recorder) LoopOption {
	return func(l *ControlLoop) {
		l.recorders = append(l.recorders, recorder)
	}
}

// ControlLoop periodically feeds detector counts through the analyzer into the signal machine
type ControlLoop struct {
	detector  Detector
	analyzer  *Analyzer
	applier   Applier
	period    time.Duration
	logger    logr.Logger
	recorders []Recorder
}

// NewControlLoop creates a control loop
func NewControlLoop(detector Detector, analyzer *Analyzer, applier Applier, config LoopConfig, opts ...LoopOption) (*ControlLoop, error) {
	if detector == nil || analyzer == nil || applier == nil {
		return nil, NewConfigurationError("ControlLoop", "detector, analyzer and applier are required")
	}

	collector := NewErrorCollector()
	collectStructErrors(collector, config)
	if err := collector.AsConfigurationError("LoopConfig"); err != nil {
		return nil, err
	}

	l := &ControlLoop{
		detector: detector,
		analyzer: analyzer,
		applier:  applier,
		period:   config.Period,
		logger:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Run executes one cycle immediately and then one per period until ctx is done
func (l *ControlLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	ctx = logutil.IntoContext(ctx, l.logger)
	logger := logutil.FromContext(ctx)

	logger.Info("Control loop started", "period", l.period)
	for {
		l.Cycle(ctx)

		select {
		case <-ctx.Done():
			logger.Info("Control loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Cycle runs a single detect, analyze, decide, apply pass. The detector sees
// the loop logger in its context unless the caller already stored one.
func (l *ControlLoop) Cycle(ctx context.Context) *ApplyResult {
	start := time.Now()

	if _, err := logr.FromContext(ctx); err != nil {
		ctx = logutil.IntoContext(ctx, l.logger)
	}
	logger := logutil.FromContext(ctx)

	counts, err := l.detector.Counts(ctx)
	if err != nil {
		logger.Error(err, "Detector returned no counts, using fallback decision")
		for _, r := range l.recorders {
			r.RecordDetectorGap(err)
		}
		counts = nil
	}

	readings := l.analyzer.Analyze(counts)
	decision := l.analyzer.Decide(readings)
	result := l.applier.ApplyWithContext(ctx, decision)

	if result.Error != nil {
		logger.Error(result.Error, "Decision not applied", "decision", decision.String())
	} else {
		logger.V(logutil.VERBOSE).Info("Cycle complete",
			"readings", readings,
			"decision", decision.String(),
			"phaseChanged", result.PhaseChanged)
	}

	duration := time.Since(start)
	for _, r := range l.recorders {
		r.RecordCycle(readings, decision, result, duration)
	}
	return result
}
