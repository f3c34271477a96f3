package detector

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/anggasct/signalflow"
	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// Script is a recorded sequence of per-cycle counts. A cycle without counts
// is replayed as a detector gap.
//
//	loop: true
//	cycles:
//	  - {north: 5, east: 15, south: 2, west: 8}
//	  - {}
type Script struct {
	Loop   bool                          `yaml:"loop"`
	Cycles []map[signalflow.Approach]int `yaml:"cycles"`
}

// Replay plays a Script back one cycle per call
type Replay struct {
	script Script

	mutex sync.Mutex
	next  int
}

// NewReplay creates a replay of script
func NewReplay(script Script) *Replay {
	return &Replay{script: script}
}

// LoadReplay reads a YAML script
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}

	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to parse replay file %s: %w", path, err)
	}
	if len(script.Cycles) == 0 {
		return nil, signalflow.NewConfigurationError("DetectorConfig", fmt.Sprintf("replay file %s has no cycles", path))
	}

	return NewReplay(script), nil
}

// Counts returns the counts of the next cycle
func (r *Replay) Counts(ctx context.Context) (map[signalflow.Approach]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.next >= len(r.script.Cycles) {
		if !r.script.Loop || len(r.script.Cycles) == 0 {
			return nil, ErrExhausted
		}
		r.next = 0
	}

	cycle := r.script.Cycles[r.next]
	r.next++

	logutil.FromContext(ctx).V(logutil.TRACE).Info("Replaying cycle", "index", r.next-1, "counts", cycle)
	if len(cycle) == 0 {
		return nil, ErrNoCounts
	}

	counts := make(map[signalflow.Approach]int, len(cycle))
	for approach, count := range cycle {
		counts[approach] = count
	}
	return counts, nil
}

// Remaining returns the number of cycles left before the script ends or loops
func (r *Replay) Remaining() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.script.Cycles) - r.next
}

// Close does nothing
func (r *Replay) Close() error {
	return nil
}
