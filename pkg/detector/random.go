package detector

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/anggasct/signalflow"
	logutil "github.com/anggasct/signalflow/pkg/logging"
)

// Random simulates a vision pipeline with uniformly distributed counts in [0, maxCount]
type Random struct {
	approaches *signalflow.Approaches
	maxCount   int

	mutex sync.Mutex
	rng   *rand.Rand
}

// NewRandom creates a random source. A zero seed seeds from the clock.
func NewRandom(approaches *signalflow.Approaches, maxCount int, seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxCount < 0 {
		maxCount = 0
	}
	return &Random{
		approaches: approaches,
		maxCount:   maxCount,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Counts returns one random count per approach
func (r *Random) Counts(ctx context.Context) (map[signalflow.Approach]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	counts := make(map[signalflow.Approach]int, r.approaches.Len())
	for _, approach := range r.approaches.All() {
		counts[approach] = r.rng.Intn(r.maxCount + 1)
	}
	logutil.FromContext(ctx).V(logutil.TRACE).Info("Simulated counts", "counts", counts)
	return counts, nil
}

// Close does nothing
func (r *Random) Close() error {
	return nil
}
