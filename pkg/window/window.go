// Package window provides a fixed-capacity sliding window of integer samples
package window

// Window is a ring buffer of the most recent samples. Pushing into a full
// window evicts the oldest sample. The zero value is not usable; use New.
type Window struct {
	samples []int
	head    int
	size    int
	sum     int
}

// New creates a window holding at most capacity samples
func New(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{samples: make([]int, capacity)}
}

// Push appends a sample, evicting the oldest one at capacity
func (w *Window) Push(v int) {
	if w.size == len(w.samples) {
		w.sum -= w.samples[w.head]
	} else {
		w.size++
	}
	w.samples[w.head] = v
	w.sum += v
	w.head = (w.head + 1) % len(w.samples)
}

// Len returns the number of samples held
func (w *Window) Len() int {
	return w.size
}

// Cap returns the window capacity
func (w *Window) Cap() int {
	return len(w.samples)
}

// Sum returns the sum of the held samples
func (w *Window) Sum() int {
	return w.sum
}

// Mean returns the arithmetic mean of the held samples, or 0 when empty
func (w *Window) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	return float64(w.sum) / float64(w.size)
}

// Values returns the held samples from oldest to newest
func (w *Window) Values() []int {
	result := make([]int, 0, w.size)
	start := (w.head - w.size + len(w.samples)) % len(w.samples)
	for i := 0; i < w.size; i++ {
		result = append(result, w.samples[(start+i)%len(w.samples)])
	}
	return result
}
