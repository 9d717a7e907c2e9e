package metrics

import (
	"math"
	"sync"
)

// WelfordState holds running statistics using Welford's online algorithm.
// Mean and standard deviation are computed incrementally in O(1) time
// and space, without storing all observations.
type WelfordState struct {
	Count int     // n - number of observations
	Mean  float64 // running mean
	M2    float64 // sum of squared differences from mean (for variance)
	Min   float64
	Max   float64
}

// Update adds a new observation.
// Reference: https://en.wikipedia.org/wiki/Algorithms_for_calculating_variance#Welford's_online_algorithm
func (w *WelfordState) Update(newValue float64) {
	w.Count++
	if w.Count == 1 || newValue < w.Min {
		w.Min = newValue
	}
	if w.Count == 1 || newValue > w.Max {
		w.Max = newValue
	}
	delta := newValue - w.Mean
	w.Mean += delta / float64(w.Count)
	delta2 := newValue - w.Mean
	w.M2 += delta * delta2
}

// GetMean returns the current mean.
func (w *WelfordState) GetMean() float64 {
	return w.Mean
}

// GetStdDev returns the population standard deviation.
// Returns 0 if fewer than 2 observations.
func (w *WelfordState) GetStdDev() float64 {
	if w.Count < 2 {
		return 0
	}
	variance := w.M2 / float64(w.Count)
	return math.Sqrt(variance)
}

// GetCount returns the number of observations.
func (w *WelfordState) GetCount() int {
	return w.Count
}

// Summary is a point-in-time copy of a WelfordState, safe to hand out.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary returns a copy of the current statistics.
func (w *WelfordState) Summary() Summary {
	return Summary{
		Count:  w.Count,
		Mean:   w.Mean,
		StdDev: w.GetStdDev(),
		Min:    w.Min,
		Max:    w.Max,
	}
}

// Recorder is a named set of running statistics guarded by a mutex, so the
// refresh loop can record while HTTP handlers read.
type Recorder struct {
	mu     sync.Mutex
	series map[string]*WelfordState
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{series: make(map[string]*WelfordState)}
}

// Observe adds value to the named series, creating it on first use
func (r *Recorder) Observe(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.series[name]
	if !ok {
		s = &WelfordState{}
		r.series[name] = s
	}
	s.Update(value)
}

// Snapshot returns summaries of every series
func (r *Recorder) Snapshot() map[string]Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Summary, len(r.series))
	for name, s := range r.series {
		out[name] = s.Summary()
	}
	return out
}
