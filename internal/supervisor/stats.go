package supervisor

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// statsWindow is how many recent cycle durations feed the summary.
const statsWindow = 256

// CycleStats summarizes recent cycle durations in milliseconds.
type CycleStats struct {
	Samples int     `json:"samples"`
	MeanMS  float64 `json:"mean_ms"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	MaxMS   float64 `json:"max_ms"`
}

// durationRing keeps the last statsWindow cycle durations.
type durationRing struct {
	mu     sync.Mutex
	buf    [statsWindow]float64 // milliseconds
	n      int
	filled bool
}

func (r *durationRing) add(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.n] = float64(d) / float64(time.Millisecond)
	r.n++
	if r.n == len(r.buf) {
		r.n = 0
		r.filled = true
	}
}

func (r *durationRing) summary() CycleStats {
	r.mu.Lock()
	n := r.n
	if r.filled {
		n = len(r.buf)
	}
	samples := make([]float64, n)
	copy(samples, r.buf[:n])
	r.mu.Unlock()

	if n == 0 {
		return CycleStats{}
	}

	sort.Float64s(samples)
	return CycleStats{
		Samples: n,
		MeanMS:  stat.Mean(samples, nil),
		P50MS:   stat.Quantile(0.5, stat.Empirical, samples, nil),
		P95MS:   stat.Quantile(0.95, stat.Empirical, samples, nil),
		MaxMS:   samples[n-1],
	}
}
