package perception

import (
	"context"
	"sync"
	"time"

	"github.com/autoflux/autoflux/internal/sensors"
	"github.com/autoflux/autoflux/internal/timeutil"
)

// Stats summarizes inference activity since the last reset.
type Stats struct {
	Inferences uint64  `json:"inferences"`
	Errors     uint64  `json:"errors"`
	TotalMS    float64 `json:"total_ms"`
	AverageMS  float64 `json:"average_ms"`
	FPS        float64 `json:"fps"`
}

// Instrumented wraps an engine and accumulates timing stats across both
// detection calls.
type Instrumented struct {
	engine Engine
	clock  timeutil.Clock

	mu     sync.Mutex
	count  uint64
	errors uint64
	total  time.Duration
}

// NewInstrumented wraps an engine.
func NewInstrumented(engine Engine, clock timeutil.Clock) *Instrumented {
	return &Instrumented{engine: engine, clock: clock}
}

func (i *Instrumented) observe(start time.Time, err error) {
	elapsed := i.clock.Since(start)
	i.mu.Lock()
	defer i.mu.Unlock()
	i.count++
	i.total += elapsed
	if err != nil {
		i.errors++
	}
}

// DetectObjects delegates to the wrapped engine and records timing.
func (i *Instrumented) DetectObjects(ctx context.Context, frame sensors.CameraFrame) (ObjectResult, error) {
	start := i.clock.Now()
	out, err := i.engine.DetectObjects(ctx, frame)
	i.observe(start, err)
	return out, err
}

// DetectLanes delegates to the wrapped engine and records timing.
func (i *Instrumented) DetectLanes(ctx context.Context, frame sensors.CameraFrame) (LaneResult, error) {
	start := i.clock.Now()
	out, err := i.engine.DetectLanes(ctx, frame)
	i.observe(start, err)
	return out, err
}

// Stats returns a snapshot of the accumulated counters.
func (i *Instrumented) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := Stats{
		Inferences: i.count,
		Errors:     i.errors,
		TotalMS:    float64(i.total) / float64(time.Millisecond),
	}
	if i.count > 0 {
		s.AverageMS = s.TotalMS / float64(i.count)
	}
	if i.total > 0 {
		s.FPS = float64(i.count) / i.total.Seconds()
	}
	return s
}

// Reset zeroes the counters.
func (i *Instrumented) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.count, i.errors, i.total = 0, 0, 0
}
