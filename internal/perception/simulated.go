package perception

import (
	"context"
	"sync"

	"github.com/autoflux/autoflux/internal/sensors"
)

// Simulated is a deterministic engine for bench runs and tests. It replays a
// scripted sequence of results, repeating the last entry once the script is
// exhausted. An empty script yields empty results forever.
type Simulated struct {
	mu     sync.Mutex
	script []Results
	next   int
	served int
}

// NewSimulated builds a simulated engine from a script.
func NewSimulated(script ...Results) *Simulated {
	return &Simulated{script: script}
}

// DetectObjects serves the next scripted step and advances the script.
func (s *Simulated) DetectObjects(ctx context.Context, _ sensors.CameraFrame) (ObjectResult, error) {
	if err := ctx.Err(); err != nil {
		return ObjectResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return ObjectResult{}, nil
	}
	s.served = s.next
	if s.next < len(s.script)-1 {
		s.next++
	}
	return s.script[s.served].Objects, nil
}

// DetectLanes serves the lanes from the step most recently served to
// DetectObjects, so a cycle that calls both sees one consistent step.
func (s *Simulated) DetectLanes(ctx context.Context, _ sensors.CameraFrame) (LaneResult, error) {
	if err := ctx.Err(); err != nil {
		return LaneResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script) == 0 {
		return LaneResult{}, nil
	}
	return s.script[s.served].Lanes, nil
}
