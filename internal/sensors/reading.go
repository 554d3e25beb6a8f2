package sensors

import (
	"sync/atomic"
	"time"
)

// Reading is one timestamped sample from a sensor. Readings are immutable
// once captured; the synchronizer hands out copies, never shared pointers to
// mutable state.
type Reading struct {
	SensorID   string
	Kind       Kind
	CapturedAt time.Time
	Payload    Payload
	Status     Status
	Err        string
}

// Slot is a single-writer latest-value cell. A hardware-driven producer
// stores readings without ever blocking; the synchronizer loads the most
// recent one. Older readings are simply superseded.
type Slot struct {
	p atomic.Pointer[Reading]
}

// Store publishes a reading as the latest value.
func (s *Slot) Store(r Reading) {
	s.p.Store(&r)
}

// Load returns the latest reading, or ok=false if none was stored yet.
func (s *Slot) Load() (Reading, bool) {
	p := s.p.Load()
	if p == nil {
		return Reading{}, false
	}
	return *p, true
}
