package sensors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/autoflux/autoflux/internal/timeutil"
)

// Sentinel errors for snapshot and capture failures.
var (
	// ErrNoSensor means the requested sensor is not registered.
	ErrNoSensor = errors.New("no such sensor")

	// ErrNoData means no sensor has produced a reading yet.
	ErrNoData = errors.New("no sensor data")

	// ErrUnsynchronized means at least one reading was older than the
	// allowed skew relative to the newest reading. The whole snapshot is
	// rejected; lagging sensors are never silently dropped.
	ErrUnsynchronized = errors.New("sensor data unsynchronized")
)

// Snapshot is an all-or-nothing set of readings whose timestamps agree
// within the configured skew. ReferenceTime is the newest CapturedAt among
// the members.
type Snapshot struct {
	Readings      map[string]Reading
	ReferenceTime time.Time
}

// Reading returns the snapshot member for a sensor ID.
func (s *Snapshot) Reading(id string) (Reading, bool) {
	r, ok := s.Readings[id]
	return r, ok
}

// FirstOfKind returns the first reading of the given kind in sensor-ID
// order, so lookups are deterministic across cycles.
func (s *Snapshot) FirstOfKind(kind Kind) (Reading, bool) {
	ids := make([]string, 0, len(s.Readings))
	for id := range s.Readings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if r := s.Readings[id]; r.Kind == kind {
			return r, true
		}
	}
	return Reading{}, false
}

// Synchronizer owns the registered sources and their latest-value slots, and
// produces synchronized snapshots for the control loop.
type Synchronizer struct {
	clock   timeutil.Clock
	log     zerolog.Logger
	order   []string
	sources map[string]Source
	slots   map[string]*Slot
}

// NewSynchronizer creates an empty synchronizer.
func NewSynchronizer(clock timeutil.Clock, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		clock:   clock,
		log:     log,
		sources: make(map[string]Source),
		slots:   make(map[string]*Slot),
	}
}

// Register adds a source. Registering the same ID twice replaces the source
// but keeps the slot, so the latest reading survives source swaps.
func (sy *Synchronizer) Register(src Source) {
	id := src.ID()
	if _, exists := sy.sources[id]; !exists {
		sy.order = append(sy.order, id)
		sy.slots[id] = &Slot{}
	}
	sy.sources[id] = src
	sy.log.Info().Str("sensor", id).Stringer("kind", src.Kind()).Msg("sensor registered")
}

// Slot exposes the latest-value cell for a sensor so hardware-driven
// producers can publish readings without going through Capture.
func (sy *Synchronizer) Slot(id string) (*Slot, bool) {
	s, ok := sy.slots[id]
	return s, ok
}

// SensorIDs returns the registered sensor IDs in registration order.
func (sy *Synchronizer) SensorIDs() []string {
	ids := make([]string, len(sy.order))
	copy(ids, sy.order)
	return ids
}

// Capture polls one source and publishes the result to its slot.
func (sy *Synchronizer) Capture(ctx context.Context, id string) (Reading, error) {
	src, ok := sy.sources[id]
	if !ok {
		return Reading{}, fmt.Errorf("%w: %s", ErrNoSensor, id)
	}

	r, err := src.Read(ctx)
	if err != nil {
		// A failed read still produces an error-status reading so the
		// health monitor can see the sensor misbehaving.
		r = Reading{
			SensorID:   id,
			Kind:       src.Kind(),
			CapturedAt: sy.clock.Now(),
			Status:     StatusError,
			Err:        err.Error(),
		}
		sy.slots[id].Store(r)
		return r, fmt.Errorf("capture %s: %w", id, err)
	}

	sy.slots[id].Store(r)
	return r, nil
}

// CaptureAll polls every registered source once. Individual failures are
// logged and reflected as error-status readings; they do not abort the pass.
func (sy *Synchronizer) CaptureAll(ctx context.Context) {
	for _, id := range sy.order {
		if _, err := sy.Capture(ctx, id); err != nil {
			sy.log.Warn().Err(err).Str("sensor", id).Msg("sensor capture failed")
		}
	}
}

// LatestReadings returns the most recent reading per sensor, nil for sensors
// that have not produced data yet. The map is a copy; callers own it.
func (sy *Synchronizer) LatestReadings() map[string]*Reading {
	out := make(map[string]*Reading, len(sy.order))
	for _, id := range sy.order {
		if r, ok := sy.slots[id].Load(); ok {
			c := r
			out[id] = &c
		} else {
			out[id] = nil
		}
	}
	return out
}

// Snapshot assembles the latest reading from every sensor into an
// all-or-nothing snapshot. If any reading lags the newest one by more than
// maxSkew, the snapshot fails with ErrUnsynchronized; if no sensor has data,
// it fails with ErrNoData.
func (sy *Synchronizer) Snapshot(maxSkew time.Duration) (*Snapshot, error) {
	readings := make(map[string]Reading, len(sy.order))
	var reference time.Time
	for _, id := range sy.order {
		r, ok := sy.slots[id].Load()
		if !ok {
			continue
		}
		readings[id] = r
		if r.CapturedAt.After(reference) {
			reference = r.CapturedAt
		}
	}

	if len(readings) == 0 {
		return nil, ErrNoData
	}

	for _, id := range sy.order {
		r, ok := readings[id]
		if !ok {
			continue
		}
		if age := reference.Sub(r.CapturedAt); age > maxSkew {
			return nil, fmt.Errorf("%w: sensor %s is %v behind reference (max skew %v)",
				ErrUnsynchronized, id, age, maxSkew)
		}
	}

	return &Snapshot{Readings: readings, ReferenceTime: reference}, nil
}
