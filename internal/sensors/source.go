package sensors

import (
	"context"

	"github.com/autoflux/autoflux/internal/timeutil"
)

// Source produces readings for one sensor. Implementations wrap hardware,
// simulation fixtures, or recorded data; the synchronizer polls each source
// once per capture.
type Source interface {
	// ID returns the stable sensor identifier, e.g. "camera_0".
	ID() string

	// Kind returns the sensor class.
	Kind() Kind

	// Read captures one sample. It must respect ctx cancellation and return
	// promptly; the control loop budget allows no unbounded blocking.
	Read(ctx context.Context) (Reading, error)
}

// SimulatedSource is a fixture source that fabricates payloads. The Next
// function supplies successive payload values; a nil Next yields the zero
// payload for the kind.
type SimulatedSource struct {
	SensorID   string
	SensorKind Kind
	Clock      timeutil.Clock
	Next       func() Payload
}

// NewSimulatedSource builds a fixture source with a static payload per kind.
func NewSimulatedSource(id string, kind Kind, clock timeutil.Clock) *SimulatedSource {
	return &SimulatedSource{SensorID: id, SensorKind: kind, Clock: clock}
}

// ID returns the sensor identifier.
func (s *SimulatedSource) ID() string { return s.SensorID }

// Kind returns the sensor class.
func (s *SimulatedSource) Kind() Kind { return s.SensorKind }

// Read fabricates one reading stamped with the source clock.
func (s *SimulatedSource) Read(ctx context.Context) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	payload := s.defaultPayload()
	if s.Next != nil {
		payload = s.Next()
	}

	return Reading{
		SensorID:   s.SensorID,
		Kind:       s.SensorKind,
		CapturedAt: s.Clock.Now(),
		Payload:    payload,
		Status:     StatusOK,
	}, nil
}

func (s *SimulatedSource) defaultPayload() Payload {
	switch s.SensorKind {
	case KindLidar:
		return LidarScan{RangeM: 200, Channels: 64}
	case KindCamera:
		return CameraFrame{Width: 1920, Height: 1080, Format: "rgb8"}
	case KindRadar:
		return RadarScan{MaxRangeM: 150}
	case KindGPS:
		return GPSFix{Satellites: 12}
	case KindIMU:
		return IMUSample{AccelMPS2: [3]float64{0, 0, 9.81}}
	default:
		return nil
	}
}
