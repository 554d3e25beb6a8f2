package perception

import (
	"context"

	"github.com/autoflux/autoflux/internal/sensors"
)

// Engine produces detections from camera frames. Implementations must honor
// ctx deadlines; the control loop runs perception with a per-cycle timeout
// and treats a missed deadline as "no detections".
type Engine interface {
	DetectObjects(ctx context.Context, frame sensors.CameraFrame) (ObjectResult, error)
	DetectLanes(ctx context.Context, frame sensors.CameraFrame) (LaneResult, error)
}
