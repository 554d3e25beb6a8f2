// Package perception defines the seam between the control loop and whatever
// produces object and lane detections. The loop depends only on the Engine
// interface; backends range from a canned simulator to a remote inference
// service.
package perception

// Detection is one detected object in a camera frame. BBox is
// [x1, y1, x2, y2] in pixels.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// ObjectResult is the outcome of object detection over one frame.
type ObjectResult struct {
	Predictions []Detection `json:"predictions"`
	ModelName   string      `json:"model_name,omitempty"`
	LatencyMS   float64     `json:"latency_ms,omitempty"`
}

// Lane is one detected lane boundary as a polyline of [x, y] pixel points.
type Lane struct {
	Points [][2]float64 `json:"points"`
}

// LaneResult is the outcome of lane detection over one frame.
type LaneResult struct {
	Lanes []Lane `json:"lanes"`
}

// Results bundles everything perception produced for one cycle.
type Results struct {
	Objects ObjectResult
	Lanes   LaneResult
}

// HasClass reports whether any detection of the given class meets the
// confidence threshold.
func (r Results) HasClass(class string, minConfidence float64) bool {
	for _, d := range r.Objects.Predictions {
		if d.Class == class && d.Confidence >= minConfidence {
			return true
		}
	}
	return false
}
