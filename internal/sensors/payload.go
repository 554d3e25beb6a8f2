package sensors

// Payload is the opaque typed value carried by a reading. The core never
// inspects payloads beyond their type identity; the decision function reads
// the GPS fix, and the perception seam consumes camera frames.
type Payload interface {
	payload()
}

// GPSFix is a position/velocity solution from a GNSS receiver.
type GPSFix struct {
	Latitude   float64
	Longitude  float64
	AltitudeM  float64
	HeadingDeg float64
	SpeedMPS   float64
	Satellites int
}

func (GPSFix) payload() {}

// IMUSample carries inertial measurements.
type IMUSample struct {
	AccelMPS2 [3]float64
	GyroRadS  [3]float64
	MagUT     [3]float64
}

func (IMUSample) payload() {}

// CameraFrame describes one captured image. Pixel data stays with the
// perception backend; the core only needs frame identity and geometry.
type CameraFrame struct {
	CameraID int
	Width    int
	Height   int
	Format   string
	Data     []byte
}

func (CameraFrame) payload() {}

// LidarScan summarizes one point-cloud sweep.
type LidarScan struct {
	NumPoints int
	RangeM    float64
	Channels  int
}

func (LidarScan) payload() {}

// RadarScan summarizes one radar sweep.
type RadarScan struct {
	NumDetections int
	MaxRangeM     float64
}

func (RadarScan) payload() {}
