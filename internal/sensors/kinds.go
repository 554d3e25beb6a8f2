// Package sensors collects timestamped readings from heterogeneous sensor
// sources and fuses them into time-synchronized snapshots.
package sensors

import "fmt"

// Kind identifies the class of sensor a reading came from.
type Kind int

const (
	KindLidar Kind = iota
	KindCamera
	KindRadar
	KindGPS
	KindIMU
)

// String returns the lowercase name used in logs and status output.
func (k Kind) String() string {
	switch k {
	case KindLidar:
		return "lidar"
	case KindCamera:
		return "camera"
	case KindRadar:
		return "radar"
	case KindGPS:
		return "gps"
	case KindIMU:
		return "imu"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind converts a config string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "lidar":
		return KindLidar, nil
	case "camera":
		return KindCamera, nil
	case "radar":
		return KindRadar, nil
	case "gps":
		return KindGPS, nil
	case "imu":
		return KindIMU, nil
	default:
		return 0, fmt.Errorf("unknown sensor kind %q", s)
	}
}

// Status marks whether a reading was captured cleanly.
type Status int

const (
	StatusOK Status = iota
	StatusError
)

// String returns the status name.
func (s Status) String() string {
	if s == StatusError {
		return "error"
	}
	return "ok"
}
