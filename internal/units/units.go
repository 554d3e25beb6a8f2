// Package units provides shared numeric helpers for speeds and headings.
// Internally everything is stored in m/s and degrees.
package units

import "math"

// Speed unit identifiers accepted in configuration and status output.
const (
	MPS = "mps"
	MPH = "mph"
	KPH = "kph"
)

// ConvertSpeed converts a speed in m/s to the target unit. Unknown units
// fall back to m/s.
func ConvertSpeed(speedMPS float64, targetUnit string) float64 {
	switch targetUnit {
	case MPH:
		return speedMPS * 2.2369362920544
	case KPH:
		return speedMPS * 3.6
	default:
		return speedMPS
	}
}

// Clamp limits v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeHeading maps an angular difference in degrees to (-180, 180],
// so that heading errors always take the shortest path around the circle.
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}
