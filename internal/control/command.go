package control

import "time"

// Command is one actuation request for a control cycle. Steering is degrees
// relative to straight ahead, positive right. Throttle and brake are
// normalized effort in [0, 1]. Commands live for one cycle; they are never
// persisted or resubmitted.
type Command struct {
	SteeringDeg float64
	Throttle    float64
	Brake       float64
	IssuedAt    time.Time
}

// VehicleState is the measured state fed back from the vehicle.
type VehicleState struct {
	SpeedMPS    float64
	AccelMPS2   [3]float64
	SteeringDeg float64
	HeadingDeg  float64
	Latitude    float64
	Longitude   float64
}
