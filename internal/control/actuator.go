package control

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/autoflux/autoflux/internal/timeutil"
	"github.com/autoflux/autoflux/internal/units"
)

// ErrEmergencyActive means a command was rejected because the emergency-stop
// latch is set. The latch only clears through ReleaseEmergencyStop.
var ErrEmergencyActive = errors.New("emergency stop active")

// Constraints bound every command before it reaches hardware. Steering is
// clamped symmetric around zero; throttle and brake are clamped to [0, 1].
type Constraints struct {
	MaxSteeringDeg float64
	MaxSpeedMPS    float64
}

// DefaultConstraints returns the stock safety envelope.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxSteeringDeg: 30,
		MaxSpeedMPS:    30,
	}
}

// Apply clamps a command into the envelope. Braking has priority: any
// positive brake zeroes the throttle so the two never fight.
func (c Constraints) Apply(cmd Command) Command {
	out := Command{
		SteeringDeg: units.Clamp(cmd.SteeringDeg, -c.MaxSteeringDeg, c.MaxSteeringDeg),
		Throttle:    units.Clamp(cmd.Throttle, 0, 1),
		Brake:       units.Clamp(cmd.Brake, 0, 1),
		IssuedAt:    cmd.IssuedAt,
	}
	if out.Brake > 0 {
		out.Throttle = 0
	}
	return out
}

// ActuatorStatus is a point-in-time copy of actuator state for diagnostics
// and operators. It holds plain data only.
type ActuatorStatus struct {
	Mode               Mode
	EmergencyActive    bool
	SteeringResponsive bool
	BrakesResponsive   bool
	ActuatorErrors     int
	LastCommand        Command
	CommandCount       uint64
	EmergencyStops     uint64
	Vehicle            VehicleState
	SpeedWarning       bool
}

// Actuator is the safety gate between decisions and hardware. Every command
// passes through the constraint envelope, and nothing moves while the
// emergency latch is set.
type Actuator struct {
	constraints Constraints
	clock       timeutil.Clock
	log         zerolog.Logger

	emergency atomic.Bool

	mu             sync.Mutex
	mode           Mode
	steeringOK     bool
	brakesOK       bool
	faults         int
	last           Command
	commandCount   uint64
	emergencyStops uint64
	vehicle        VehicleState
	speedWarning   bool
}

// NewActuator builds an actuator with healthy hardware state.
func NewActuator(constraints Constraints, clock timeutil.Clock, log zerolog.Logger) *Actuator {
	return &Actuator{
		constraints: constraints,
		clock:       clock,
		log:         log,
		mode:        ModeAutonomous,
		steeringOK:  true,
		brakesOK:    true,
	}
}

// Execute applies a command to the hardware. The emergency latch is checked
// before anything else; a latched actuator rejects every command until the
// latch is explicitly released.
func (a *Actuator) Execute(cmd Command) (Command, error) {
	if a.emergency.Load() {
		return Command{}, ErrEmergencyActive
	}

	applied := a.constraints.Apply(cmd)

	a.mu.Lock()
	defer a.mu.Unlock()

	// The latch may have been set between the check and the lock; a latched
	// actuator must never record a command as executed.
	if a.emergency.Load() {
		return Command{}, ErrEmergencyActive
	}

	a.last = applied
	a.commandCount++

	a.log.Debug().
		Float64("steering_deg", applied.SteeringDeg).
		Float64("throttle", applied.Throttle).
		Float64("brake", applied.Brake).
		Msg("command executed")
	return applied, nil
}

// EmergencyBrake sets the latch and commands full brake. Idempotent: a
// second call while latched does not double-count.
func (a *Actuator) EmergencyBrake(reason string) {
	if a.emergency.Swap(true) {
		return
	}

	a.mu.Lock()
	a.last = Command{Brake: 1, IssuedAt: a.clock.Now()}
	a.emergencyStops++
	a.mu.Unlock()

	a.log.Warn().Str("reason", reason).Msg("emergency stop engaged")
}

// ReleaseEmergencyStop clears the latch so commands flow again. No pending
// command is resubmitted.
func (a *Actuator) ReleaseEmergencyStop() {
	if !a.emergency.Swap(false) {
		return
	}
	a.log.Info().Msg("emergency stop released")
}

// EmergencyActive reports whether the latch is set.
func (a *Actuator) EmergencyActive() bool {
	return a.emergency.Load()
}

// SetMode changes the driving authority mode.
func (a *Actuator) SetMode(m Mode) {
	a.mu.Lock()
	a.mode = m
	a.mu.Unlock()
	a.log.Info().Stringer("mode", m).Msg("mode changed")
}

// Mode returns the current driving authority mode.
func (a *Actuator) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// UpdateVehicleState records measured telemetry. Speed above the envelope
// raises the speed warning flag, which the health monitor reads off the
// status; the flag clears once speed drops back.
func (a *Actuator) UpdateVehicleState(v VehicleState) {
	a.mu.Lock()
	a.vehicle = v
	wasWarning := a.speedWarning
	a.speedWarning = v.SpeedMPS > a.constraints.MaxSpeedMPS
	nowWarning := a.speedWarning
	a.mu.Unlock()

	if nowWarning && !wasWarning {
		a.log.Warn().
			Float64("speed_mps", v.SpeedMPS).
			Float64("speed_mph", units.ConvertSpeed(v.SpeedMPS, units.MPH)).
			Float64("max_mps", a.constraints.MaxSpeedMPS).
			Msg("speed above envelope")
	}
}

// SetFault marks steering or brake hardware unresponsive and counts a fault.
// Used by hardware watchdogs and in tests.
func (a *Actuator) SetFault(steeringOK, brakesOK bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !steeringOK || !brakesOK {
		a.faults++
	}
	a.steeringOK = steeringOK
	a.brakesOK = brakesOK
}

// Status returns a copy of the actuator state.
func (a *Actuator) Status() ActuatorStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ActuatorStatus{
		Mode:               a.mode,
		EmergencyActive:    a.emergency.Load(),
		SteeringResponsive: a.steeringOK,
		BrakesResponsive:   a.brakesOK,
		ActuatorErrors:     a.faults,
		LastCommand:        a.last,
		CommandCount:       a.commandCount,
		EmergencyStops:     a.emergencyStops,
		Vehicle:            a.vehicle,
		SpeedWarning:       a.speedWarning,
	}
}
