// Package decision turns a synchronized sensor snapshot plus perception
// results into a single actuation command per cycle. The policy is
// deliberately simple and ordered: obstacle braking first, then heading
// correction, then speed tracking.
package decision

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/autoflux/autoflux/internal/control"
	"github.com/autoflux/autoflux/internal/diagnostics"
	"github.com/autoflux/autoflux/internal/perception"
	"github.com/autoflux/autoflux/internal/sensors"
	"github.com/autoflux/autoflux/internal/timeutil"
	"github.com/autoflux/autoflux/internal/units"
)

const (
	// obstacleBrake is the braking effort applied when a pedestrian is
	// detected with sufficient confidence.
	obstacleBrake = 0.3

	// speedDeadBand is the speed error, in m/s, inside which neither
	// throttle nor brake is applied.
	speedDeadBand = 0.5

	// speedErrorScale divides the speed error to produce effort, so a
	// 10 m/s error saturates the pedal.
	speedErrorScale = 10

	// lowSpeedMPS is the speed below which the full heading gain applies.
	// At speed the gain halves to avoid aggressive corrections.
	lowSpeedMPS = 10

	headingGainLow  = 1.0
	headingGainHigh = 0.5
)

// Targets is the setpoint the decider steers toward.
type Targets struct {
	HeadingDeg float64
	SpeedMPS   float64
}

// Config tunes the decision policy.
type Config struct {
	MaxSteeringDeg      float64
	PedestrianClass     string
	ConfidenceThreshold float64
}

// DefaultConfig returns the stock policy tuning.
func DefaultConfig() Config {
	return Config{
		MaxSteeringDeg:      30,
		PedestrianClass:     "pedestrian",
		ConfidenceThreshold: 0.7,
	}
}

// Decider computes one command per cycle from the current snapshot.
type Decider struct {
	cfg   Config
	clock timeutil.Clock
	log   zerolog.Logger

	mu     sync.RWMutex
	target Targets
}

// NewDecider creates a decider with the given tuning and initial targets.
func NewDecider(cfg Config, target Targets, clock timeutil.Clock, log zerolog.Logger) *Decider {
	return &Decider{cfg: cfg, clock: clock, log: log, target: target}
}

// SetTarget updates the setpoint. Safe to call while the loop is running.
func (d *Decider) SetTarget(t Targets) {
	d.mu.Lock()
	d.target = t
	d.mu.Unlock()
	d.log.Info().
		Float64("heading_deg", t.HeadingDeg).
		Float64("speed_mps", t.SpeedMPS).
		Msg("targets updated")
}

// Target returns the current setpoint.
func (d *Decider) Target() Targets {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.target
}

// Decide computes the command for one cycle. It is deterministic and
// stateless per call; the diagnostic reports inform logging only, since
// escalation is the supervisor's decision alone.
//
// A confident pedestrian detection overrides everything with moderate
// braking. Otherwise heading is corrected proportionally to the wrapped
// heading error, and speed is tracked with a dead band so the pedals do not
// chatter around the setpoint. Without a GPS fix the vehicle holds neutral.
func (d *Decider) Decide(snap *sensors.Snapshot, results perception.Results, reports []diagnostics.Report) control.Command {
	issued := d.clock.Now()

	if results.HasClass(d.cfg.PedestrianClass, d.cfg.ConfidenceThreshold) {
		d.log.Warn().Str("class", d.cfg.PedestrianClass).Msg("obstacle ahead, braking")
		return control.Command{Brake: obstacleBrake, IssuedAt: issued}
	}

	for _, r := range reports {
		if r.Level >= diagnostics.LevelError {
			d.log.Debug().
				Stringer("component", r.Component).
				Stringer("level", r.Level).
				Msg("deciding under degraded health")
			break
		}
	}

	fix, ok := gpsFix(snap)
	if !ok {
		d.log.Debug().Msg("no gps fix, holding neutral")
		return control.Command{IssuedAt: issued}
	}

	target := d.Target()
	cmd := control.Command{
		SteeringDeg: d.steering(target.HeadingDeg, fix.HeadingDeg, fix.SpeedMPS),
		IssuedAt:    issued,
	}

	speedErr := target.SpeedMPS - fix.SpeedMPS
	switch {
	case speedErr > speedDeadBand:
		cmd.Throttle = units.Clamp(speedErr/speedErrorScale, 0, 1)
	case speedErr < -speedDeadBand:
		cmd.Brake = units.Clamp(-speedErr/speedErrorScale, 0, 1)
	}

	if n := len(results.Lanes.Lanes); n > 0 {
		// Lane geometry is observed but does not yet adjust steering; the
		// heading setpoint remains the sole lateral reference.
		d.log.Debug().Int("lanes", n).Msg("lane boundaries detected")
	}

	return cmd
}

// steering computes the proportional heading correction. The error is
// wrapped into (-180, 180] so the vehicle always turns the short way.
func (d *Decider) steering(targetDeg, currentDeg, speedMPS float64) float64 {
	err := units.NormalizeHeading(targetDeg - currentDeg)
	gain := headingGainHigh
	if speedMPS < lowSpeedMPS {
		gain = headingGainLow
	}
	return units.Clamp(err*gain, -d.cfg.MaxSteeringDeg, d.cfg.MaxSteeringDeg)
}

func gpsFix(snap *sensors.Snapshot) (sensors.GPSFix, bool) {
	if snap == nil {
		return sensors.GPSFix{}, false
	}
	r, ok := snap.FirstOfKind(sensors.KindGPS)
	if !ok || r.Status != sensors.StatusOK {
		return sensors.GPSFix{}, false
	}
	fix, ok := r.Payload.(sensors.GPSFix)
	return fix, ok
}
