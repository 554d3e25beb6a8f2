// Package supervisor runs the fixed-rate control loop: capture sensors,
// check health, run perception, decide, actuate. It owns the loop lifecycle
// and the escalation from control-critical faults to an emergency stop.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/autoflux/autoflux/internal/control"
	"github.com/autoflux/autoflux/internal/decision"
	"github.com/autoflux/autoflux/internal/diagnostics"
	"github.com/autoflux/autoflux/internal/perception"
	"github.com/autoflux/autoflux/internal/sensors"
	"github.com/autoflux/autoflux/internal/telemetry"
	"github.com/autoflux/autoflux/internal/timeutil"
)

// Config tunes the control loop.
type Config struct {
	// UpdateRateHz is the cycle rate. 10 Hz gives a 100 ms budget.
	UpdateRateHz float64

	// MaxSkew is the largest timestamp spread a snapshot may contain.
	MaxSkew time.Duration

	// PerceptionTimeout bounds inference inside a cycle. A missed deadline
	// means no detections for that cycle, never a stalled loop.
	PerceptionTimeout time.Duration

	// StatusLogEvery logs a status summary every N cycles. Zero disables.
	StatusLogEvery uint64
}

// DefaultConfig returns the stock loop tuning.
func DefaultConfig() Config {
	return Config{
		UpdateRateHz:      10,
		MaxSkew:           100 * time.Millisecond,
		PerceptionTimeout: 80 * time.Millisecond,
		StatusLogEvery:    100,
	}
}

// Validate checks the tuning for nonsense values.
func (c Config) Validate() error {
	if c.UpdateRateHz <= 0 {
		return fmt.Errorf("update rate must be positive, got %v", c.UpdateRateHz)
	}
	if c.MaxSkew <= 0 {
		return fmt.Errorf("max skew must be positive, got %v", c.MaxSkew)
	}
	return nil
}

// Period returns the cycle budget implied by the update rate.
func (c Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.UpdateRateHz)
}

// Recorder persists per-cycle outcomes. The loop never reads anything back;
// a failing recorder is logged and ignored.
type Recorder interface {
	Record(cycle uint64, outcome CycleOutcome, reports []diagnostics.Report) error
}

// LinkFunc reports the operator uplink state for diagnostics.
type LinkFunc func() diagnostics.LinkStatus

// Status is a point-in-time copy of supervisor state for operators.
type Status struct {
	Running         bool                   `json:"running"`
	CycleCount      uint64                 `json:"cycle_count"`
	EmergencyActive bool                   `json:"emergency_active"`
	Mode            string                 `json:"mode"`
	Health          diagnostics.Summary    `json:"health"`
	Actuator        control.ActuatorStatus `json:"actuator"`
	Cycles          CycleStats             `json:"cycles"`
	Targets         decision.Targets       `json:"targets"`
}

// Supervisor owns the control loop.
type Supervisor struct {
	cfg     Config
	clock   timeutil.Clock
	log     zerolog.Logger
	metrics *telemetry.Metrics

	sync     *sensors.Synchronizer
	monitor  *diagnostics.Monitor
	actuator *control.Actuator
	decider  *decision.Decider
	engine   perception.Engine
	recorder Recorder
	link     LinkFunc

	running atomic.Bool
	cycles  atomic.Uint64
	ring    durationRing

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Deps bundles the collaborators the supervisor drives.
type Deps struct {
	Clock    timeutil.Clock
	Log      zerolog.Logger
	Metrics  *telemetry.Metrics
	Sync     *sensors.Synchronizer
	Monitor  *diagnostics.Monitor
	Actuator *control.Actuator
	Decider  *decision.Decider

	// Engine may be nil; cycles then run without perception.
	Engine perception.Engine

	// Recorder may be nil; cycles then leave no journal.
	Recorder Recorder

	// Link may be nil; the uplink is then assumed connected.
	Link LinkFunc
}

// New builds a supervisor. The config must validate.
func New(cfg Config, deps Deps) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("supervisor config: %w", err)
	}
	link := deps.Link
	if link == nil {
		link = func() diagnostics.LinkStatus { return diagnostics.LinkStatus{Connected: true} }
	}
	return &Supervisor{
		cfg:      cfg,
		clock:    deps.Clock,
		log:      deps.Log,
		metrics:  deps.Metrics,
		sync:     deps.Sync,
		monitor:  deps.Monitor,
		actuator: deps.Actuator,
		decider:  deps.Decider,
		engine:   deps.Engine,
		recorder: deps.Recorder,
		link:     link,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Run drives the loop at the configured rate until ctx is canceled or Stop
// is called. It blocks; callers run it in a goroutine.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("supervisor already running")
	}
	defer s.running.Store(false)
	defer close(s.doneCh)

	period := s.cfg.Period()
	ticker := s.clock.NewTicker(period)
	defer ticker.Stop()

	s.log.Info().
		Float64("rate_hz", s.cfg.UpdateRateHz).
		Dur("period", period).
		Msg("control loop started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("control loop stopped: context canceled")
			return ctx.Err()
		case <-s.stopCh:
			s.log.Info().Msg("control loop stopped")
			return nil
		case <-ticker.C():
			// A stop requested while this tick was pending wins; no
			// further cycle runs after Stop returns.
			select {
			case <-s.stopCh:
				s.log.Info().Msg("control loop stopped")
				return nil
			default:
			}
			s.runCycle(ctx)
		}
	}
}

// Stop requests shutdown and waits for a running loop to exit. Idempotent.
func (s *Supervisor) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.running.Load() {
		<-s.doneCh
	}
}

// ReleaseEmergency clears the emergency latch so the loop actuates again.
func (s *Supervisor) ReleaseEmergency() {
	s.actuator.ReleaseEmergencyStop()
}

// runCycle executes one control cycle. A panic anywhere inside degrades the
// cycle instead of killing the loop.
func (s *Supervisor) runCycle(ctx context.Context) (outcome CycleOutcome) {
	start := s.clock.Now()
	var reports []diagnostics.Report

	defer func() {
		if r := recover(); r != nil {
			outcome = degraded(fmt.Sprintf("panic: %v", r))
			s.log.Error().Interface("panic", r).Msg("control cycle panicked")
		}

		elapsed := s.clock.Since(start)
		s.ring.add(elapsed)
		s.metrics.RecordCycle(outcome.Kind.String(), elapsed)
		if period := s.cfg.Period(); elapsed > period {
			s.metrics.RecordOverrun()
			s.log.Warn().
				Dur("elapsed", elapsed).
				Dur("budget", period).
				Msg("cycle overran budget")
		}

		cycle := s.cycles.Add(1)
		if s.recorder != nil {
			if err := s.recorder.Record(cycle, outcome, reports); err != nil {
				s.log.Warn().Err(err).Msg("cycle journal write failed")
			}
		}
		if s.cfg.StatusLogEvery > 0 && cycle%s.cfg.StatusLogEvery == 0 {
			sum := s.monitor.HealthSummary()
			s.log.Info().
				Uint64("cycle", cycle).
				Str("health", sum.Status).
				Str("outcome", outcome.Kind.String()).
				Bool("emergency", s.actuator.EmergencyActive()).
				Msg("status")
		}
	}()

	outcome = okOutcome()

	s.sync.CaptureAll(ctx)
	snap, err := s.sync.Snapshot(s.cfg.MaxSkew)
	if err != nil {
		s.log.Warn().Err(err).Msg("no synchronized snapshot")
		outcome = degraded(err.Error())
		snap = nil
	}

	// Diagnostics run on the latest readings even when the snapshot failed,
	// so a lagging sensor surfaces as a health issue, not silence.
	reports = s.monitor.RunAll(diagnostics.SystemState{
		Sensors:  s.sync.LatestReadings(),
		Link:     s.link(),
		Actuator: s.actuator.Status(),
	})
	s.metrics.SetHealthLevel(healthLevel(s.monitor.HealthSummary().Status))

	for _, r := range reports {
		if r.ControlCritical() {
			s.actuator.EmergencyBrake(r.Message)
			s.metrics.RecordEmergencyStop()
			s.log.Error().Str("fault", r.Message).Msg("control-critical fault, emergency stop")
			return emergencyTriggered(r.Message)
		}
	}

	results := s.runPerception(ctx, snap)

	if snap != nil {
		if v, ok := vehicleState(snap); ok {
			s.actuator.UpdateVehicleState(v)
		}
	}

	cmd := s.decider.Decide(snap, results, reports)
	if _, err := s.actuator.Execute(cmd); err != nil {
		if errors.Is(err, control.ErrEmergencyActive) {
			s.log.Debug().Msg("command suppressed: emergency stop active")
			if outcome.Kind == OutcomeOk {
				outcome = degraded("emergency stop active")
			}
		} else {
			s.log.Error().Err(err).Msg("command execution failed")
			outcome = degraded(err.Error())
		}
	}

	return outcome
}

// runPerception runs object and lane detection on the snapshot's camera
// frame under the perception deadline. Any failure, including a missed
// deadline, yields empty results for this cycle.
func (s *Supervisor) runPerception(ctx context.Context, snap *sensors.Snapshot) perception.Results {
	if s.engine == nil || snap == nil {
		return perception.Results{}
	}
	r, ok := snap.FirstOfKind(sensors.KindCamera)
	if !ok || r.Status != sensors.StatusOK {
		return perception.Results{}
	}
	frame, ok := r.Payload.(sensors.CameraFrame)
	if !ok {
		return perception.Results{}
	}

	pctx := ctx
	if s.cfg.PerceptionTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, s.cfg.PerceptionTimeout)
		defer cancel()
	}

	var results perception.Results
	objects, err := s.engine.DetectObjects(pctx, frame)
	if err != nil {
		s.metrics.RecordPerceptionError()
		s.logPerceptionErr("object detection", err)
	} else {
		results.Objects = objects
	}

	lanes, err := s.engine.DetectLanes(pctx, frame)
	if err != nil {
		s.metrics.RecordPerceptionError()
		s.logPerceptionErr("lane detection", err)
	} else {
		results.Lanes = lanes
	}
	return results
}

func (s *Supervisor) logPerceptionErr(what string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		s.log.Debug().Str("stage", what).Msg("perception deadline missed")
		return
	}
	s.log.Warn().Err(err).Str("stage", what).Msg("perception failed")
}

// Status returns a copy of the supervisor state.
func (s *Supervisor) Status() Status {
	return Status{
		Running:         s.running.Load(),
		CycleCount:      s.cycles.Load(),
		EmergencyActive: s.actuator.EmergencyActive(),
		Mode:            s.actuator.Mode().String(),
		Health:          s.monitor.HealthSummary(),
		Actuator:        s.actuator.Status(),
		Cycles:          s.ring.summary(),
		Targets:         s.decider.Target(),
	}
}

// healthLevel maps a summary status to the health gauge value.
func healthLevel(status string) float64 {
	switch status {
	case "healthy":
		return 0
	case "warning":
		return 1
	case "error":
		return 2
	case "critical":
		return 3
	default:
		return -1
	}
}

// vehicleState assembles measured telemetry from the snapshot's GPS fix and,
// when present, the IMU sample.
func vehicleState(snap *sensors.Snapshot) (control.VehicleState, bool) {
	r, ok := snap.FirstOfKind(sensors.KindGPS)
	if !ok || r.Status != sensors.StatusOK {
		return control.VehicleState{}, false
	}
	fix, ok := r.Payload.(sensors.GPSFix)
	if !ok {
		return control.VehicleState{}, false
	}

	v := control.VehicleState{
		SpeedMPS:   fix.SpeedMPS,
		HeadingDeg: fix.HeadingDeg,
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
	}
	if imu, ok := snap.FirstOfKind(sensors.KindIMU); ok && imu.Status == sensors.StatusOK {
		if sample, ok := imu.Payload.(sensors.IMUSample); ok {
			v.AccelMPS2 = sample.AccelMPS2
		}
	}
	return v, true
}
