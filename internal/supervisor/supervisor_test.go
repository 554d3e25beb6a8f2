package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoflux/autoflux/internal/control"
	"github.com/autoflux/autoflux/internal/decision"
	"github.com/autoflux/autoflux/internal/diagnostics"
	"github.com/autoflux/autoflux/internal/perception"
	"github.com/autoflux/autoflux/internal/sensors"
	"github.com/autoflux/autoflux/internal/timeutil"
)

type harness struct {
	clock    *timeutil.MockClock
	sync     *sensors.Synchronizer
	monitor  *diagnostics.Monitor
	actuator *control.Actuator
	decider  *decision.Decider
	sup      *Supervisor
}

type fakeRecorder struct {
	mu      sync.Mutex
	cycles  []uint64
	outcome []CycleOutcome
}

func (f *fakeRecorder) Record(cycle uint64, outcome CycleOutcome, _ []diagnostics.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cycles = append(f.cycles, cycle)
	f.outcome = append(f.outcome, outcome)
	return nil
}

func (f *fakeRecorder) last() (uint64, CycleOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.cycles) == 0 {
		return 0, CycleOutcome{}
	}
	return f.cycles[len(f.cycles)-1], f.outcome[len(f.outcome)-1]
}

func gpsSource(clock timeutil.Clock, fix sensors.GPSFix) *sensors.SimulatedSource {
	src := sensors.NewSimulatedSource("gps_0", sensors.KindGPS, clock)
	src.Next = func() sensors.Payload { return fix }
	return src
}

func newHarness(t *testing.T, engine perception.Engine, opts ...func(*Deps)) *harness {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zerolog.Nop()

	sy := sensors.NewSynchronizer(clock, log)
	sy.Register(sensors.NewSimulatedSource("lidar_0", sensors.KindLidar, clock))
	sy.Register(sensors.NewSimulatedSource("camera_0", sensors.KindCamera, clock))
	sy.Register(gpsSource(clock, sensors.GPSFix{HeadingDeg: 0, SpeedMPS: 10}))

	h := &harness{
		clock:    clock,
		sync:     sy,
		monitor:  diagnostics.NewMonitor(clock, log),
		actuator: control.NewActuator(control.DefaultConstraints(), clock, log),
		decider:  decision.NewDecider(decision.DefaultConfig(), decision.Targets{HeadingDeg: 0, SpeedMPS: 10}, clock, log),
	}

	deps := Deps{
		Clock:    clock,
		Log:      log,
		Sync:     sy,
		Monitor:  h.monitor,
		Actuator: h.actuator,
		Decider:  h.decider,
		Engine:   engine,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	cfg := DefaultConfig()
	cfg.PerceptionTimeout = 20 * time.Millisecond
	sup, err := New(cfg, deps)
	require.NoError(t, err)
	h.sup = sup
	return h
}

func TestCycleNominal(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())

	outcome := h.sup.runCycle(context.Background())
	assert.Equal(t, OutcomeOk, outcome.Kind)

	st := h.actuator.Status()
	assert.Equal(t, uint64(1), st.CommandCount)
	assert.Equal(t, 10.0, st.Vehicle.SpeedMPS)
	assert.Equal(t, "healthy", h.monitor.HealthSummary().Status)
}

func TestCyclePedestrianBrakes(t *testing.T) {
	engine := perception.NewSimulated(perception.Results{
		Objects: perception.ObjectResult{Predictions: []perception.Detection{
			{Class: "pedestrian", Confidence: 0.95},
		}},
	})
	h := newHarness(t, engine)

	outcome := h.sup.runCycle(context.Background())
	require.Equal(t, OutcomeOk, outcome.Kind)

	st := h.actuator.Status()
	assert.Equal(t, control.Command{Brake: 0.3, IssuedAt: h.clock.Now()}, st.LastCommand)
	assert.False(t, st.EmergencyActive, "moderate braking is not an emergency stop")
}

func TestCycleEscalatesControlCriticalFault(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())
	h.actuator.SetFault(false, true)

	outcome := h.sup.runCycle(context.Background())
	require.Equal(t, OutcomeEmergencyTriggered, outcome.Kind)
	assert.Contains(t, outcome.Reason, "steering unresponsive")

	st := h.actuator.Status()
	assert.True(t, st.EmergencyActive)
	assert.Equal(t, control.Command{Brake: 1, IssuedAt: h.clock.Now()}, st.LastCommand)
	assert.Equal(t, uint64(0), st.CommandCount, "no command may execute on an escalated cycle")
	assert.Equal(t, "critical", h.monitor.HealthSummary().Status)
}

func TestCycleDegradedWhileLatched(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())

	// Operator-initiated stop with healthy hardware: diagnostics stay
	// non-critical, but commands are suppressed until release.
	h.actuator.EmergencyBrake("operator stop")

	outcome := h.sup.runCycle(context.Background())
	assert.Equal(t, OutcomeDegraded, outcome.Kind)
	assert.Equal(t, "emergency stop active", outcome.Reason)
	assert.Equal(t, uint64(0), h.actuator.Status().CommandCount)

	h.sup.ReleaseEmergency()
	outcome = h.sup.runCycle(context.Background())
	assert.Equal(t, OutcomeOk, outcome.Kind)
	assert.Equal(t, uint64(1), h.actuator.Status().CommandCount)
}

func TestCycleDegradedWithoutSnapshot(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	log := zerolog.Nop()
	sy := sensors.NewSynchronizer(clock, log)

	sup, err := New(DefaultConfig(), Deps{
		Clock:    clock,
		Log:      log,
		Sync:     sy,
		Monitor:  diagnostics.NewMonitor(clock, log),
		Actuator: control.NewActuator(control.DefaultConstraints(), clock, log),
		Decider:  decision.NewDecider(decision.DefaultConfig(), decision.Targets{}, clock, log),
	})
	require.NoError(t, err)

	outcome := sup.runCycle(context.Background())
	assert.Equal(t, OutcomeDegraded, outcome.Kind)
	assert.Contains(t, outcome.Reason, "no sensor data")
}

type blockingEngine struct{}

func (blockingEngine) DetectObjects(ctx context.Context, _ sensors.CameraFrame) (perception.ObjectResult, error) {
	<-ctx.Done()
	return perception.ObjectResult{}, ctx.Err()
}

func (blockingEngine) DetectLanes(ctx context.Context, _ sensors.CameraFrame) (perception.LaneResult, error) {
	<-ctx.Done()
	return perception.LaneResult{}, ctx.Err()
}

func TestCyclePerceptionTimeoutMeansNoDetections(t *testing.T) {
	h := newHarness(t, blockingEngine{})

	outcome := h.sup.runCycle(context.Background())
	assert.Equal(t, OutcomeOk, outcome.Kind, "a slow perception backend must not degrade the cycle")

	st := h.actuator.Status()
	assert.Equal(t, uint64(1), st.CommandCount)
	assert.Zero(t, st.LastCommand.Brake, "timeout yields no detections, so no obstacle braking")
}

func TestCycleRecoversFromPanic(t *testing.T) {
	h := newHarness(t, perception.NewSimulated(), func(d *Deps) {
		d.Link = func() diagnostics.LinkStatus { panic("link probe exploded") }
	})

	outcome := h.sup.runCycle(context.Background())
	assert.Equal(t, OutcomeDegraded, outcome.Kind)
	assert.Contains(t, outcome.Reason, "link probe exploded")
	assert.Equal(t, uint64(1), h.sup.Status().CycleCount, "panicked cycles still count")
}

func TestCycleRecordsOutcome(t *testing.T) {
	rec := &fakeRecorder{}
	h := newHarness(t, perception.NewSimulated(), func(d *Deps) {
		d.Recorder = rec
	})

	h.sup.runCycle(context.Background())
	h.sup.runCycle(context.Background())

	cycle, outcome := rec.last()
	assert.Equal(t, uint64(2), cycle)
	assert.Equal(t, OutcomeOk, outcome.Kind)
}

func TestCycleLinkDownIsNotCritical(t *testing.T) {
	h := newHarness(t, perception.NewSimulated(), func(d *Deps) {
		d.Link = func() diagnostics.LinkStatus { return diagnostics.LinkStatus{Connected: false} }
	})

	outcome := h.sup.runCycle(context.Background())
	assert.Equal(t, OutcomeOk, outcome.Kind, "a dead uplink degrades health, not the loop")
	assert.False(t, h.actuator.Status().EmergencyActive)
	assert.Equal(t, "error", h.monitor.HealthSummary().Status)
}

func TestRunStopLifecycle(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())
	period := h.sup.cfg.Period()

	errCh := make(chan error, 1)
	go func() { errCh <- h.sup.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		h.clock.Advance(period)
		return h.sup.Status().CycleCount >= 2
	}, 2*time.Second, time.Millisecond, "loop did not cycle")
	assert.True(t, h.sup.Status().Running)

	h.sup.Stop()
	require.NoError(t, <-errCh)

	count := h.sup.Status().CycleCount
	h.clock.Advance(period)
	h.clock.Advance(period)
	assert.Equal(t, count, h.sup.Status().CycleCount, "no cycles may run after Stop returns")
	assert.False(t, h.sup.Status().Running)
}

func TestRunHonorsContextCancel(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- h.sup.Run(ctx) }()
	cancel()

	assert.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunRejectsSecondStart(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())

	errCh := make(chan error, 1)
	go func() { errCh <- h.sup.Run(context.Background()) }()

	require.Eventually(t, func() bool { return h.sup.Status().Running }, time.Second, time.Millisecond)
	assert.Error(t, h.sup.Run(context.Background()))

	h.sup.Stop()
	require.NoError(t, <-errCh)
}

func TestStatusSnapshot(t *testing.T) {
	h := newHarness(t, perception.NewSimulated())
	h.sup.runCycle(context.Background())

	st := h.sup.Status()
	assert.Equal(t, uint64(1), st.CycleCount)
	assert.Equal(t, "autonomous", st.Mode)
	assert.Equal(t, "healthy", st.Health.Status)
	assert.Equal(t, 1, st.Cycles.Samples)
	assert.Equal(t, decision.Targets{HeadingDeg: 0, SpeedMPS: 10}, st.Targets)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.Period())

	cfg.UpdateRateHz = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxSkew = 0
	assert.Error(t, cfg.Validate())
}

func TestCycleStatsSummary(t *testing.T) {
	var r durationRing
	assert.Zero(t, r.summary().Samples)

	for i := 1; i <= 10; i++ {
		r.add(time.Duration(i) * time.Millisecond)
	}
	s := r.summary()
	assert.Equal(t, 10, s.Samples)
	assert.InDelta(t, 5.5, s.MeanMS, 1e-9)
	assert.InDelta(t, 10.0, s.MaxMS, 1e-9)
	assert.GreaterOrEqual(t, s.P95MS, s.P50MS)
}
