package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/autoflux/autoflux/internal/config"
	"github.com/autoflux/autoflux/internal/control"
	"github.com/autoflux/autoflux/internal/decision"
	"github.com/autoflux/autoflux/internal/diagnostics"
	"github.com/autoflux/autoflux/internal/journal"
	"github.com/autoflux/autoflux/internal/perception"
	"github.com/autoflux/autoflux/internal/sensors"
	"github.com/autoflux/autoflux/internal/supervisor"
	"github.com/autoflux/autoflux/internal/telemetry"
	"github.com/autoflux/autoflux/internal/timeutil"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the supervisory control loop",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func run(parent context.Context, cfg config.Config) error {
	log := telemetry.NewLogger(cfg.Log)
	clock := timeutil.RealClock{}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NewMetrics(cfg.Metrics)
	if cfg.Metrics.Enabled {
		srv := metrics.Serve(cfg.Metrics.ListenAddress)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		log.Info().Str("addr", cfg.Metrics.ListenAddress).Msg("metrics listening")
	}

	sync, closeSensors, err := buildSensors(cfg, clock, telemetry.Component(log, "sensors"))
	if err != nil {
		return err
	}
	defer closeSensors()

	monitor := diagnostics.NewMonitor(clock, telemetry.Component(log, "diagnostics"))

	actuator := control.NewActuator(control.Constraints{
		MaxSteeringDeg: cfg.Control.MaxSteeringDeg,
		MaxSpeedMPS:    cfg.Control.MaxSpeedMPS,
	}, clock, telemetry.Component(log, "control"))
	if cfg.Control.Mode != "" {
		mode, err := control.ParseMode(cfg.Control.Mode)
		if err != nil {
			return err
		}
		actuator.SetMode(mode)
	}

	decider := decision.NewDecider(decision.Config{
		MaxSteeringDeg:      cfg.Control.MaxSteeringDeg,
		PedestrianClass:     cfg.Decision.PedestrianClass,
		ConfidenceThreshold: cfg.Decision.ConfidenceThreshold,
	}, decision.Targets{
		HeadingDeg: cfg.Decision.TargetHeadingDeg,
		SpeedMPS:   cfg.Decision.TargetSpeedMPS,
	}, clock, telemetry.Component(log, "decision"))

	engine := buildEngine(cfg, clock, telemetry.Component(log, "perception"))

	var recorder supervisor.Recorder
	if cfg.Journal.Enabled {
		store, err := journal.Open(cfg.Journal.Path, clock, telemetry.Component(log, "journal"))
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck
		recorder = store
	}

	sup, err := supervisor.New(supervisor.Config{
		UpdateRateHz:      cfg.Loop.UpdateRateHz,
		MaxSkew:           cfg.Loop.MaxSkew.Std(),
		PerceptionTimeout: cfg.Loop.PerceptionTimeout.Std(),
		StatusLogEvery:    cfg.Loop.StatusLogEvery,
	}, supervisor.Deps{
		Clock:    clock,
		Log:      telemetry.Component(log, "supervisor"),
		Metrics:  metrics,
		Sync:     sync,
		Monitor:  monitor,
		Actuator: actuator,
		Decider:  decider,
		Engine:   engine,
		Recorder: recorder,
	})
	if err != nil {
		return err
	}

	if configPath != "" {
		watcher, err := config.Watch(configPath, telemetry.Component(log, "config"), func(next config.Config) {
			decider.SetTarget(decision.Targets{
				HeadingDeg: next.Decision.TargetHeadingDeg,
				SpeedMPS:   next.Decision.TargetSpeedMPS,
			})
			if next.Control.Mode != "" {
				if mode, err := control.ParseMode(next.Control.Mode); err == nil {
					actuator.SetMode(mode)
				}
			}
		})
		if err != nil {
			log.Warn().Err(err).Msg("config hot reload unavailable")
		} else {
			defer watcher.Close() //nolint:errcheck
		}
	}

	err = sup.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutdown requested")
		return nil
	}
	return err
}

// buildSensors registers the configured sources. Simulated sensors come from
// the sensors list; a GPS device entry swaps the simulated GPS for serial
// hardware.
func buildSensors(cfg config.Config, clock timeutil.Clock, log zerolog.Logger) (*sensors.Synchronizer, func(), error) {
	sync := sensors.NewSynchronizer(clock, log)
	var closers []func() error

	for _, sc := range cfg.Sensors {
		kind, err := sensors.ParseKind(sc.Kind)
		if err != nil {
			return nil, nil, fmt.Errorf("sensor %s: %w", sc.ID, err)
		}
		if kind == sensors.KindGPS && cfg.GPS.Device != "" {
			continue
		}
		sync.Register(sensors.NewSimulatedSource(sc.ID, kind, clock))
	}

	if cfg.GPS.Device != "" {
		id := cfg.GPS.ID
		if id == "" {
			id = "gps_0"
		}
		gps, err := sensors.OpenSerialGPS(id, cfg.GPS.Device, cfg.GPS.Baud, clock)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, gps.Close)
		sync.Register(gps)
	}

	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}
	return sync, closeAll, nil
}

// buildEngine selects the perception backend and wraps it with stats.
func buildEngine(cfg config.Config, clock timeutil.Clock, log zerolog.Logger) perception.Engine {
	var engine perception.Engine
	switch cfg.Perception.Backend {
	case "remote":
		engine = perception.NewRemote(cfg.Perception.URL, cfg.Perception.Timeout.Std(), log)
	default:
		engine = perception.NewSimulated()
	}
	return perception.NewInstrumented(engine, clock)
}
