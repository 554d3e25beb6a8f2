// Package config loads and validates the platform configuration from YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/autoflux/autoflux/internal/telemetry"
)

// Duration wraps time.Duration so YAML accepts values like "100ms".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SensorConfig declares one simulated sensor.
type SensorConfig struct {
	ID   string `yaml:"id" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=lidar camera radar gps imu"`
}

// GPSConfig declares an optional serial-attached GNSS receiver. When Device
// is set, it replaces any simulated GPS sensor.
type GPSConfig struct {
	ID     string `yaml:"id"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud" validate:"omitempty,min=1200"`
}

// LoopConfig tunes the control loop.
type LoopConfig struct {
	UpdateRateHz      float64  `yaml:"update_rate_hz" validate:"gt=0,lte=1000"`
	MaxSkew           Duration `yaml:"max_skew" validate:"gt=0"`
	PerceptionTimeout Duration `yaml:"perception_timeout" validate:"gte=0"`
	StatusLogEvery    uint64   `yaml:"status_log_every"`
}

// ControlConfig tunes the actuator safety envelope.
type ControlConfig struct {
	MaxSteeringDeg float64 `yaml:"max_steering_deg" validate:"gt=0,lte=90"`
	MaxSpeedMPS    float64 `yaml:"max_speed_mps" validate:"gt=0"`
	Mode           string  `yaml:"mode" validate:"omitempty,oneof=manual assisted autonomous"`
}

// DecisionConfig tunes the decision policy and initial targets.
type DecisionConfig struct {
	PedestrianClass     string  `yaml:"pedestrian_class"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold" validate:"gte=0,lte=1"`
	TargetHeadingDeg    float64 `yaml:"target_heading_deg" validate:"gte=-180,lte=360"`
	TargetSpeedMPS      float64 `yaml:"target_speed_mps" validate:"gte=0"`
}

// PerceptionConfig selects the perception backend.
type PerceptionConfig struct {
	// Backend is "simulated" or "remote".
	Backend string   `yaml:"backend" validate:"oneof=simulated remote"`
	URL     string   `yaml:"url" validate:"required_if=Backend remote,omitempty,url"`
	Timeout Duration `yaml:"timeout" validate:"gte=0"`
}

// JournalConfig controls the optional sqlite flight recorder.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"required_if=Enabled true"`
}

// Config is the full platform configuration.
type Config struct {
	Log        telemetry.LoggingConfig `yaml:"log"`
	Metrics    telemetry.MetricsConfig `yaml:"metrics"`
	Loop       LoopConfig              `yaml:"loop"`
	Sensors    []SensorConfig          `yaml:"sensors" validate:"min=1,dive"`
	GPS        GPSConfig               `yaml:"gps"`
	Control    ControlConfig           `yaml:"control"`
	Decision   DecisionConfig          `yaml:"decision"`
	Perception PerceptionConfig        `yaml:"perception"`
	Journal    JournalConfig           `yaml:"journal"`
}

// Default returns the configuration used when no file is given: a simulated
// three-sensor rig at 10 Hz.
func Default() Config {
	return Config{
		Log: telemetry.LoggingConfig{Level: "info", Format: "json"},
		Loop: LoopConfig{
			UpdateRateHz:      10,
			MaxSkew:           Duration(100 * time.Millisecond),
			PerceptionTimeout: Duration(80 * time.Millisecond),
			StatusLogEvery:    100,
		},
		Sensors: []SensorConfig{
			{ID: "lidar_0", Kind: "lidar"},
			{ID: "camera_0", Kind: "camera"},
			{ID: "gps_0", Kind: "gps"},
		},
		Control: ControlConfig{
			MaxSteeringDeg: 30,
			MaxSpeedMPS:    30,
			Mode:           "autonomous",
		},
		Decision: DecisionConfig{
			PedestrianClass:     "pedestrian",
			ConfidenceThreshold: 0.7,
		},
		Perception: PerceptionConfig{
			Backend: "simulated",
			Timeout: Duration(5 * time.Second),
		},
	}
}

// Load reads a YAML config file, layers it over the defaults, and validates
// the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func (c Config) Validate() error {
	return validator.New(validator.WithRequiredStructEnabled()).Struct(c)
}
