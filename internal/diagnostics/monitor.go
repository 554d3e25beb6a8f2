package diagnostics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/autoflux/autoflux/internal/control"
	"github.com/autoflux/autoflux/internal/sensors"
	"github.com/autoflux/autoflux/internal/timeutil"
)

const (
	// defaultRetention is how many reports the monitor keeps.
	defaultRetention = 64

	// defaultStaleAfter is the age past which a sensor reading counts as
	// stale.
	defaultStaleAfter = 5 * time.Second

	// defaultLinkErrorLimit is the error count past which a connected link
	// is still reported unhealthy.
	defaultLinkErrorLimit = 10

	// summaryWindow is how many recent reports the health summary inspects.
	summaryWindow = 10
)

// LinkStatus describes the uplink to the operator backend.
type LinkStatus struct {
	Connected  bool
	ErrorCount int
}

// SystemState bundles the inputs for a full diagnostic pass.
type SystemState struct {
	Sensors  map[string]*sensors.Reading
	Link     LinkStatus
	Actuator control.ActuatorStatus
}

// Summary is the aggregate health over the recent report window.
type Summary struct {
	Status        string `json:"status"`
	Reports       int    `json:"reports"`
	CriticalCount int    `json:"critical_count"`
	ErrorCount    int    `json:"error_count"`
	WarningCount  int    `json:"warning_count"`
}

// Monitor runs per-component health checks and keeps a bounded history of
// the resulting reports.
type Monitor struct {
	clock          timeutil.Clock
	log            zerolog.Logger
	retention      int
	staleAfter     time.Duration
	linkErrorLimit int

	mu      sync.Mutex
	history []Report
}

// Option adjusts monitor tuning.
type Option func(*Monitor)

// WithStaleAfter overrides the sensor staleness threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Monitor) { m.staleAfter = d }
}

// WithRetention overrides how many reports are kept.
func WithRetention(n int) Option {
	return func(m *Monitor) { m.retention = n }
}

// WithLinkErrorLimit overrides the link error-count threshold.
func WithLinkErrorLimit(n int) Option {
	return func(m *Monitor) { m.linkErrorLimit = n }
}

// NewMonitor creates a monitor with default tuning.
func NewMonitor(clock timeutil.Clock, log zerolog.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		clock:          clock,
		log:            log,
		retention:      defaultRetention,
		staleAfter:     defaultStaleAfter,
		linkErrorLimit: defaultLinkErrorLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Monitor) record(component Component, level Level, message string, detail map[string]any) Report {
	r := Report{
		ID:        uuid.New(),
		Timestamp: m.clock.Now(),
		Component: component,
		Level:     level,
		Message:   message,
		Detail:    detail,
	}

	m.mu.Lock()
	m.history = append(m.history, r)
	if len(m.history) > m.retention {
		m.history = m.history[len(m.history)-m.retention:]
	}
	m.mu.Unlock()

	evt := m.log.Debug()
	if level >= LevelError {
		evt = m.log.Warn()
	}
	evt.Stringer("component", component).
		Stringer("level", level).
		Str("message", message).
		Msg("diagnostic report")
	return r
}

// CheckSensors inspects the latest reading per sensor. A sensor with no data
// yet, an error-status reading, or a reading older than the staleness
// threshold counts as an issue; any issue yields a single warning report
// naming every affected sensor.
func (m *Monitor) CheckSensors(latest map[string]*sensors.Reading) Report {
	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := m.clock.Now()
	var issues []string
	for _, id := range ids {
		r := latest[id]
		switch {
		case r == nil:
			issues = append(issues, id+": no data")
		case r.Status == sensors.StatusError:
			issues = append(issues, id+": error state")
		case now.Sub(r.CapturedAt) > m.staleAfter:
			issues = append(issues, fmt.Sprintf("%s: stale data (%v old)", id, now.Sub(r.CapturedAt).Round(time.Millisecond)))
		}
	}

	if len(issues) > 0 {
		return m.record(ComponentSensors, LevelWarning,
			"sensor issues: "+strings.Join(issues, "; "),
			map[string]any{"issues": issues})
	}
	return m.record(ComponentSensors, LevelInfo, fmt.Sprintf("all %d sensors nominal", len(ids)), nil)
}

// CheckLink inspects the operator uplink. A disconnected link is an error;
// a connected link with an excessive error count is a warning.
func (m *Monitor) CheckLink(st LinkStatus) Report {
	switch {
	case !st.Connected:
		return m.record(ComponentLink, LevelError, "link disconnected", nil)
	case st.ErrorCount > m.linkErrorLimit:
		return m.record(ComponentLink, LevelWarning,
			fmt.Sprintf("link degraded: %d errors", st.ErrorCount),
			map[string]any{"error_count": st.ErrorCount})
	default:
		return m.record(ComponentLink, LevelInfo, "link nominal", nil)
	}
}

// CheckActuator inspects actuation hardware. Unresponsive steering or
// brakes, or any recorded actuator fault, is critical. A raised speed
// warning on otherwise healthy hardware is a warning.
func (m *Monitor) CheckActuator(st control.ActuatorStatus) Report {
	var faults []string
	if !st.SteeringResponsive {
		faults = append(faults, "steering unresponsive")
	}
	if !st.BrakesResponsive {
		faults = append(faults, "brakes unresponsive")
	}
	if st.ActuatorErrors > 0 {
		faults = append(faults, fmt.Sprintf("%d actuator errors", st.ActuatorErrors))
	}
	if len(faults) > 0 {
		return m.record(ComponentControl, LevelCritical, strings.Join(faults, "; "),
			map[string]any{"actuator_errors": st.ActuatorErrors})
	}
	if st.SpeedWarning {
		return m.record(ComponentControl, LevelWarning,
			fmt.Sprintf("speed %.1f m/s above envelope", st.Vehicle.SpeedMPS),
			map[string]any{"speed_mps": st.Vehicle.SpeedMPS})
	}
	return m.record(ComponentControl, LevelInfo, "actuators nominal", nil)
}

// RunAll performs a full diagnostic pass in fixed order: sensors, link,
// actuator.
func (m *Monitor) RunAll(state SystemState) []Report {
	return []Report{
		m.CheckSensors(state.Sensors),
		m.CheckLink(state.Link),
		m.CheckActuator(state.Actuator),
	}
}

// Recent returns up to n most recent reports, oldest first.
func (m *Monitor) Recent(n int) []Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.history) {
		n = len(m.history)
	}
	out := make([]Report, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

// HealthSummary aggregates the last few reports into a single status. The
// worst level present wins: critical, then error, then warning, then
// healthy. With no reports the status is unknown.
func (m *Monitor) HealthSummary() Summary {
	recent := m.Recent(summaryWindow)
	if len(recent) == 0 {
		return Summary{Status: "unknown"}
	}

	s := Summary{Reports: len(recent)}
	for _, r := range recent {
		switch r.Level {
		case LevelCritical:
			s.CriticalCount++
		case LevelError:
			s.ErrorCount++
		case LevelWarning:
			s.WarningCount++
		}
	}

	switch {
	case s.CriticalCount > 0:
		s.Status = "critical"
	case s.ErrorCount > 0:
		s.Status = "error"
	case s.WarningCount > 0:
		s.Status = "warning"
	default:
		s.Status = "healthy"
	}
	return s
}
