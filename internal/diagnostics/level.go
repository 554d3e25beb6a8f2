package diagnostics

import "fmt"

// Level is the severity of a diagnostic report. Levels are ordered;
// comparisons like l >= LevelError are meaningful.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelCritical
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelCritical:
		return "critical"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Component identifies the subsystem a report is about. The set is closed:
// escalation decisions switch on it, so free-form strings are not allowed.
type Component int

const (
	// ComponentSensors covers the sensor fleet and the synchronizer.
	ComponentSensors Component = iota

	// ComponentLink covers the communication link to the operator backend.
	ComponentLink

	// ComponentControl covers steering, brake, and throttle actuation.
	// Critical reports against this component trigger an emergency stop.
	ComponentControl
)

// String returns the lowercase component name.
func (c Component) String() string {
	switch c {
	case ComponentSensors:
		return "sensors"
	case ComponentLink:
		return "link"
	case ComponentControl:
		return "control"
	default:
		return fmt.Sprintf("component(%d)", int(c))
	}
}
