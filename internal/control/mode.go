package control

import "fmt"

// Mode is the vehicle's driving authority mode.
type Mode int

const (
	// ModeManual means a human driver holds authority; autonomous commands
	// are advisory only.
	ModeManual Mode = iota

	// ModeAssisted means the platform may issue corrective commands while a
	// driver supervises.
	ModeAssisted

	// ModeAutonomous means the control loop holds full authority.
	ModeAutonomous
)

// String returns the lowercase mode name.
func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeAssisted:
		return "assisted"
	case ModeAutonomous:
		return "autonomous"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "manual":
		return ModeManual, nil
	case "assisted":
		return ModeAssisted, nil
	case "autonomous":
		return ModeAutonomous, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}
