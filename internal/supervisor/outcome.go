package supervisor

import "fmt"

// OutcomeKind classifies how a control cycle ended.
type OutcomeKind int

const (
	// OutcomeOk means the cycle captured, decided, and actuated normally.
	OutcomeOk OutcomeKind = iota

	// OutcomeDegraded means the cycle completed but skipped work, e.g. no
	// synchronized snapshot or a recovered panic.
	OutcomeDegraded

	// OutcomeEmergencyTriggered means this cycle engaged the emergency
	// stop.
	OutcomeEmergencyTriggered
)

// String returns the snake_case outcome name, used as a metric label.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOk:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	case OutcomeEmergencyTriggered:
		return "emergency_triggered"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// CycleOutcome is the typed result of one control cycle.
type CycleOutcome struct {
	Kind   OutcomeKind
	Reason string
}

func okOutcome() CycleOutcome {
	return CycleOutcome{Kind: OutcomeOk}
}

func degraded(reason string) CycleOutcome {
	return CycleOutcome{Kind: OutcomeDegraded, Reason: reason}
}

func emergencyTriggered(reason string) CycleOutcome {
	return CycleOutcome{Kind: OutcomeEmergencyTriggered, Reason: reason}
}
