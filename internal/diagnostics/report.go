package diagnostics

import (
	"time"

	"github.com/google/uuid"
)

// Report is one diagnostic finding about a component. Detail carries
// optional structured data; nil when the message says it all.
type Report struct {
	ID        uuid.UUID
	Timestamp time.Time
	Component Component
	Level     Level
	Message   string
	Detail    map[string]any
}

// ControlCritical reports whether this finding must trigger an emergency
// stop: a critical-severity fault in the control component.
func (r Report) ControlCritical() bool {
	return r.Level == LevelCritical && r.Component == ComponentControl
}
