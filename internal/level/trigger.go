package level

import (
	"fmt"
	"strings"
)

// Trigger describes why the host invoked the program. Hosts may combine
// kinds.
type Trigger uint32

const (
	// TriggerTerminal is a run request from the terminal. Starting from the
	// terminal also runs one cycle immediately.
	TriggerTerminal Trigger = 1 << iota
	// TriggerButton is a toolbar, button-panel or timer request.
	TriggerButton
	// TriggerUpdate is a scheduled tick.
	TriggerUpdate
	// TriggerOther covers every other invocation source.
	TriggerOther
)

// Manual reports whether t carries a start/stop request.
func (t Trigger) Manual() bool {
	return t&(TriggerTerminal|TriggerButton) != 0
}

func (t Trigger) String() string {
	if t == 0 {
		return "None"
	}
	var parts []string
	if t&TriggerTerminal != 0 {
		parts = append(parts, "Terminal")
	}
	if t&TriggerButton != 0 {
		parts = append(parts, "Trigger")
	}
	if t&TriggerUpdate != 0 {
		parts = append(parts, "Update")
	}
	if t&TriggerOther != 0 {
		parts = append(parts, "Other")
	}
	return strings.Join(parts, ", ")
}

// State is the lifecycle state.
type State int

const (
	StateOff State = iota
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "off":
		*s = StateOff
	case "running":
		*s = StateRunning
	default:
		return fmt.Errorf("level: unknown state %q", string(b))
	}
	return nil
}
