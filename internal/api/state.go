package api

import (
	"fmt"
	"strings"
	"time"
)

// State is the lifecycle state of a service controller.
type State int

const (
	StateDown State = iota
	StateStarting
	StateUp
	StateStopping
	StateStartFailed
	StateRemoved
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateDown:
		return "DOWN"
	case StateStarting:
		return "STARTING"
	case StateUp:
		return "UP"
	case StateStopping:
		return "STOPPING"
	case StateStartFailed:
		return "START_FAILED"
	case StateRemoved:
		return "REMOVED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition happens on its own:
// UP, START_FAILED and REMOVED.
func (s State) IsTerminal() bool {
	return s == StateUp || s == StateStartFailed || s == StateRemoved
}

// IsActive reports whether a start or stop is in flight or the service is up.
// Dependencies of an active service must not go down.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateUp || s == StateStopping
}

// Mode controls how eagerly a service starts.
type Mode int

const (
	// ModeActive starts the service as soon as its dependencies allow.
	ModeActive Mode = iota
	// ModeOnDemand starts the service only while a dependent needs it.
	ModeOnDemand
	// ModeNever forces the service down regardless of dependents.
	ModeNever
	// ModeRemove stops the service and then deletes it from the registry.
	ModeRemove
)

// String makes Mode satisfy the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "ACTIVE"
	case ModeOnDemand:
		return "ON_DEMAND"
	case ModeNever:
		return "NEVER"
	case ModeRemove:
		return "REMOVE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts a case-insensitive mode name ("active", "on-demand",
// "on_demand", "passive", "never", "remove") to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return ModeActive, nil
	case "on_demand", "on-demand", "ondemand", "passive":
		return ModeOnDemand, nil
	case "never":
		return ModeNever, nil
	case "remove":
		return ModeRemove, nil
	default:
		return ModeActive, fmt.Errorf("unknown service mode %q", s)
	}
}

// TransitionKind tags a Transition.
type TransitionKind int

const (
	TransitionStarting TransitionKind = iota
	TransitionStarted
	TransitionFailed
	TransitionStopping
	TransitionStopped
	TransitionRemoved
)

// String makes TransitionKind satisfy the fmt.Stringer interface.
func (k TransitionKind) String() string {
	switch k {
	case TransitionStarting:
		return "Starting"
	case TransitionStarted:
		return "Started"
	case TransitionFailed:
		return "Failed"
	case TransitionStopping:
		return "Stopping"
	case TransitionStopped:
		return "Stopped"
	case TransitionRemoved:
		return "Removed"
	default:
		return fmt.Sprintf("TransitionKind(%d)", int(k))
	}
}

// KindForState returns the transition kind that ends in the given state.
func KindForState(s State) TransitionKind {
	switch s {
	case StateStarting:
		return TransitionStarting
	case StateUp:
		return TransitionStarted
	case StateStartFailed:
		return TransitionFailed
	case StateStopping:
		return TransitionStopping
	case StateRemoved:
		return TransitionRemoved
	default:
		return TransitionStopped
	}
}

// Transition is a single observed state change of one service.
// Err is set for TransitionFailed (the start cause) and for TransitionStopped
// when the stop function reported an error.
type Transition struct {
	Service ServiceName
	Kind    TransitionKind
	From    State
	To      State
	Err     error
	At      time.Time
}

// String renders the transition for log output.
func (t Transition) String() string {
	if t.Err != nil {
		return fmt.Sprintf("%s %s (%s -> %s): %v", t.Service, t.Kind, t.From, t.To, t.Err)
	}
	return fmt.Sprintf("%s %s (%s -> %s)", t.Service, t.Kind, t.From, t.To)
}
