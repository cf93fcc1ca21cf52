package pipeline

import (
	"time"

	"tether/internal/api"
)

// Phase names one bootstrap phase.
type Phase string

const (
	PhaseInstall  Phase = "install"
	PhaseResolve  Phase = "resolve"
	PhaseActivate Phase = "activate"
)

// Stage is the progress of a pipeline run.
type Stage int

const (
	StageInstalling Stage = iota
	StageInstalled
	StageResolving
	StageResolved
	StageActivating
	StageActive
	StageComplete
	StageFailed
)

// String makes Stage satisfy the fmt.Stringer interface.
func (s Stage) String() string {
	switch s {
	case StageInstalling:
		return "INSTALL"
	case StageInstalled:
		return "INSTALLED"
	case StageResolving:
		return "RESOLVING"
	case StageResolved:
		return "RESOLVED"
	case StageActivating:
		return "ACTIVATING"
	case StageActive:
		return "ACTIVE"
	case StageComplete:
		return "COMPLETE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// UnitStatus is the outcome for one unit.
type UnitStatus string

const (
	UnitPending          UnitStatus = "pending"
	UnitInstalled        UnitStatus = "installed"
	UnitInstallFailed    UnitStatus = "install-failed"
	UnitResolveFailed    UnitStatus = "resolve-failed"
	UnitResolved         UnitStatus = "resolved"
	UnitActive           UnitStatus = "active"
	UnitStartFailed      UnitStatus = "start-failed"
	UnitDependencyFailed UnitStatus = "dependency-failed"
	UnitNotStarted       UnitStatus = "not-started"
)

// IsFailure reports whether the status is one of the failure outcomes.
func (s UnitStatus) IsFailure() bool {
	switch s {
	case UnitInstallFailed, UnitResolveFailed, UnitStartFailed, UnitDependencyFailed, UnitNotStarted:
		return true
	}
	return false
}

// UnitReport is the outcome for one unit.
type UnitReport struct {
	Identifier string
	Version    string
	StartLevel int
	AutoStart  bool
	Status     UnitStatus
	// Err is the install, resolve or start error, or why the unit did not
	// start.
	Err     error
	Service api.ServiceName
}

// PhaseReport times one phase.
type PhaseReport struct {
	Phase    Phase
	Duration time.Duration
	Err      error
}

// Report summarizes a pipeline run.
type Report struct {
	RunID    string
	Name     string
	Stage    Stage
	Started  time.Time
	Duration time.Duration
	Phases   []PhaseReport
	// Units in configuration order.
	Units []UnitReport
}

// Count returns how many units ended with status s.
func (r *Report) Count(s UnitStatus) int {
	n := 0
	for _, u := range r.Units {
		if u.Status == s {
			n++
		}
	}
	return n
}

// Failures returns the units that ended in a failure status.
func (r *Report) Failures() []UnitReport {
	var out []UnitReport
	for _, u := range r.Units {
		if u.Status.IsFailure() {
			out = append(out, u)
		}
	}
	return out
}

// Unit returns the report for identifier.
func (r *Report) Unit(identifier string) (UnitReport, bool) {
	for _, u := range r.Units {
		if u.Identifier == identifier {
			return u, true
		}
	}
	return UnitReport{}, false
}
