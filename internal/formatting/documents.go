package formatting

import (
	"time"

	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

// ReportDocument is the serialized form of a pipeline report.
type ReportDocument struct {
	RunID    string          `json:"runId" yaml:"runId"`
	Name     string          `json:"name" yaml:"name"`
	Stage    string          `json:"stage" yaml:"stage"`
	Started  time.Time       `json:"started" yaml:"started"`
	Duration string          `json:"duration" yaml:"duration"`
	Phases   []PhaseDocument `json:"phases" yaml:"phases"`
	Units    []UnitDocument  `json:"units" yaml:"units"`
	Summary  map[string]int  `json:"summary" yaml:"summary"`
}

// PhaseDocument is one timed phase.
type PhaseDocument struct {
	Phase    string `json:"phase" yaml:"phase"`
	Duration string `json:"duration" yaml:"duration"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// UnitDocument is one unit outcome.
type UnitDocument struct {
	Identifier string `json:"identifier" yaml:"identifier"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	StartLevel int    `json:"startLevel" yaml:"startLevel"`
	AutoStart  bool   `json:"autoStart" yaml:"autoStart"`
	Status     string `json:"status" yaml:"status"`
	Service    string `json:"service,omitempty" yaml:"service,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatusDocument is the serialized form of a registry status.
type StatusDocument struct {
	Name    string `json:"name" yaml:"name"`
	State   string `json:"state" yaml:"state"`
	Mode    string `json:"mode" yaml:"mode"`
	WantsUp bool   `json:"wantsUp" yaml:"wantsUp"`
	Blocked string `json:"blocked,omitempty" yaml:"blocked,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ManifestDocument describes an installable unit.
type ManifestDocument struct {
	Identifier string   `json:"identifier" yaml:"identifier"`
	Version    string   `json:"version,omitempty" yaml:"version,omitempty"`
	StartLevel int      `json:"startLevel" yaml:"startLevel"`
	Requires   []string `json:"requires,omitempty" yaml:"requires,omitempty"`
	Provides   []string `json:"provides,omitempty" yaml:"provides,omitempty"`
	Runnable   bool     `json:"runnable" yaml:"runnable"`
	Location   string   `json:"location" yaml:"location"`
}

// NewReportDocument converts a report. Durations are rounded to the
// millisecond.
func NewReportDocument(r *pipeline.Report) ReportDocument {
	doc := ReportDocument{
		RunID:    r.RunID,
		Name:     r.Name,
		Stage:    r.Stage.String(),
		Started:  r.Started,
		Duration: r.Duration.Round(time.Millisecond).String(),
		Phases:   make([]PhaseDocument, 0, len(r.Phases)),
		Units:    make([]UnitDocument, 0, len(r.Units)),
		Summary:  make(map[string]int),
	}
	for _, p := range r.Phases {
		doc.Phases = append(doc.Phases, PhaseDocument{
			Phase:    string(p.Phase),
			Duration: p.Duration.Round(time.Millisecond).String(),
			Error:    errString(p.Err),
		})
	}
	for _, u := range r.Units {
		ud := UnitDocument{
			Identifier: u.Identifier,
			Version:    u.Version,
			StartLevel: u.StartLevel,
			AutoStart:  u.AutoStart,
			Status:     string(u.Status),
			Error:      errString(u.Err),
		}
		if !u.Service.IsZero() {
			ud.Service = u.Service.String()
		}
		doc.Units = append(doc.Units, ud)
		doc.Summary[string(u.Status)]++
	}
	return doc
}

// NewStatusDocuments converts registry statuses.
func NewStatusDocuments(statuses []orchestrator.Status) []StatusDocument {
	out := make([]StatusDocument, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, StatusDocument{
			Name:    s.Name.String(),
			State:   s.State.String(),
			Mode:    s.Mode.String(),
			WantsUp: s.WantsUp,
			Blocked: s.Blocked,
			Error:   errString(s.Err),
		})
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewManifestDocuments converts installed units.
func NewManifestDocuments(units []*pipeline.Unit) []ManifestDocument {
	out := make([]ManifestDocument, 0, len(units))
	for _, u := range units {
		out = append(out, ManifestDocument{
			Identifier: u.Identifier,
			Version:    u.Version,
			StartLevel: u.StartLevel,
			Requires:   u.Requires,
			Provides:   u.Provides,
			Runnable:   u.Activator != nil,
			Location:   u.Location,
		})
	}
	return out
}
