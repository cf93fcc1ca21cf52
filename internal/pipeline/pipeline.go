package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"tether/internal/api"
	"tether/internal/orchestrator"
	"tether/internal/services"
	"tether/pkg/logging"
)

// DefaultName is the root service name of a pipeline when Options.Name is
// empty.
const DefaultName = "tether.bootstrap"

// Timeouts bounds each part of a run. A zero duration means no limit of its
// own; the context passed to Run still applies.
type Timeouts struct {
	// Install bounds the whole install phase.
	Install time.Duration
	// Resolve bounds the resolver call.
	Resolve time.Duration
	// Activate bounds the whole activate phase.
	Activate time.Duration
	// Unit bounds the wait for a single unit to settle.
	Unit time.Duration
}

// DefaultTimeouts returns the timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Install:  30 * time.Second,
		Resolve:  30 * time.Second,
		Activate: 5 * time.Minute,
		Unit:     30 * time.Second,
	}
}

// Recorder receives pipeline measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	PhaseCompleted(phase Phase, d time.Duration, err error)
	UnitSettled(status UnitStatus)
}

type nopRecorder struct{}

func (nopRecorder) PhaseCompleted(Phase, time.Duration, error) {}
func (nopRecorder) UnitSettled(UnitStatus)                     {}

// Options configures a Pipeline.
type Options struct {
	// Name is the dot-separated root of every service the pipeline
	// registers. Defaults to DefaultName.
	Name      string
	Units     []UnitConfig
	Installer Installer
	Resolver  Resolver
	Timeouts  Timeouts
	// InstallConcurrency bounds concurrent Install calls. Defaults to 4.
	InstallConcurrency int
	// RequireUnits fails the install phase when no unit could be installed.
	RequireUnits bool
	Recorder     Recorder
}

type unitRecord struct {
	cfg      UnitConfig
	unit     *Unit
	status   UnitStatus
	err      error
	deployed bool
}

// Pipeline brings the configured units up in three phases, each represented
// by services in the registry:
//
//	<name>.phase.install   -> registers <name>.unit.<id>.installed, then <name>.marker.installed
//	<name>.phase.resolve   -> registers <name>.unit.<id>.active,    then <name>.marker.resolved
//	<name>.phase.activate  -> activates units,                      then <name>.marker.active
//
// The resolve phase depends on the installed marker and the activate phase on
// the resolved marker, so ordering comes from the registry itself.
type Pipeline struct {
	orch     *orchestrator.Orchestrator
	opts     Options
	names    names
	recorder Recorder
	runID    string

	mu       sync.Mutex
	runCtx   context.Context
	started  time.Time
	ran      bool
	stage    Stage
	records  map[string]*unitRecord
	order    []string
	resolved []*Unit
	wires    map[string][]string
	phases   []PhaseReport
}

// New validates opts and creates a pipeline. Nothing is registered until Run.
func New(orch *orchestrator.Orchestrator, opts Options) (*Pipeline, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	root, err := api.ParseServiceName(opts.Name)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline name: %w", err)
	}
	if opts.Installer == nil {
		return nil, errors.New("pipeline needs an installer")
	}
	if opts.Resolver == nil {
		return nil, errors.New("pipeline needs a resolver")
	}
	if opts.InstallConcurrency <= 0 {
		opts.InstallConcurrency = 4
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	p := &Pipeline{
		orch:     orch,
		opts:     opts,
		names:    names{root: root},
		recorder: recorder,
		runID:    uuid.New().String(),
		runCtx:   context.Background(),
		records:  make(map[string]*unitRecord),
		wires:    make(map[string][]string),
	}
	for _, uc := range opts.Units {
		if err := validIdentifier(uc.Identifier); err != nil {
			return nil, err
		}
		if _, dup := p.records[uc.Identifier]; dup {
			return nil, fmt.Errorf("unit %s configured twice", uc.Identifier)
		}
		p.records[uc.Identifier] = &unitRecord{cfg: uc, status: UnitPending}
		p.order = append(p.order, uc.Identifier)
	}
	return p, nil
}

// RunID identifies this pipeline instance in logs and reports.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Stage returns how far the run has progressed.
func (p *Pipeline) Stage() Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stage
}

// Run registers the phase services and waits until the active marker is UP,
// a phase fails or ctx is done. Unit failures do not fail the run; they are
// listed in the report. A failed phase is returned as a *StartError.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return nil, errors.New("pipeline already ran")
	}
	p.ran = true
	p.runCtx = ctx
	p.started = time.Now()
	p.mu.Unlock()

	logging.Info("Pipeline", "Starting %s (run %s) with %d units", p.names.root, p.runID, len(p.opts.Units))

	_, err := p.orch.NewBatch().
		Add(services.Definition{
			Name:     p.names.phase(PhaseInstall),
			Behavior: p.phaseBehavior(PhaseInstall, p.install),
		}).
		Add(services.Definition{
			Name:         p.names.phase(PhaseResolve),
			Behavior:     p.phaseBehavior(PhaseResolve, p.resolve),
			Dependencies: []services.Dependency{services.Required(p.names.marker(markerInstalled))},
		}).
		Add(services.Definition{
			Name:         p.names.phase(PhaseActivate),
			Behavior:     p.phaseBehavior(PhaseActivate, p.activate),
			Dependencies: []services.Dependency{services.Required(p.names.marker(markerResolved))},
		}).
		Install()
	if err != nil {
		return nil, fmt.Errorf("failed to register phases: %w", err)
	}

	err = p.awaitCompletion(ctx)
	report := p.Report()
	if err != nil {
		logging.Error("Pipeline", err, "Bootstrap %s did not complete", p.names.root)
	} else {
		logging.Info("Pipeline", "Bootstrap %s complete in %s: %d active, %d failed",
			p.names.root, report.Duration.Round(time.Millisecond), report.Count(UnitActive), len(report.Failures()))
	}
	return report, err
}

func (p *Pipeline) awaitCompletion(ctx context.Context) error {
	done := p.names.marker(markerActive)
	phases := []api.ServiceName{
		p.names.phase(PhaseInstall),
		p.names.phase(PhaseResolve),
		p.names.phase(PhaseActivate),
	}
	for {
		changed := p.orch.Watch()
		if p.isUp(done) && !slices.ContainsFunc(phases, func(n api.ServiceName) bool { return !p.isUp(n) }) {
			p.setStage(StageComplete)
			return nil
		}
		for _, st := range p.orch.Statuses(phases) {
			if st.State == api.StateStartFailed {
				p.setStage(StageFailed)
				return st.Err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (p *Pipeline) isUp(name api.ServiceName) bool {
	_, err := p.orch.GetValue(name)
	return err == nil
}

// phaseBehavior wraps phase work in an asynchronous start so the phase does
// not occupy a registry worker while it waits for units.
func (p *Pipeline) phaseBehavior(phase Phase, work func(ctx context.Context) error) services.Behavior {
	return services.Funcs{
		StartFunc: func(_ context.Context, sc *services.StartContext) error {
			sc.Asynchronous()
			go func() {
				started := time.Now()
				err := work(p.context())
				if err != nil {
					var startErr *StartError
					if !errors.As(err, &startErr) {
						err = &StartError{Phase: phase, Err: err}
					}
				}
				p.recordPhase(phase, time.Since(started), err)
				if err != nil {
					_ = sc.Fail(err)
					return
				}
				_ = sc.Complete()
			}()
			return nil
		},
	}
}

func (p *Pipeline) context() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runCtx
}

func (p *Pipeline) recordPhase(phase Phase, d time.Duration, err error) {
	p.recorder.PhaseCompleted(phase, d, err)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.phases = append(p.phases, PhaseReport{Phase: phase, Duration: d, Err: err})
}

// setStage only moves forward, except into StageFailed.
func (p *Pipeline) setStage(s Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stage == StageFailed {
		return
	}
	if s > p.stage || s == StageFailed {
		p.stage = s
	}
}

func (p *Pipeline) setUnitStatus(id string, status UnitStatus, err error) {
	p.mu.Lock()
	rec, ok := p.records[id]
	if ok {
		rec.status = status
		rec.err = err
	}
	p.mu.Unlock()
	if ok && status != UnitInstalled && status != UnitResolved {
		p.recorder.UnitSettled(status)
	}
}

// Report returns the current state of the run.
func (p *Pipeline) Report() *Report {
	p.mu.Lock()
	defer p.mu.Unlock()

	r := &Report{
		RunID:   p.runID,
		Name:    p.names.root.String(),
		Stage:   p.stage,
		Started: p.started,
		Phases:  append([]PhaseReport(nil), p.phases...),
	}
	if !p.started.IsZero() {
		r.Duration = time.Since(p.started)
	}
	for _, id := range p.order {
		r.Units = append(r.Units, p.unitReportLocked(id))
	}
	return r
}

func (p *Pipeline) unitReportLocked(id string) UnitReport {
	rec := p.records[id]
	ur := UnitReport{
		Identifier: id,
		StartLevel: rec.cfg.StartLevel,
		AutoStart:  rec.cfg.AutoStart,
		Status:     rec.status,
		Err:        rec.err,
		Service:    p.names.unitActive(id),
	}
	if rec.unit != nil {
		ur.Version = rec.unit.Version
		ur.StartLevel = rec.unit.StartLevel
	}
	return ur
}

// Teardown removes every service the pipeline registered, deployed units
// included, and waits until they are gone.
func (p *Pipeline) Teardown(ctx context.Context) error {
	all := p.serviceNames()
	for _, name := range all {
		if err := p.orch.Remove(name); err != nil && !api.IsNotFound(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	if err := waitGone(ctx, p.orch, all); err != nil {
		return err
	}
	logging.Info("Pipeline", "Tore down %s", p.names.root)
	return nil
}

func (p *Pipeline) serviceNames() []api.ServiceName {
	out := []api.ServiceName{
		p.names.phase(PhaseInstall),
		p.names.phase(PhaseResolve),
		p.names.phase(PhaseActivate),
		p.names.marker(markerInstalled),
		p.names.marker(markerResolved),
		p.names.marker(markerActive),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range p.order {
		out = append(out, p.names.unitInstalled(id), p.names.unitActive(id))
	}
	return out
}

// waitGone blocks until none of names is registered.
func waitGone(ctx context.Context, orch *orchestrator.Orchestrator, names []api.ServiceName) error {
	for {
		changed := orch.Watch()
		remaining := 0
		for _, st := range orch.Statuses(names) {
			if st.Registered {
				remaining++
			}
		}
		if remaining == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d services still registered: %w", remaining, ctx.Err())
		case <-changed:
		}
	}
}

// validIdentifier checks that id can be used as a service name segment.
func validIdentifier(id string) error {
	if _, err := api.NewServiceName(id); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidIdentifier, id, err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
