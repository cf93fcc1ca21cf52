package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/api"
	"tether/internal/orchestrator"
	"tether/internal/services"
)

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.events)
}

func (l *eventLog) index(e string) int {
	return slices.Index(l.list(), e)
}

type fakeUnit struct {
	level    int
	requires []string
	startErr error
	// hang keeps the activator starting until the test ends.
	hang bool
}

type fakeInstaller struct {
	log     *eventLog
	units   map[string]fakeUnit
	release chan struct{}
}

func newFakeInstaller(t *testing.T, units map[string]fakeUnit) *fakeInstaller {
	f := &fakeInstaller{log: &eventLog{}, units: units, release: make(chan struct{})}
	t.Cleanup(func() { close(f.release) })
	return f
}

func (f *fakeInstaller) Install(_ context.Context, id string) (*Unit, error) {
	spec, ok := f.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	return &Unit{
		Identifier: id,
		Version:    "1.0.0",
		StartLevel: spec.level,
		Location:   "memory://" + id,
		Requires:   spec.requires,
		Activator: services.Funcs{
			StartFunc: func(_ context.Context, sc *services.StartContext) error {
				f.log.add("start:" + id)
				if spec.hang {
					sc.Asynchronous()
					go func() {
						<-f.release
						_ = sc.Complete()
					}()
				}
				return spec.startErr
			},
			StopFunc: func(context.Context) error {
				f.log.add("stop:" + id)
				return nil
			},
		},
	}, nil
}

// requiresResolver wires every unit to the identifiers it requires and fails
// units requiring something that is not installed.
type requiresResolver struct {
	err error
}

func (r requiresResolver) Resolve(_ context.Context, units []*Unit) (*Resolution, error) {
	if r.err != nil {
		return nil, r.err
	}
	present := make(map[string]bool)
	for _, u := range units {
		present[u.Identifier] = true
	}
	res := &Resolution{Wires: map[string][]string{}, Failures: map[string]error{}}
	for _, u := range units {
		var missing []string
		for _, req := range u.Requires {
			if !present[req] {
				missing = append(missing, req)
			}
		}
		if len(missing) > 0 {
			res.Failures[u.Identifier] = fmt.Errorf("missing requirement %v", missing)
			continue
		}
		res.Resolved = append(res.Resolved, u)
		res.Wires[u.Identifier] = u.Requires
	}
	return res, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	phases map[Phase]int
	units  map[UnitStatus]int
}

func (r *countingRecorder) PhaseCompleted(phase Phase, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phases[phase]++
}

func (r *countingRecorder) UnitSettled(status UnitStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[status]++
}

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	o := orchestrator.New(orchestrator.Config{Workers: 4})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func units(ids ...string) []UnitConfig {
	out := make([]UnitConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, UnitConfig{Identifier: id, AutoStart: true})
	}
	return out
}

func newPipeline(t *testing.T, o *orchestrator.Orchestrator, inst Installer, res Resolver, cfg []UnitConfig) *Pipeline {
	t.Helper()
	p, err := New(o, Options{
		Units:     cfg,
		Installer: inst,
		Resolver:  res,
		Timeouts:  Timeouts{Unit: 2 * time.Second},
	})
	require.NoError(t, err)
	return p
}

func runPipeline(t *testing.T, p *Pipeline) (*Report, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Run(ctx)
}

func TestRunActivatesByStartLevel(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"a": {level: 2},
		"b": {level: 1},
		"c": {level: 3, requires: []string{"a"}},
	})
	rec := &countingRecorder{phases: map[Phase]int{}, units: map[UnitStatus]int{}}
	p, err := New(o, Options{
		Units:     units("c", "a", "b"),
		Installer: inst,
		Resolver:  requiresResolver{},
		Timeouts:  Timeouts{Unit: 2 * time.Second},
		Recorder:  rec,
	})
	require.NoError(t, err)

	report, err := runPipeline(t, p)
	require.NoError(t, err)

	assert.Equal(t, []string{"start:b", "start:a", "start:c"}, inst.log.list())
	assert.Equal(t, StageComplete, report.Stage)
	assert.Equal(t, StageComplete, p.Stage())
	assert.Equal(t, 3, report.Count(UnitActive))
	assert.Empty(t, report.Failures())
	assert.Len(t, report.Phases, 3)
	assert.NotEmpty(t, report.RunID)

	c, ok := report.Unit("c")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", c.Version)
	assert.Equal(t, 3, c.StartLevel)
	assert.Equal(t, api.MustServiceName("tether", "bootstrap", "unit", "c", "active"), c.Service)

	value, err := o.GetValue(c.Service)
	require.NoError(t, err)
	assert.Equal(t, "c", value.(*Unit).Identifier)

	assert.Equal(t, 3, rec.phases[PhaseInstall]+rec.phases[PhaseResolve]+rec.phases[PhaseActivate])
	assert.Equal(t, 3, rec.units[UnitActive])
}

func TestRunPullsUpHigherLevelDependency(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"early": {level: 1, requires: []string{"late"}},
		"late":  {level: 5},
	})
	p := newPipeline(t, o, inst, requiresResolver{}, units("early", "late"))

	report, err := runPipeline(t, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"start:late", "start:early"}, inst.log.list())
	assert.Equal(t, 2, report.Count(UnitActive))
}

func TestRunReportsUnitFailures(t *testing.T) {
	o := newOrchestrator(t)
	boom := errors.New("activator exploded")
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"ok":           {level: 1},
		"bad":          {level: 1, startErr: boom},
		"dependent":    {level: 2, requires: []string{"bad"}},
		"unresolvable": {level: 1, requires: []string{"nothing"}},
	})
	p := newPipeline(t, o, inst, requiresResolver{}, units("ok", "bad", "dependent", "missing", "unresolvable"))

	report, err := runPipeline(t, p)
	require.NoError(t, err)
	assert.Equal(t, StageComplete, report.Stage)

	statuses := map[string]UnitStatus{}
	for _, u := range report.Units {
		statuses[u.Identifier] = u.Status
	}
	assert.Equal(t, map[string]UnitStatus{
		"ok":           UnitActive,
		"bad":          UnitStartFailed,
		"dependent":    UnitDependencyFailed,
		"missing":      UnitInstallFailed,
		"unresolvable": UnitResolveFailed,
	}, statuses)

	bad, _ := report.Unit("bad")
	assert.ErrorIs(t, bad.Err, boom)
	missing, _ := report.Unit("missing")
	assert.ErrorIs(t, missing.Err, ErrUnitNotFound)
	dependent, _ := report.Unit("dependent")
	assert.Contains(t, dependent.Err.Error(), "failed")
	assert.Len(t, report.Failures(), 4)
	assert.Equal(t, -1, inst.log.index("start:dependent"))
}

func TestRunFailsOnResolverError(t *testing.T) {
	o := newOrchestrator(t)
	cause := errors.New("duplicate identifier x")
	inst := newFakeInstaller(t, map[string]fakeUnit{"x": {}})
	p := newPipeline(t, o, inst, requiresResolver{err: cause}, units("x"))

	report, err := runPipeline(t, p)
	require.Error(t, err)

	var startErr *StartError
	require.ErrorAs(t, err, &startErr)
	assert.Equal(t, PhaseResolve, startErr.Phase)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, StageFailed, report.Stage)
	x, _ := report.Unit("x")
	assert.Equal(t, UnitInstalled, x.Status)
	assert.Empty(t, inst.log.list())
}

func TestRunRequireUnits(t *testing.T) {
	t.Run("fails when nothing installs", func(t *testing.T) {
		o := newOrchestrator(t)
		inst := newFakeInstaller(t, nil)
		p, err := New(o, Options{
			Units:        units("ghost"),
			Installer:    inst,
			Resolver:     requiresResolver{},
			RequireUnits: true,
		})
		require.NoError(t, err)

		_, err = runPipeline(t, p)
		assert.ErrorIs(t, err, ErrNoUnitsInstalled)
		var startErr *StartError
		require.ErrorAs(t, err, &startErr)
		assert.Equal(t, PhaseInstall, startErr.Phase)
	})

	t.Run("completes empty otherwise", func(t *testing.T) {
		o := newOrchestrator(t)
		p := newPipeline(t, o, newFakeInstaller(t, nil), requiresResolver{}, nil)
		report, err := runPipeline(t, p)
		require.NoError(t, err)
		assert.Equal(t, StageComplete, report.Stage)
		assert.Empty(t, report.Units)
	})
}

func TestRunLeavesLazyUnitsResolved(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"idle":     {level: 1},
		"pulled":   {level: 1},
		"user":     {level: 2, requires: []string{"pulled"}},
		"fragile":  {level: 1, startErr: errors.New("boom")},
		"consumer": {level: 2, requires: []string{"fragile"}},
	})
	cfg := []UnitConfig{
		{Identifier: "idle"},
		{Identifier: "pulled"},
		{Identifier: "user", AutoStart: true},
		{Identifier: "fragile"},
		{Identifier: "consumer", AutoStart: true},
	}
	p := newPipeline(t, o, inst, requiresResolver{}, cfg)

	report, err := runPipeline(t, p)
	require.NoError(t, err)

	idle, _ := report.Unit("idle")
	pulled, _ := report.Unit("pulled")
	user, _ := report.Unit("user")
	assert.Equal(t, UnitResolved, idle.Status)
	assert.Equal(t, UnitActive, pulled.Status)
	assert.Equal(t, UnitActive, user.Status)
	assert.Equal(t, -1, inst.log.index("start:idle"))

	fragile, _ := report.Unit("fragile")
	consumer, _ := report.Unit("consumer")
	assert.Equal(t, UnitStartFailed, fragile.Status)
	assert.EqualError(t, fragile.Err, "boom")
	assert.Equal(t, UnitDependencyFailed, consumer.Status)
	assert.Len(t, report.Failures(), 2)

	ctl, err := o.Lookup(idle.Service)
	require.NoError(t, err)
	assert.Equal(t, api.ModeOnDemand, ctl.Mode())
	assert.Equal(t, api.StateDown, ctl.State())
}

func TestRunMarksSlowUnitNotStarted(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"slow": {hang: true},
		"fast": {level: 2},
	})
	p, err := New(o, Options{
		Units:     units("slow", "fast"),
		Installer: inst,
		Resolver:  requiresResolver{},
		Timeouts:  Timeouts{Unit: 50 * time.Millisecond},
	})
	require.NoError(t, err)

	report, err := runPipeline(t, p)
	require.NoError(t, err)
	slow, _ := report.Unit("slow")
	fast, _ := report.Unit("fast")
	assert.Equal(t, UnitNotStarted, slow.Status)
	assert.Error(t, slow.Err)
	assert.Equal(t, UnitActive, fast.Status)
}

func TestTeardownStopsDependentsFirst(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"base": {level: 1},
		"top":  {level: 2, requires: []string{"base"}},
	})
	p := newPipeline(t, o, inst, requiresResolver{}, units("base", "top"))
	_, err := runPipeline(t, p)
	require.NoError(t, err)
	require.Positive(t, o.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Teardown(ctx))

	assert.Zero(t, o.Len())
	assert.Less(t, inst.log.index("stop:top"), inst.log.index("stop:base"))
}

func TestRunOnlyOnce(t *testing.T) {
	o := newOrchestrator(t)
	p := newPipeline(t, o, newFakeInstaller(t, nil), requiresResolver{}, nil)
	_, err := runPipeline(t, p)
	require.NoError(t, err)
	_, err = runPipeline(t, p)
	assert.Error(t, err)
}

func TestNewValidatesOptions(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, nil)

	_, err := New(o, Options{Resolver: requiresResolver{}})
	assert.Error(t, err)
	_, err = New(o, Options{Installer: inst})
	assert.Error(t, err)
	_, err = New(o, Options{Installer: inst, Resolver: requiresResolver{}, Units: units("a", "a")})
	assert.Error(t, err)
	_, err = New(o, Options{Installer: inst, Resolver: requiresResolver{}, Units: units("")})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = New(o, Options{Installer: inst, Resolver: requiresResolver{}, Name: "bad."})
	assert.Error(t, err)

	p, err := New(o, Options{Installer: inst, Resolver: requiresResolver{}, Name: "custom.boot"})
	require.NoError(t, err)
	assert.Equal(t, api.MustServiceName("custom", "boot", "phase", "install"), p.names.phase(PhaseInstall))
}

func TestStageStrings(t *testing.T) {
	assert.Equal(t, "INSTALL", StageInstalling.String())
	assert.Equal(t, "COMPLETE", StageComplete.String())
	assert.Equal(t, "FAILED", StageFailed.String())
	assert.Equal(t, "UNKNOWN", Stage(99).String())
	assert.True(t, UnitNotStarted.IsFailure())
	assert.False(t, UnitResolved.IsFailure())
}
