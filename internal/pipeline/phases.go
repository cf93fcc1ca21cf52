package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"tether/internal/api"
	"tether/internal/services"
	"tether/internal/stability"
	"tether/pkg/logging"
)

// install calls the installer for every configured unit and registers an
// installed service per success, followed by the installed marker.
func (p *Pipeline) install(ctx context.Context) error {
	installed, err := p.installUnits(ctx)
	if err != nil {
		return err
	}

	batch := p.orch.NewBatch()
	for _, u := range installed {
		batch.Add(services.Definition{
			Name:     p.names.unitInstalled(u.Identifier),
			Behavior: services.Constant(u),
		})
	}
	batch.Add(services.Definition{
		Name:     p.names.marker(markerInstalled),
		Behavior: services.Marker(),
	})
	if _, err := batch.Install(); err != nil {
		return fmt.Errorf("failed to register installed units: %w", err)
	}

	p.setStage(StageInstalled)
	logging.Info("Pipeline", "Installed %d of %d units", len(installed), len(p.opts.Units))
	return nil
}

// installUnits calls the installer for every configured unit, at most
// InstallConcurrency at a time, and returns the units that installed.
func (p *Pipeline) installUnits(ctx context.Context) ([]*Unit, error) {
	p.setStage(StageInstalling)
	ictx, cancel := withTimeout(ctx, p.opts.Timeouts.Install)
	defer cancel()

	var g errgroup.Group
	g.SetLimit(p.opts.InstallConcurrency)
	for _, uc := range p.opts.Units {
		g.Go(func() error {
			unit, err := p.opts.Installer.Install(ictx, uc.Identifier)
			p.recordInstall(uc, unit, err)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	installed := p.unitsWithStatus(UnitInstalled)
	if len(installed) == 0 && p.opts.RequireUnits {
		return nil, ErrNoUnitsInstalled
	}
	return installed, nil
}

func (p *Pipeline) recordInstall(uc UnitConfig, unit *Unit, err error) {
	if err == nil && unit == nil {
		err = fmt.Errorf("installer returned no unit for %s", uc.Identifier)
	}
	if err != nil {
		logging.Warn("Pipeline", "Failed to install %s: %v", uc.Identifier, err)
		p.setUnitStatus(uc.Identifier, UnitInstallFailed, err)
		return
	}

	unit.Identifier = uc.Identifier
	if uc.StartLevel > 0 {
		unit.StartLevel = uc.StartLevel
	}
	unit.AutoStart = uc.AutoStart

	p.mu.Lock()
	if rec, ok := p.records[uc.Identifier]; ok {
		rec.unit = unit
	}
	p.mu.Unlock()
	logging.Debug("Pipeline", "Installed %s from %s", unit, unit.Location)
	p.setUnitStatus(uc.Identifier, UnitInstalled, nil)
}

// unitsWithStatus returns installed units in configuration order.
func (p *Pipeline) unitsWithStatus(status UnitStatus) []*Unit {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Unit
	for _, id := range p.order {
		rec := p.records[id]
		if rec.status == status && rec.unit != nil && !rec.deployed {
			out = append(out, rec.unit)
		}
	}
	return out
}

// resolve hands the installed units to the resolver and registers an active
// service per resolved unit in mode NEVER. A resolver error fails the phase.
func (p *Pipeline) resolve(ctx context.Context) error {
	installed := p.unitsWithStatus(UnitInstalled)
	res, resolved, err := p.resolveUnits(ctx, installed)
	if err != nil {
		return err
	}

	batch := p.orch.NewBatch()
	for _, u := range resolved {
		batch.Add(p.activeDefinition(u, res.Wires[u.Identifier], api.ModeNever))
	}
	batch.Add(services.Definition{
		Name:         p.names.marker(markerResolved),
		Behavior:     services.Marker(),
		Dependencies: []services.Dependency{services.Required(p.names.marker(markerInstalled))},
	})
	if _, err := batch.Install(); err != nil {
		return fmt.Errorf("failed to register resolved units: %w", err)
	}

	p.setStage(StageResolved)
	logging.Info("Pipeline", "Resolved %d of %d installed units", len(resolved), len(installed))
	return nil
}

// resolveUnits runs the resolver over the installed units and applies its
// outcome. A resolver error leaves every unit installed.
func (p *Pipeline) resolveUnits(ctx context.Context, installed []*Unit) (*Resolution, []*Unit, error) {
	p.setStage(StageResolving)
	rctx, cancel := withTimeout(ctx, p.opts.Timeouts.Resolve)
	defer cancel()

	res, err := p.opts.Resolver.Resolve(rctx, installed)
	if err != nil {
		return nil, nil, &StartError{Phase: PhaseResolve, Err: &ResolutionError{Err: err}}
	}
	if res == nil {
		res = &Resolution{}
	}
	return res, p.applyResolution(installed, res), nil
}

// applyResolution records the resolver's verdict per unit. Installed units
// the resolver neither resolved nor explained are resolve failures too.
func (p *Pipeline) applyResolution(installed []*Unit, res *Resolution) []*Unit {
	known := make(map[string]*Unit, len(installed))
	for _, u := range installed {
		known[u.Identifier] = u
	}

	var resolved []*Unit
	seen := make(map[string]bool)
	for _, u := range res.Resolved {
		if u == nil || known[u.Identifier] == nil || seen[u.Identifier] {
			continue
		}
		seen[u.Identifier] = true
		resolved = append(resolved, known[u.Identifier])
		p.setUnitStatus(u.Identifier, UnitResolved, nil)
	}
	for _, u := range installed {
		if seen[u.Identifier] {
			continue
		}
		err := res.Failures[u.Identifier]
		if err == nil {
			err = errors.New("not resolved")
		}
		logging.Warn("Pipeline", "Failed to resolve %s: %v", u.Identifier, err)
		p.setUnitStatus(u.Identifier, UnitResolveFailed, err)
	}

	p.mu.Lock()
	p.resolved = resolved
	for id, w := range res.Wires {
		p.wires[id] = slices.Clone(w)
	}
	p.mu.Unlock()
	return resolved
}

// activeDefinition describes the service that runs u. It needs u's installed
// service and the active service of every unit u is wired to.
func (p *Pipeline) activeDefinition(u *Unit, wires []string, mode api.Mode) services.Definition {
	deps := []services.Dependency{services.Required(p.names.unitInstalled(u.Identifier))}
	for _, w := range wires {
		if w == u.Identifier {
			continue
		}
		deps = append(deps, services.Required(p.names.unitActive(w)))
	}
	return services.Definition{
		Name:         p.names.unitActive(u.Identifier),
		Behavior:     unitBehavior{unit: u},
		Dependencies: deps,
		Mode:         mode,
	}
}

// activate starts resolved units level by level. Every resolved unit first
// becomes ON_DEMAND so a unit can pull up a dependency configured at a
// higher start level or with autoStart off. AutoStart units of a level are
// then set ACTIVE and awaited before the next level begins.
func (p *Pipeline) activate(ctx context.Context) error {
	p.setStage(StageActivating)
	actx, cancel := withTimeout(ctx, p.opts.Timeouts.Activate)
	defer cancel()

	p.mu.Lock()
	resolved := slices.Clone(p.resolved)
	p.mu.Unlock()

	for _, u := range resolved {
		if err := p.orch.SetMode(p.names.unitActive(u.Identifier), api.ModeOnDemand); err != nil {
			return fmt.Errorf("failed to enable %s: %w", u.Identifier, err)
		}
	}

	ordered := slices.Clone(resolved)
	slices.SortStableFunc(ordered, func(a, b *Unit) int { return a.StartLevel - b.StartLevel })

	for _, level := range groupByLevel(ordered) {
		var eager []*Unit
		for _, u := range level {
			if u.AutoStart {
				eager = append(eager, u)
			}
		}
		logging.Debug("Pipeline", "Activating start level %d: %d units", level[0].StartLevel, len(eager))
		for _, u := range eager {
			if err := p.orch.SetMode(p.names.unitActive(u.Identifier), api.ModeActive); err != nil {
				return fmt.Errorf("failed to activate %s: %w", u.Identifier, err)
			}
		}
		for _, u := range eager {
			p.awaitUnit(actx, u)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := p.orch.Register(services.Definition{
		Name:         p.names.marker(markerActive),
		Behavior:     services.Marker(),
		Dependencies: []services.Dependency{services.Required(p.names.marker(markerResolved))},
	}); err != nil {
		return fmt.Errorf("failed to register active marker: %w", err)
	}
	p.settleLazyUnits()
	p.setStage(StageActive)
	return nil
}

func groupByLevel(units []*Unit) [][]*Unit {
	var out [][]*Unit
	for i, u := range units {
		if i == 0 || u.StartLevel != units[i-1].StartLevel {
			out = append(out, nil)
		}
		out[len(out)-1] = append(out[len(out)-1], u)
	}
	return out
}

// awaitUnit waits for u to settle and records the outcome.
func (p *Pipeline) awaitUnit(ctx context.Context, u *Unit) {
	name := p.names.unitActive(u.Identifier)
	res := stability.New(p.orch, name).Await(ctx, p.opts.Timeouts.Unit)

	if res.IsUp(name) {
		logging.Info("Pipeline", "Unit %s active", u)
		p.setUnitStatus(u.Identifier, UnitActive, nil)
		return
	}
	if err, failed := res.Failed[name]; failed {
		logging.Warn("Pipeline", "Unit %s failed to start: %v", u, err)
		p.setUnitStatus(u.Identifier, UnitStartFailed, err)
		return
	}
	if reason, blocked := res.Problems[name]; blocked {
		logging.Warn("Pipeline", "Unit %s not activated: %s", u, reason)
		p.setUnitStatus(u.Identifier, UnitDependencyFailed, errors.New(reason))
		return
	}

	err := fmt.Errorf("not started within %s", p.opts.Timeouts.Unit)
	if ctx.Err() != nil {
		err = fmt.Errorf("not started: %w", ctx.Err())
	}
	logging.Warn("Pipeline", "Unit %s %v", u, err)
	p.setUnitStatus(u.Identifier, UnitNotStarted, err)
}

// settleLazyUnits records units with autoStart off. They stay resolved unless
// a dependent pulled them up; one that was pulled and failed is recorded as
// failed like any other unit.
func (p *Pipeline) settleLazyUnits() {
	p.mu.Lock()
	var lazy []*Unit
	var names []api.ServiceName
	for _, u := range p.resolved {
		if !u.AutoStart {
			lazy = append(lazy, u)
			names = append(names, p.names.unitActive(u.Identifier))
		}
	}
	p.mu.Unlock()

	for i, st := range p.orch.Statuses(names) {
		u := lazy[i]
		switch {
		case st.State == api.StateUp && !st.Stopping:
			p.setUnitStatus(u.Identifier, UnitActive, nil)
		case st.State == api.StateStartFailed:
			logging.Warn("Pipeline", "Unit %s failed to start: %v", u, st.Err)
			p.setUnitStatus(u.Identifier, UnitStartFailed, st.Err)
		case st.State == api.StateDown && st.Blocked != "":
			logging.Warn("Pipeline", "Unit %s not activated: %s", u, st.Blocked)
			p.setUnitStatus(u.Identifier, UnitDependencyFailed, errors.New(st.Blocked))
		}
	}
}
