package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"tether/internal/api"
	"tether/internal/services"
	"tether/pkg/logging"
)

// Deployer installs and removes single units while the registry runs. Deploys
// are serialized; each resolves the new unit against the units already
// registered by the pipeline.
type Deployer struct {
	p  *Pipeline
	mu sync.Mutex
}

// Deployer returns the pipeline's deployer.
func (p *Pipeline) Deployer() *Deployer {
	return &Deployer{p: p}
}

// Deploy installs, resolves and registers one unit. Install and resolve
// failures are returned as errors. The start outcome of an autoStart unit is
// in the returned report: the call waits up to the unit timeout for it.
func (d *Deployer) Deploy(ctx context.Context, uc UnitConfig) (UnitReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.p

	if err := validIdentifier(uc.Identifier); err != nil {
		return UnitReport{Identifier: uc.Identifier, Status: UnitInstallFailed, Err: err}, err
	}
	if _, err := p.orch.Lookup(p.names.unitInstalled(uc.Identifier)); err == nil {
		return UnitReport{}, fmt.Errorf("%w: %s", ErrAlreadyDeployed, uc.Identifier)
	}

	p.trackDeployed(uc)
	unit, err := p.opts.Installer.Install(ctx, uc.Identifier)
	p.recordInstall(uc, unit, err)
	if r := p.unitReport(uc.Identifier); r.Status == UnitInstallFailed {
		return r, r.Err
	}

	res, err := p.opts.Resolver.Resolve(ctx, append(p.registeredUnits(), unit))
	if err != nil {
		rerr := &ResolutionError{Err: err}
		p.setUnitStatus(uc.Identifier, UnitResolveFailed, rerr)
		return p.unitReport(uc.Identifier), rerr
	}
	if res == nil || !slices.ContainsFunc(res.Resolved, func(u *Unit) bool { return u != nil && u.Identifier == uc.Identifier }) {
		var ferr error
		if res != nil {
			ferr = res.Failures[uc.Identifier]
		}
		if ferr == nil {
			ferr = fmt.Errorf("%s not resolved", uc.Identifier)
		}
		p.setUnitStatus(uc.Identifier, UnitResolveFailed, ferr)
		return p.unitReport(uc.Identifier), ferr
	}
	p.setUnitStatus(uc.Identifier, UnitResolved, nil)

	mode := api.ModeOnDemand
	if unit.AutoStart {
		mode = api.ModeActive
	}
	_, err = p.orch.NewBatch().
		Add(services.Definition{
			Name:     p.names.unitInstalled(uc.Identifier),
			Behavior: services.Constant(unit),
		}).
		Add(p.activeDefinition(unit, res.Wires[uc.Identifier], mode)).
		Install()
	if err != nil {
		p.setUnitStatus(uc.Identifier, UnitResolveFailed, err)
		return p.unitReport(uc.Identifier), fmt.Errorf("failed to register %s: %w", uc.Identifier, err)
	}
	logging.Info("Deployer", "Deployed %s in mode %s", unit, mode)

	if unit.AutoStart {
		p.awaitUnit(ctx, unit)
		p.refreshActiveUnits()
	}
	return p.unitReport(uc.Identifier), nil
}

// Undeploy removes a unit's services and waits until they are gone.
// Dependents of the unit are stopped first and stay registered, blocked on
// the missing unit; the report lists them as dependency-failed.
func (d *Deployer) Undeploy(ctx context.Context, identifier string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.p

	installed := p.names.unitInstalled(identifier)
	if _, err := p.orch.Lookup(installed); err != nil {
		return fmt.Errorf("%w: %s", ErrNotDeployed, identifier)
	}
	active := p.names.unitActive(identifier)
	for _, name := range []api.ServiceName{active, installed} {
		if err := p.orch.Remove(name); err != nil && !api.IsNotFound(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	if err := waitGone(ctx, p.orch, []api.ServiceName{active, installed}); err != nil {
		return err
	}

	p.forget(identifier)
	p.refreshActiveUnits()
	logging.Info("Deployer", "Undeployed %s", identifier)
	return nil
}

// refreshActiveUnits moves units reported active or dependency-failed to the
// status their active service has now. Units the registry is still starting
// or stopping keep their status.
func (p *Pipeline) refreshActiveUnits() {
	p.mu.Lock()
	var (
		ids   []string
		prev  []UnitStatus
		names []api.ServiceName
	)
	for _, id := range p.order {
		rec := p.records[id]
		if rec.status == UnitActive || rec.status == UnitDependencyFailed {
			ids = append(ids, id)
			prev = append(prev, rec.status)
			names = append(names, p.names.unitActive(id))
		}
	}
	p.mu.Unlock()

	for i, st := range p.orch.Statuses(names) {
		id := ids[i]
		switch {
		case !st.Registered:
		case st.State == api.StateUp && !st.Stopping:
			if prev[i] != UnitActive {
				p.setUnitStatus(id, UnitActive, nil)
			}
		case st.State == api.StateDown && st.Blocked != "":
			if prev[i] == UnitDependencyFailed {
				continue
			}
			logging.Warn("Deployer", "Unit %s stopped: %s", id, st.Blocked)
			p.setUnitStatus(id, UnitDependencyFailed, errors.New(st.Blocked))
		case st.State == api.StateDown && !st.WantsUp && prev[i] == UnitActive:
			p.setUnitStatus(id, UnitResolved, nil)
		}
	}
}

// trackDeployed starts a fresh record for a deployed unit.
func (p *Pipeline) trackDeployed(uc UnitConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[uc.Identifier]; !ok {
		p.order = append(p.order, uc.Identifier)
	}
	p.records[uc.Identifier] = &unitRecord{cfg: uc, status: UnitPending, deployed: true}
}

func (p *Pipeline) forget(identifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.records, identifier)
	delete(p.wires, identifier)
	p.order = slices.DeleteFunc(p.order, func(id string) bool { return id == identifier })
	p.resolved = slices.DeleteFunc(p.resolved, func(u *Unit) bool { return u.Identifier == identifier })
}

// registeredUnits returns every known unit whose active service is
// registered.
func (p *Pipeline) registeredUnits() []*Unit {
	p.mu.Lock()
	var candidates []*Unit
	for _, id := range p.order {
		if rec := p.records[id]; rec.unit != nil {
			candidates = append(candidates, rec.unit)
		}
	}
	p.mu.Unlock()

	var out []*Unit
	for _, u := range candidates {
		if _, err := p.orch.Lookup(p.names.unitActive(u.Identifier)); err == nil {
			out = append(out, u)
		}
	}
	return out
}

func (p *Pipeline) unitReport(identifier string) UnitReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.records[identifier]; !ok {
		return UnitReport{Identifier: identifier}
	}
	return p.unitReportLocked(identifier)
}
