package orchestrator

import (
	"fmt"

	"tether/internal/api"
	"tether/internal/services"
	"tether/pkg/logging"
)

// reconcileLocked drives every controller towards what its mode and
// dependencies ask for, until nothing changes. It is level triggered: demand
// and eligibility are recomputed from scratch, so it does not matter which
// change caused the call.
func (o *Orchestrator) reconcileLocked() {
	for {
		o.computeDemandLocked()
		ev := newEvaluation(o)
		if !o.stepLocked(ev) {
			return
		}
	}
}

// stepLocked applies the first action it finds and reports whether it did.
// Each action changes state, so the evaluation is rebuilt afterwards.
func (o *Orchestrator) stepLocked(ev *evaluation) bool {
	for _, name := range o.graph.IDs() {
		c := o.controllers[name]
		switch c.state {
		case api.StateDown:
			if c.wantsUp && ev.canStart(c) {
				o.startLocked(c)
				return true
			}
			if c.mode == api.ModeRemove && !o.hasActiveDependentsLocked(c) {
				o.removeLocked(c)
				return true
			}
		case api.StateStartFailed:
			if c.mode == api.ModeRemove && !o.hasActiveDependentsLocked(c) {
				o.removeLocked(c)
				return true
			}
		case api.StateUp:
			if ev.mustStop(c) && !o.hasActiveDependentsLocked(c) {
				o.stopLocked(c)
				return true
			}
		}
	}
	return false
}

// computeDemandLocked marks which controllers want to be up. ACTIVE services
// always do; an ON_DEMAND service does while at least one service that wants
// to be up depends on it. A START_FAILED service keeps wanting up but places
// no demand until it is retried, so its on-demand dependencies stop.
func (o *Orchestrator) computeDemandLocked() {
	var queue []*Controller
	for _, c := range o.controllers {
		c.demand = 0
		c.wantsUp = c.mode == api.ModeActive
		if c.wantsUp && c.state != api.StateStartFailed {
			queue = append(queue, c)
		}
	}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		for _, dep := range c.def.DependencyNames() {
			d, ok := o.controllers[dep]
			if !ok {
				continue
			}
			d.demand++
			if !d.wantsUp && d.mode == api.ModeOnDemand {
				d.wantsUp = true
				if d.state != api.StateStartFailed {
					queue = append(queue, d)
				}
			}
		}
	}
}

func (o *Orchestrator) hasActiveDependentsLocked(c *Controller) bool {
	for _, name := range o.graph.Dependents(c.name) {
		if d, ok := o.controllers[name]; ok && d.state.IsActive() {
			return true
		}
	}
	return false
}

// gate is one dependency that currently decides whether its dependent may be
// up: every required dependency, and optional ones once registered.
type gate struct {
	dep services.Dependency
	ctl *Controller // nil when not registered
}

func (o *Orchestrator) gatesLocked(c *Controller) []gate {
	gates := make([]gate, 0, len(c.def.Dependencies))
	for _, dep := range c.def.Dependencies {
		d := o.controllers[dep.Name]
		if d == nil && dep.Optional {
			continue
		}
		gates = append(gates, gate{dep: dep, ctl: d})
	}
	return gates
}

// evaluation memoizes derived per-controller facts for one reconciliation
// step. It must not outlive a state change.
type evaluation struct {
	o       *Orchestrator
	stop    map[*Controller]bool
	blocked map[*Controller]string
	visit   map[*Controller]bool
}

func newEvaluation(o *Orchestrator) *evaluation {
	return &evaluation{
		o:       o,
		stop:    make(map[*Controller]bool),
		blocked: make(map[*Controller]string),
		visit:   make(map[*Controller]bool),
	}
}

// mustStop reports whether an UP controller has to go down: it is no longer
// wanted, or one of its gates is missing, not UP or going down itself.
func (e *evaluation) mustStop(c *Controller) bool {
	if v, ok := e.stop[c]; ok {
		return v
	}
	// Guard against cycles accepted under CycleAllow.
	e.stop[c] = false

	result := !c.wantsUp
	if !result {
		for _, g := range e.o.gatesLocked(c) {
			if g.ctl == nil || g.ctl.state != api.StateUp || e.mustStop(g.ctl) {
				result = true
				break
			}
		}
	}
	e.stop[c] = result
	return result
}

// canStart reports whether every gate of c is UP and staying up.
func (e *evaluation) canStart(c *Controller) bool {
	for _, g := range e.o.gatesLocked(c) {
		if g.ctl == nil || g.ctl.state != api.StateUp || e.mustStop(g.ctl) {
			return false
		}
	}
	return true
}

// blockedReason explains why a DOWN controller that wants to be up cannot
// start without an outside change, or returns "" if it is still expected to
// start. Outside changes are registering a missing service, retrying a failed
// one or changing a mode.
func (e *evaluation) blockedReason(c *Controller) string {
	if r, ok := e.blocked[c]; ok {
		return r
	}
	if e.visit[c] {
		return fmt.Sprintf("dependency cycle through %s", c.name)
	}
	e.visit[c] = true
	defer delete(e.visit, c)

	reason := ""
	for _, g := range e.o.gatesLocked(c) {
		switch {
		case g.ctl == nil:
			reason = fmt.Sprintf("missing dependency %s", g.dep.Name)
		case g.ctl.state == api.StateStartFailed:
			reason = fmt.Sprintf("dependency %s failed", g.dep.Name)
		case g.ctl.state == api.StateDown && !g.ctl.wantsUp:
			reason = fmt.Sprintf("dependency %s is %s in mode %s", g.dep.Name, g.ctl.state, g.ctl.mode)
		case g.ctl.state == api.StateDown:
			if r := e.blockedReason(g.ctl); r != "" {
				reason = fmt.Sprintf("dependency %s blocked: %s", g.dep.Name, r)
			}
		}
		if reason != "" {
			break
		}
	}
	e.blocked[c] = reason
	return reason
}

// startLocked moves c to STARTING and hands its start to the executor.
func (o *Orchestrator) startLocked(c *Controller) {
	t, ok := c.fireLocked(eventStart, nil)
	if !ok {
		return
	}
	c.startErr = nil

	values := make(map[api.ServiceName]any)
	var injections []injection
	for _, g := range o.gatesLocked(c) {
		values[g.dep.Name] = g.ctl.value
		if g.dep.Inject != nil {
			injections = append(injections, injection{fn: g.dep.Inject, value: g.ctl.value})
		}
	}
	logging.Debug("Registry", "Starting %s", c.name)
	o.emitLocked(c, t)
	o.exec.submit(func() { o.runStart(c, values, injections) })
}

// stopLocked moves c to STOPPING and hands its stop to the executor.
func (o *Orchestrator) stopLocked(c *Controller) {
	t, ok := c.fireLocked(eventStop, nil)
	if !ok {
		return
	}
	c.value = nil
	logging.Debug("Registry", "Stopping %s", c.name)
	o.emitLocked(c, t)
	o.exec.submit(func() { o.runStop(c) })
}

// removeLocked deletes c from the registry. Edges of its dependents stay in
// the graph and now point at a missing service.
func (o *Orchestrator) removeLocked(c *Controller) {
	t, ok := c.fireLocked(eventRemove, nil)
	if !ok {
		return
	}
	delete(o.controllers, c.name)
	o.graph.RemoveNode(c.name)
	logging.Debug("Registry", "Removed %s", c.name)
	o.emitLocked(c, t)
	c.listeners = nil
	o.recorder.RegisteredChanged(len(o.controllers))
}

// Status is the scheduling view of one service used by stability waits.
type Status struct {
	Name       api.ServiceName
	Registered bool
	State      api.State
	Mode       api.Mode
	// WantsUp is true for ACTIVE services and demanded ON_DEMAND services.
	WantsUp bool
	// Stopping is true for an UP service that the scheduler is about to stop.
	Stopping bool
	// Blocked explains why a DOWN service that wants to be up cannot start.
	Blocked string
	Err     error
}

// Statuses returns the status of each name, computed from one consistent
// view of the registry. Names that are not registered are reported with
// Registered false and State REMOVED.
func (o *Orchestrator) Statuses(names []api.ServiceName) []Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	ev := newEvaluation(o)
	out := make([]Status, 0, len(names))
	for _, name := range names {
		c, ok := o.controllers[name]
		if !ok {
			out = append(out, Status{Name: name, State: api.StateRemoved})
			continue
		}
		st := Status{
			Name:       name,
			Registered: true,
			State:      c.state,
			Mode:       c.mode,
			WantsUp:    c.wantsUp,
		}
		switch c.state {
		case api.StateUp:
			st.Stopping = ev.mustStop(c)
		case api.StateDown:
			if c.wantsUp {
				st.Blocked = ev.blockedReason(c)
			}
		case api.StateStartFailed:
			st.Err = c.startErr
		}
		out = append(out, st)
	}
	return out
}
