package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tether/internal/api"
	"tether/internal/dependency"
	"tether/internal/events"
	"tether/internal/services"
	"tether/pkg/logging"
)

// CyclePolicy decides what happens when a registration would close a
// dependency cycle.
type CyclePolicy int

const (
	// CycleReject fails the registration with an api.CycleError.
	CycleReject CyclePolicy = iota
	// CycleAllow accepts the registration. Members of the cycle never start
	// and are reported as blocked.
	CycleAllow
)

// String makes CyclePolicy satisfy the fmt.Stringer interface.
func (p CyclePolicy) String() string {
	if p == CycleAllow {
		return "allow"
	}
	return "reject"
}

// ParseCyclePolicy converts "reject" or "allow" to a CyclePolicy.
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return CycleReject, nil
	case "allow":
		return CycleAllow, nil
	default:
		return CycleReject, fmt.Errorf("unknown cycle policy %q", s)
	}
}

// Recorder receives registry measurements. internal/metrics provides the
// Prometheus implementation.
type Recorder interface {
	TransitionObserved(t api.Transition)
	StartFinished(name api.ServiceName, d time.Duration, err error)
	RegisteredChanged(n int)
}

type nopRecorder struct{}

func (nopRecorder) TransitionObserved(api.Transition)                    {}
func (nopRecorder) StartFinished(api.ServiceName, time.Duration, error) {}
func (nopRecorder) RegisteredChanged(int)                               {}

// DefaultWorkers is the number of start/stop functions that may run at once
// when Config.Workers is not set.
const DefaultWorkers = 8

// Config holds the configuration for the orchestrator.
type Config struct {
	// Workers bounds concurrently running start and stop functions.
	Workers int
	// CyclePolicy defaults to CycleReject.
	CyclePolicy CyclePolicy
	// Recorder is optional.
	Recorder Recorder
}

// Orchestrator is the service registry and lifecycle scheduler. It owns every
// controller; the dependency graph only holds names.
//
// A single lock guards all scheduling decisions. Start and stop functions run
// on the worker executor and listeners run on the dispatcher, never while the
// lock is held.
type Orchestrator struct {
	mu          sync.Mutex
	controllers map[api.ServiceName]*Controller
	graph       *dependency.Graph[api.ServiceName]
	changed     chan struct{}
	closing     bool

	cfg      Config
	recorder Recorder
	exec     *executor
	dispatch *dispatcher
	bus      *events.Bus

	// Context handed to start and stop functions.
	ctx        context.Context
	cancelFunc context.CancelFunc
	closeOnce  sync.Once
}

// New creates a new orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		controllers: make(map[api.ServiceName]*Controller),
		graph:       dependency.New[api.ServiceName](api.ServiceName.Compare),
		changed:     make(chan struct{}),
		cfg:         cfg,
		recorder:    recorder,
		exec:        newExecutor(cfg.Workers),
		dispatch:    newDispatcher(),
		bus:         events.NewBus(),
		ctx:         ctx,
		cancelFunc:  cancel,
	}
}

// Register installs a single service definition. It fails with an
// api.InvalidDefinitionError, api.DuplicateNameError or api.CycleError and
// otherwise returns the new controller in state DOWN. Dependencies that are
// not registered yet are recorded; the service waits for them.
func (o *Orchestrator) Register(def services.Definition) (*Controller, error) {
	ctrls, err := o.install([]services.Definition{def})
	if err != nil {
		return nil, err
	}
	return ctrls[0], nil
}

func (o *Orchestrator) install(defs []services.Definition) ([]*Controller, error) {
	seen := make(map[api.ServiceName]bool, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if seen[def.Name] {
			return nil, &api.DuplicateNameError{Name: def.Name}
		}
		seen[def.Name] = true
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closing {
		return nil, api.ErrShutdown
	}
	for _, def := range defs {
		if _, exists := o.controllers[def.Name]; exists {
			return nil, &api.DuplicateNameError{Name: def.Name}
		}
	}

	// Add edges one definition at a time so cycles inside the batch are seen.
	added := make([]api.ServiceName, 0, len(defs))
	for _, def := range defs {
		deps := def.DependencyNames()
		if o.cfg.CyclePolicy == CycleReject {
			if path := o.graph.WouldCycle(def.Name, deps); path != nil {
				for _, name := range added {
					o.graph.RemoveNode(name)
				}
				return nil, &api.CycleError{Path: path}
			}
		}
		o.graph.AddNode(dependency.Node[api.ServiceName]{ID: def.Name, DependsOn: deps})
		added = append(added, def.Name)
	}

	ctrls := make([]*Controller, 0, len(defs))
	for _, def := range defs {
		c := newController(o, def)
		o.controllers[def.Name] = c
		ctrls = append(ctrls, c)
		if missing := o.graph.Missing(def.Name); len(missing) > 0 {
			logging.Debug("Registry", "Registered %s, waiting for %v", def.Name, missing)
		} else {
			logging.Debug("Registry", "Registered %s (%s)", def.Name, def.Mode)
		}
	}
	o.recorder.RegisteredChanged(len(o.controllers))

	o.reconcileLocked()
	o.notifyLocked()
	return ctrls, nil
}

// Lookup returns the controller registered under name.
func (o *Orchestrator) Lookup(name api.ServiceName) (*Controller, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.controllers[name]
	if !ok {
		return nil, api.NewServiceNotFoundError(name)
	}
	return c, nil
}

// GetValue returns the value produced by an UP service. It fails with
// api.NotFoundError when the name is not registered and api.IllegalStateError
// when the service is not UP.
func (o *Orchestrator) GetValue(name api.ServiceName) (any, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.controllers[name]
	if !ok {
		return nil, api.NewServiceNotFoundError(name)
	}
	if c.state != api.StateUp {
		return nil, &api.IllegalStateError{Name: name, State: c.state, Operation: "get value of"}
	}
	return c.value, nil
}

// SetMode changes the mode of a registered service and reschedules. Changing
// the mode of a START_FAILED service resets it to DOWN first, so it may start
// again.
func (o *Orchestrator) SetMode(name api.ServiceName, mode api.Mode) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.controllers[name]
	if !ok {
		return api.NewServiceNotFoundError(name)
	}
	return o.setModeLocked(c, mode)
}

// Remove sets the mode of name to REMOVE: the service and its dependents stop,
// then the service is deleted and its name becomes available again. Removing
// a name that is not registered returns an api.NotFoundError.
func (o *Orchestrator) Remove(name api.ServiceName) error {
	return o.SetMode(name, api.ModeRemove)
}

// Retry resets a START_FAILED service to DOWN.
func (o *Orchestrator) Retry(name api.ServiceName) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.controllers[name]
	if !ok {
		return api.NewServiceNotFoundError(name)
	}
	return o.retryLocked(c)
}

func (o *Orchestrator) setModeLocked(c *Controller, mode api.Mode) error {
	if o.closing && mode != api.ModeRemove {
		return api.ErrShutdown
	}
	if c.mode == mode {
		return nil
	}
	// Removal cannot be cancelled.
	if c.mode == api.ModeRemove {
		return &api.IllegalStateError{Name: c.name, State: c.state, Operation: "change mode of removing"}
	}
	logging.Debug("Registry", "Mode of %s: %s -> %s", c.name, c.mode, mode)
	c.mode = mode
	if c.state == api.StateStartFailed && mode != api.ModeRemove {
		if t, ok := c.fireLocked(eventRetry, nil); ok {
			c.startErr = nil
			o.emitLocked(c, t)
		}
	}
	o.reconcileLocked()
	o.notifyLocked()
	return nil
}

func (o *Orchestrator) retryLocked(c *Controller) error {
	if c.state != api.StateStartFailed {
		return &api.IllegalStateError{Name: c.name, State: c.state, Operation: "retry"}
	}
	if o.closing {
		return api.ErrShutdown
	}
	if t, ok := c.fireLocked(eventRetry, nil); ok {
		c.startErr = nil
		o.emitLocked(c, t)
	}
	o.reconcileLocked()
	o.notifyLocked()
	return nil
}

// ownsLocked reports whether c is still the controller registered under its
// name. A removed name may have been registered again.
func (o *Orchestrator) ownsLocked(c *Controller) bool {
	return o.controllers[c.name] == c
}

// Names returns the registered service names in canonical order.
func (o *Orchestrator) Names() []api.ServiceName {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.graph.IDs()
}

// Len returns the number of registered services.
func (o *Orchestrator) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.controllers)
}

// ServiceInfo is a point-in-time view of one service.
type ServiceInfo struct {
	Name         api.ServiceName
	State        api.State
	Mode         api.Mode
	Dependencies []api.ServiceName
	Missing      []api.ServiceName
	Error        error
	RegisteredAt time.Time
}

// Services returns a snapshot of every registered service in canonical order.
func (o *Orchestrator) Services() []ServiceInfo {
	o.mu.Lock()
	defer o.mu.Unlock()
	names := o.graph.IDs()
	out := make([]ServiceInfo, 0, len(names))
	for _, name := range names {
		c := o.controllers[name]
		info := ServiceInfo{
			Name:         name,
			State:        c.state,
			Mode:         c.mode,
			Dependencies: c.def.DependencyNames(),
			RegisteredAt: c.registeredAt,
		}
		for _, dep := range c.def.Dependencies {
			if _, ok := o.controllers[dep.Name]; !ok && !dep.Optional {
				info.Missing = append(info.Missing, dep.Name)
			}
		}
		if c.state == api.StateStartFailed {
			info.Error = c.startErr
		}
		out = append(out, info)
	}
	return out
}

// Subscribe returns a subscription receiving every transition of every
// service. Events are dropped for a subscriber whose buffer is full.
func (o *Orchestrator) Subscribe(buffer int) *events.Subscription {
	return o.bus.Subscribe(buffer)
}

// Watch returns a channel that is closed at the next state or mode change.
// Callers re-check what they are waiting for and call Watch again.
func (o *Orchestrator) Watch() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.changed
}

func (o *Orchestrator) notifyLocked() {
	close(o.changed)
	o.changed = make(chan struct{})
}

// emitLocked publishes a transition to the controller's listeners, the event
// bus and the recorder. Nothing here blocks.
func (o *Orchestrator) emitLocked(c *Controller, t api.Transition) {
	if listeners := c.listenerSnapshotLocked(); len(listeners) > 0 {
		o.dispatch.add(delivery{listeners: listeners, transition: t})
	}
	o.bus.Publish(t)
	o.recorder.TransitionObserved(t)
}

// Shutdown removes every service, waits until all of them are gone and stops
// the workers and the listener dispatcher. If ctx expires first, the context
// passed to start and stop functions is cancelled and ctx.Err() is returned;
// the dispatcher and the event bus are then closed in the background once
// the running start and stop functions have returned.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if !o.closing {
		o.closing = true
		logging.Info("Registry", "Shutting down %d services", len(o.controllers))
		for _, c := range o.controllers {
			c.mode = api.ModeRemove
		}
		o.reconcileLocked()
		o.notifyLocked()
	}
	o.mu.Unlock()

	for {
		o.mu.Lock()
		remaining := len(o.controllers)
		changed := o.changed
		o.mu.Unlock()
		if remaining == 0 {
			break
		}
		select {
		case <-ctx.Done():
			o.cancelFunc()
			go o.close()
			return fmt.Errorf("shutdown with %d services left: %w", remaining, ctx.Err())
		case <-changed:
		}
	}

	o.close()
	return nil
}

func (o *Orchestrator) close() {
	o.closeOnce.Do(func() {
		o.exec.wait()
		o.dispatch.shutdown()
		o.bus.Close()
		o.cancelFunc()
	})
}
