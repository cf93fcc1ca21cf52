package orchestrator

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"tether/internal/api"
	"tether/internal/services"
	"tether/pkg/logging"
)

// Controller lifecycle events. Every state change of a controller goes through
// its state machine, which rejects transitions the lifecycle does not allow.
const (
	eventStart   = "start"
	eventStarted = "started"
	eventFail    = "fail"
	eventStop    = "stop"
	eventStopped = "stopped"
	eventRetry   = "retry"
	eventRemove  = "remove"
)

var stateByName = func() map[string]api.State {
	m := make(map[string]api.State)
	for _, s := range []api.State{
		api.StateDown, api.StateStarting, api.StateUp,
		api.StateStopping, api.StateStartFailed, api.StateRemoved,
	} {
		m[s.String()] = s
	}
	return m
}()

func newControllerState(name api.ServiceName) *fsm.FSM {
	down := api.StateDown.String()
	return fsm.NewFSM(
		down,
		fsm.Events{
			{Name: eventStart, Src: []string{down}, Dst: api.StateStarting.String()},
			{Name: eventStarted, Src: []string{api.StateStarting.String()}, Dst: api.StateUp.String()},
			{Name: eventFail, Src: []string{api.StateStarting.String()}, Dst: api.StateStartFailed.String()},
			{Name: eventStop, Src: []string{api.StateUp.String()}, Dst: api.StateStopping.String()},
			{Name: eventStopped, Src: []string{api.StateStopping.String()}, Dst: down},
			{Name: eventRetry, Src: []string{api.StateStartFailed.String()}, Dst: down},
			{Name: eventRemove, Src: []string{down, api.StateStartFailed.String()}, Dst: api.StateRemoved.String()},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logging.Debug("Registry", "Service %s: %s -> %s (%s)", name, e.Src, e.Dst, e.Event)
			},
		},
	)
}

type listenerEntry struct {
	id string
	fn services.Listener
}

// Controller is the runtime handle of a registered service. All mutable
// fields are guarded by the owning orchestrator's lock.
type Controller struct {
	o    *Orchestrator
	name api.ServiceName
	def  services.Definition

	sm        *fsm.FSM
	state     api.State
	mode      api.Mode
	value     any
	startErr  error
	listeners []listenerEntry

	// wantsUp and demand are recomputed on every reconciliation.
	wantsUp bool
	demand  int

	registeredAt time.Time
}

func newController(o *Orchestrator, def services.Definition) *Controller {
	c := &Controller{
		o:            o,
		name:         def.Name,
		def:          def.Clone(),
		sm:           newControllerState(def.Name),
		state:        api.StateDown,
		mode:         def.Mode,
		registeredAt: time.Now(),
	}
	for _, l := range def.Listeners {
		if l != nil {
			c.listeners = append(c.listeners, listenerEntry{id: uuid.New().String(), fn: l})
		}
	}
	return c
}

// Name returns the service name.
func (c *Controller) Name() api.ServiceName {
	return c.name
}

// Dependencies returns the declared dependencies.
func (c *Controller) Dependencies() []services.Dependency {
	return slices.Clone(c.def.Dependencies)
}

// State returns the current lifecycle state.
func (c *Controller) State() api.State {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	return c.state
}

// Mode returns the current mode.
func (c *Controller) Mode() api.Mode {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	return c.mode
}

// Value returns the produced value. It fails with an IllegalStateError unless
// the service is UP.
func (c *Controller) Value() (any, error) {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	if c.state != api.StateUp {
		return nil, &api.IllegalStateError{Name: c.name, State: c.state, Operation: "get value of"}
	}
	return c.value, nil
}

// StartError returns the cause of the last failed start while the service is
// START_FAILED, nil otherwise.
func (c *Controller) StartError() error {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	if c.state != api.StateStartFailed {
		return nil
	}
	return c.startErr
}

// AddListener attaches a listener and returns a handle for RemoveListener.
// If the service is already UP, START_FAILED or REMOVED the listener receives
// exactly one transition describing that state.
func (c *Controller) AddListener(l services.Listener) string {
	id := uuid.New().String()
	if l == nil {
		return id
	}

	c.o.mu.Lock()
	defer c.o.mu.Unlock()

	if c.state == api.StateRemoved {
		c.o.dispatch.add(delivery{listeners: []services.Listener{l}, transition: c.currentTransitionLocked()})
		return id
	}
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: l})
	if c.state.IsTerminal() {
		c.o.dispatch.add(delivery{listeners: []services.Listener{l}, transition: c.currentTransitionLocked()})
	}
	return id
}

// RemoveListener detaches a listener. It reports whether the handle was found.
func (c *Controller) RemoveListener(id string) bool {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	for i, e := range c.listeners {
		if e.id == id {
			c.listeners = slices.Delete(c.listeners, i, i+1)
			return true
		}
	}
	return false
}

// SetMode changes the mode of this service. See Orchestrator.SetMode.
func (c *Controller) SetMode(mode api.Mode) error {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	if !c.o.ownsLocked(c) {
		return api.NewServiceNotFoundError(c.name)
	}
	return c.o.setModeLocked(c, mode)
}

// Retry moves a START_FAILED service back to DOWN so it can start again.
func (c *Controller) Retry() error {
	c.o.mu.Lock()
	defer c.o.mu.Unlock()
	if !c.o.ownsLocked(c) {
		return api.NewServiceNotFoundError(c.name)
	}
	return c.o.retryLocked(c)
}

// currentTransitionLocked describes the current state as a transition that
// ends in it, for listeners that attach late.
func (c *Controller) currentTransitionLocked() api.Transition {
	t := api.Transition{
		Service: c.name,
		Kind:    api.KindForState(c.state),
		From:    c.state,
		To:      c.state,
		At:      time.Now(),
	}
	if c.state == api.StateStartFailed {
		t.Err = c.startErr
	}
	return t
}

// fireLocked runs a state machine event and returns the resulting transition.
// An event that the state machine rejects indicates a scheduling bug; it is
// logged and reported as not applied.
func (c *Controller) fireLocked(event string, cause error) (api.Transition, bool) {
	from := c.state
	if err := c.sm.Event(context.Background(), event); err != nil {
		logging.Error("Registry", err, "Rejected %s event for service %s in state %s", event, c.name, from)
		return api.Transition{}, false
	}
	to, ok := stateByName[c.sm.Current()]
	if !ok {
		logging.Warn("Registry", "Service %s entered unknown state %q", c.name, c.sm.Current())
		return api.Transition{}, false
	}
	c.state = to
	return api.Transition{
		Service: c.name,
		Kind:    api.KindForState(to),
		From:    from,
		To:      to,
		Err:     cause,
		At:      time.Now(),
	}, true
}

func (c *Controller) listenerSnapshotLocked() []services.Listener {
	if len(c.listeners) == 0 {
		return nil
	}
	out := make([]services.Listener, len(c.listeners))
	for i, e := range c.listeners {
		out[i] = e.fn
	}
	return out
}
