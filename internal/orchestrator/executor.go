package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"tether/internal/api"
	"tether/internal/services"
	"tether/pkg/logging"
)

// executor runs start and stop functions off the caller's goroutine, at most
// `workers` at a time.
type executor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func newExecutor(workers int) *executor {
	return &executor{sem: semaphore.NewWeighted(int64(workers))}
}

func (e *executor) submit(task func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer e.sem.Release(1)
		task()
	}()
}

// wait blocks until every submitted task has returned.
func (e *executor) wait() {
	e.wg.Wait()
}

type injection struct {
	fn    services.Injector
	value any
}

// PanicError wraps a value recovered from a panicking start or stop function.
type PanicError struct {
	Service api.ServiceName
	Value   any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("service %s panicked: %v", e.Service, e.Value)
}

func (o *Orchestrator) runStart(c *Controller, values map[api.ServiceName]any, injections []injection) {
	started := time.Now()
	sc := services.NewStartContext(c.name, values, func(err error) {
		o.completeStart(c, started, err)
	})

	err := protect(c.name, func() error {
		for _, in := range injections {
			in.fn(in.value)
		}
		return c.def.Behavior.Start(o.ctx, sc)
	})
	if err != nil {
		_ = sc.Done(err)
		return
	}
	if !sc.IsAsynchronous() {
		_ = sc.Done(nil)
	}
}

func (o *Orchestrator) completeStart(c *Controller, started time.Time, err error) {
	var value any
	if err == nil {
		err = protect(c.name, func() error {
			value = c.def.Behavior.Value()
			return nil
		})
	}
	if err != nil {
		uninject(c)
	}

	o.recorder.StartFinished(c.name, time.Since(started), err)

	o.mu.Lock()
	defer o.mu.Unlock()

	event := eventStarted
	if err != nil {
		event = eventFail
	}
	t, ok := c.fireLocked(event, err)
	if !ok {
		return
	}
	if err != nil {
		c.startErr = err
		c.value = nil
		logging.Error("Registry", err, "Start of %s failed", c.name)
	} else {
		c.value = value
		logging.Debug("Registry", "Service %s is up after %s", c.name, time.Since(started).Round(time.Millisecond))
	}
	o.emitLocked(c, t)
	o.reconcileLocked()
	o.notifyLocked()
}

func (o *Orchestrator) runStop(c *Controller) {
	err := protect(c.name, func() error {
		return c.def.Behavior.Stop(o.ctx)
	})
	uninject(c)
	if err != nil {
		logging.Error("Registry", err, "Stop of %s failed, forcing DOWN", c.name)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := c.fireLocked(eventStopped, err)
	if !ok {
		return
	}
	o.emitLocked(c, t)
	o.reconcileLocked()
	o.notifyLocked()
}

// uninject clears every injected dependency value.
func uninject(c *Controller) {
	for _, dep := range c.def.Dependencies {
		if dep.Inject == nil {
			continue
		}
		_ = protect(c.name, func() error {
			dep.Inject(nil)
			return nil
		})
	}
}

// protect runs fn and converts a panic into a *PanicError.
func protect(name api.ServiceName, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Service: name, Value: r}
		}
	}()
	return fn()
}
