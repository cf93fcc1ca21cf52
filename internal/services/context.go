package services

import (
	"errors"
	"sync"
	"sync/atomic"

	"tether/internal/api"
)

// ErrAlreadyCompleted is returned by Complete and Fail when the start has
// already been finished.
var ErrAlreadyCompleted = errors.New("start already completed")

// StartContext is handed to Behavior.Start. It exposes the values of the
// service's dependencies and lets a behavior finish its start on another
// goroutine.
type StartContext struct {
	name   api.ServiceName
	values map[api.ServiceName]any

	async  atomic.Bool
	once   sync.Once
	finish func(err error)
}

// NewStartContext creates a start context. finish is called exactly once with
// the outcome of the start. It is exported for callers that drive behaviors
// outside a registry, such as tests.
func NewStartContext(name api.ServiceName, values map[api.ServiceName]any, finish func(err error)) *StartContext {
	if values == nil {
		values = map[api.ServiceName]any{}
	}
	if finish == nil {
		finish = func(error) {}
	}
	return &StartContext{name: name, values: values, finish: finish}
}

// Name returns the name of the service being started.
func (sc *StartContext) Name() api.ServiceName {
	return sc.name
}

// Dependency returns the value of a dependency that was UP when the start was
// dispatched.
func (sc *StartContext) Dependency(name api.ServiceName) (any, bool) {
	v, ok := sc.values[name]
	return v, ok
}

// Asynchronous marks the start as finishing later. After Start returns nil the
// service stays STARTING until Complete or Fail is called.
func (sc *StartContext) Asynchronous() {
	sc.async.Store(true)
}

// IsAsynchronous reports whether Asynchronous was called.
func (sc *StartContext) IsAsynchronous() bool {
	return sc.async.Load()
}

// Complete finishes an asynchronous start successfully.
func (sc *StartContext) Complete() error {
	return sc.Done(nil)
}

// Fail finishes an asynchronous start with an error.
func (sc *StartContext) Fail(err error) error {
	if err == nil {
		err = errors.New("start failed")
	}
	return sc.Done(err)
}

// Done finishes the start with err, or successfully when err is nil. Only the
// first call has an effect.
func (sc *StartContext) Done(err error) error {
	done := false
	sc.once.Do(func() {
		done = true
		sc.finish(err)
	})
	if !done {
		return ErrAlreadyCompleted
	}
	return nil
}
