package services

import (
	"context"

	"tether/internal/api"
)

// Behavior is the capability object a service is registered with. The
// registry owns the lifecycle; the behavior only knows how to start, stop and
// hand out what it produced.
type Behavior interface {
	// Start brings the service up. Dependency values have already been
	// injected when Start is called. Returning an error (or panicking) moves
	// the service to START_FAILED. A behavior that finishes on another
	// goroutine calls sc.Asynchronous() and later sc.Complete or sc.Fail.
	Start(ctx context.Context, sc *StartContext) error

	// Stop tears the service down. An error is logged but the service still
	// goes DOWN.
	Stop(ctx context.Context) error

	// Value returns the produced value. It is read once after a successful
	// start and handed to dependents until the service leaves UP.
	Value() any
}

// Listener observes the transitions of a single service. Listeners run on the
// registry's dispatcher goroutine and must not block for long; they may call
// back into the registry.
type Listener func(t api.Transition)

// Injector receives a dependency's value before the dependent starts and nil
// after it stopped.
type Injector func(value any)
