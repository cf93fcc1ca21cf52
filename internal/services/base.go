package services

import (
	"context"
)

// Funcs adapts plain functions to the Behavior interface. Nil functions are
// no-ops, so the zero value is a valid behavior that produces no value.
type Funcs struct {
	StartFunc func(ctx context.Context, sc *StartContext) error
	StopFunc  func(ctx context.Context) error
	ValueFunc func() any
}

// Start calls StartFunc if set.
func (f Funcs) Start(ctx context.Context, sc *StartContext) error {
	if f.StartFunc == nil {
		return nil
	}
	return f.StartFunc(ctx, sc)
}

// Stop calls StopFunc if set.
func (f Funcs) Stop(ctx context.Context) error {
	if f.StopFunc == nil {
		return nil
	}
	return f.StopFunc(ctx)
}

// Value calls ValueFunc if set.
func (f Funcs) Value() any {
	if f.ValueFunc == nil {
		return nil
	}
	return f.ValueFunc()
}

// Marker returns the behavior of a completion marker: it starts immediately,
// stops immediately and produces nothing. Markers exist only so other
// services can depend on them.
func Marker() Behavior {
	return Funcs{}
}

// Constant returns a behavior that produces v while it is up.
func Constant(v any) Behavior {
	return Funcs{ValueFunc: func() any { return v }}
}
