// Package pipeline bootstraps a set of units on top of the service registry.
//
// A run has three phases, install, resolve and activate. Each phase is a
// registered service that completes asynchronously and then registers a
// marker service; the next phase depends on that marker. Units appear as two
// services each:
//
//	<name>.unit.<id>.installed  ACTIVE, produces the *Unit
//	<name>.unit.<id>.active     runs the unit's activator
//
// Active services are registered in mode NEVER by the resolve phase and
// switched on by the activate phase in start-level order. Failures of single
// units are recorded in the Report and never fail the run; only a phase
// failure does, as a *StartError.
//
// The Deployer adds and removes single units after the run.
package pipeline
