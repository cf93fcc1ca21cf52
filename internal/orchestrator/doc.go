// Package orchestrator provides the service registry and lifecycle scheduler
// for tether.
//
// The orchestrator owns every registered service. It starts services once
// their dependencies are up, stops them (dependents first) when a dependency
// goes away or their mode asks for it, and deletes them when they are
// removed. Start and stop functions run on a bounded worker pool; listeners
// are called on a separate dispatcher goroutine.
//
// # Architecture
//
//   - **Registry**: a map of Controllers keyed by api.ServiceName plus a
//     dependency.Graph of names. Edges to names that are not registered are
//     allowed and reported as missing.
//   - **Scheduler**: after every change the registry is reconciled to a
//     fixpoint under one lock. Demand, eligibility and stop decisions are
//     recomputed from scratch each time.
//   - **Executor**: start and stop functions run on goroutines bounded by a
//     weighted semaphore (Config.Workers).
//   - **Dispatcher**: transitions are queued while the lock is held and
//     delivered in order to listeners afterwards.
//
// # Modes
//
//   - **ACTIVE**: start as soon as every dependency is UP
//   - **ON_DEMAND**: start only while a service that wants to be up depends on it
//   - **NEVER**: stay down
//   - **REMOVE**: stop, then delete from the registry
//
// # Lifecycle
//
// Each controller carries a looplab/fsm state machine:
//
//	DOWN ──start──▶ STARTING ──started──▶ UP ──stop──▶ STOPPING ──stopped──▶ DOWN
//	                   │
//	                   └──fail──▶ START_FAILED ──retry──▶ DOWN
//	DOWN, START_FAILED ──remove──▶ REMOVED
//
// A dependency never leaves UP while one of its dependents is STARTING, UP or
// STOPPING, so a service is never observed UP while a dependency is not. A
// stop is only dispatched from UP, so the start and stop of one service never
// overlap.
//
// # Usage
//
//	orch := orchestrator.New(orchestrator.Config{Workers: 8})
//	defer orch.Shutdown(ctx)
//
//	db, _ := orch.Register(services.Definition{
//	    Name:     api.MustServiceName("app", "db"),
//	    Behavior: dbBehavior,
//	})
//	_, err := orch.Register(services.Definition{
//	    Name:         api.MustServiceName("app", "web"),
//	    Behavior:     webBehavior,
//	    Dependencies: []services.Dependency{services.Required(db.Name())},
//	})
//
// Registration fails fast with api.DuplicateNameError, api.CycleError (under
// CycleReject) or api.InvalidDefinitionError. Start failures never surface as
// errors to unrelated callers: the service moves to START_FAILED and its
// dependents stay DOWN. Use internal/stability to wait for a set of services.
package orchestrator
