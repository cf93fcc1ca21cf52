// Package stability lets callers wait for a set of services to settle.
//
// A tracked service is settled when it is UP (and not about to stop),
// START_FAILED, REMOVED, DOWN with nothing wanting it up, or DOWN and unable
// to start without an outside change. The last case covers services behind a
// missing or failed dependency and members of a dependency cycle; without it
// a wait on them could only end by timing out.
//
// Await never returns an error. When the timeout elapses the Result reports
// Settled false and lists the services that were still moving; the work
// itself carries on.
//
//	mon := stability.New(orch, web, db)
//	res := mon.Await(ctx, 30*time.Second)
//	if !res.Settled {
//	    logging.Warn("Bootstrap", "Still waiting for %v", res.Pending)
//	}
package stability
