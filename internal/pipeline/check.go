package pipeline

import (
	"context"
	"errors"
	"time"

	"tether/pkg/logging"
)

// Check installs and resolves the configured units the same way Run does but
// registers nothing, so no unit is started. A pipeline is either run or
// checked, once. A failed phase is returned as a *StartError alongside the
// report.
func (p *Pipeline) Check(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	if p.ran {
		p.mu.Unlock()
		return nil, errors.New("pipeline already ran")
	}
	p.ran = true
	p.runCtx = ctx
	p.started = time.Now()
	p.mu.Unlock()

	started := time.Now()
	installed, err := p.installUnits(ctx)
	if err != nil {
		return p.failCheck(PhaseInstall, started, &StartError{Phase: PhaseInstall, Err: err})
	}
	p.recordPhase(PhaseInstall, time.Since(started), nil)
	p.setStage(StageInstalled)

	started = time.Now()
	_, resolved, err := p.resolveUnits(ctx, installed)
	if err != nil {
		return p.failCheck(PhaseResolve, started, err)
	}
	p.recordPhase(PhaseResolve, time.Since(started), nil)
	p.setStage(StageResolved)

	report := p.Report()
	logging.Info("Pipeline", "Checked %s: %d of %d units resolved",
		p.names.root, len(resolved), len(p.opts.Units))
	return report, nil
}

func (p *Pipeline) failCheck(phase Phase, started time.Time, err error) (*Report, error) {
	p.recordPhase(phase, time.Since(started), err)
	p.setStage(StageFailed)
	logging.Error("Pipeline", err, "Check of %s failed", p.names.root)
	return p.Report(), err
}
