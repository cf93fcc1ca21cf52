package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckResolvesWithoutRegistering(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{
		"core":   {level: 1},
		"orphan": {level: 2, requires: []string{"database"}},
	})
	p := newPipeline(t, o, inst, requiresResolver{}, units("core", "orphan", "ghost"))

	report, err := p.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageResolved, report.Stage)
	require.Len(t, report.Phases, 2)

	core, _ := report.Unit("core")
	assert.Equal(t, UnitResolved, core.Status)
	orphan, _ := report.Unit("orphan")
	assert.Equal(t, UnitResolveFailed, orphan.Status)
	ghost, _ := report.Unit("ghost")
	assert.ErrorIs(t, ghost.Err, ErrUnitNotFound)

	assert.Zero(t, o.Len())
	assert.Empty(t, inst.log.list())

	_, err = p.Check(context.Background())
	assert.Error(t, err)
}

func TestCheckResolverErrorKeepsUnitsInstalled(t *testing.T) {
	o := newOrchestrator(t)
	inst := newFakeInstaller(t, map[string]fakeUnit{"core": {level: 1}})
	p := newPipeline(t, o, inst, requiresResolver{err: errors.New("index corrupt")}, units("core"))

	report, err := p.Check(context.Background())
	var se *StartError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, PhaseResolve, se.Phase)
	var re *ResolutionError
	assert.ErrorAs(t, err, &re)

	assert.Equal(t, StageFailed, report.Stage)
	core, _ := report.Unit("core")
	assert.Equal(t, UnitInstalled, core.Status)
	assert.NoError(t, core.Err)
}

type emptyInstaller struct{}

func (emptyInstaller) Install(context.Context, string) (*Unit, error) {
	return nil, nil
}

func TestCheckToleratesMissingUnit(t *testing.T) {
	o := newOrchestrator(t)
	p := newPipeline(t, o, emptyInstaller{}, requiresResolver{}, units("core"))

	report, err := p.Check(context.Background())
	require.NoError(t, err)
	core, _ := report.Unit("core")
	assert.Equal(t, UnitInstallFailed, core.Status)
	assert.Error(t, core.Err)
}

type gaugedInstaller struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gaugedInstaller) Install(ctx context.Context, id string) (*Unit, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Unit{Identifier: id, Version: "1.0.0"}, nil
}

func TestCheckHonoursInstallLimits(t *testing.T) {
	t.Run("concurrency", func(t *testing.T) {
		inst := &gaugedInstaller{}
		p, err := New(newOrchestrator(t), Options{
			Units:              units("a", "b", "c", "d", "e"),
			Installer:          inst,
			Resolver:           requiresResolver{},
			InstallConcurrency: 2,
		})
		require.NoError(t, err)

		report, err := p.Check(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, report.Count(UnitResolved))
		assert.LessOrEqual(t, inst.peak.Load(), int32(2))
	})

	t.Run("timeout", func(t *testing.T) {
		p, err := New(newOrchestrator(t), Options{
			Units:     units("a"),
			Installer: &gaugedInstaller{},
			Resolver:  requiresResolver{},
			Timeouts:  Timeouts{Install: time.Millisecond},
		})
		require.NoError(t, err)

		report, err := p.Check(context.Background())
		require.NoError(t, err)
		a, _ := report.Unit("a")
		assert.Equal(t, UnitInstallFailed, a.Status)
		assert.ErrorIs(t, a.Err, context.DeadlineExceeded)
	})
}
