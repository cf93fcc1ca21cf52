package stability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/api"
	"tether/internal/orchestrator"
	"tether/internal/services"
)

func newOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	o := orchestrator.New(orchestrator.Config{Workers: 4})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func mustRegister(t *testing.T, o *orchestrator.Orchestrator, def services.Definition) {
	t.Helper()
	_, err := o.Register(def)
	require.NoError(t, err)
}

func TestAwaitTimesOutWithoutError(t *testing.T) {
	o := newOrchestrator(t)
	a := api.MustServiceName("a")
	b := api.MustServiceName("b")
	release := make(chan struct{})
	defer close(release)

	mustRegister(t, o, services.Definition{Name: a, Behavior: services.Marker()})
	mustRegister(t, o, services.Definition{Name: b, Behavior: services.Funcs{
		StartFunc: func(ctx context.Context, sc *services.StartContext) error {
			sc.Asynchronous()
			go func() {
				select {
				case <-release:
				case <-time.After(5 * time.Second):
				}
				_ = sc.Complete()
			}()
			return nil
		},
	}})

	start := time.Now()
	res := New(o, a, b).Await(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, res.Settled)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, []api.ServiceName{a}, res.Up)
	assert.Equal(t, []api.ServiceName{b}, res.Pending)
	assert.Empty(t, res.Failed)
}

func TestAwaitConverges(t *testing.T) {
	o := newOrchestrator(t)
	var names []api.ServiceName
	prev := api.ServiceName{}
	for _, id := range []string{"one", "two", "three", "four"} {
		n := api.MustServiceName("chain", id)
		def := services.Definition{Name: n, Behavior: services.Funcs{
			StartFunc: func(context.Context, *services.StartContext) error {
				time.Sleep(5 * time.Millisecond)
				return nil
			},
		}}
		if !prev.IsZero() {
			def.Dependencies = []services.Dependency{services.Required(prev)}
		}
		mustRegister(t, o, def)
		names = append(names, n)
		prev = n
	}

	res := New(o, names...).Await(context.Background(), 2*time.Second)
	require.True(t, res.Settled)
	assert.ElementsMatch(t, names, res.Up)
	assert.Empty(t, res.Unavailable())
}

func TestAwaitReportsFailuresAndProblems(t *testing.T) {
	o := newOrchestrator(t)
	broken := api.MustServiceName("broken")
	dependent := api.MustServiceName("dependent")
	orphan := api.MustServiceName("orphan")
	lazy := api.MustServiceName("lazy")
	ghost := api.MustServiceName("ghost")
	cause := errors.New("bad config")

	mustRegister(t, o, services.Definition{Name: broken, Behavior: services.Funcs{
		StartFunc: func(context.Context, *services.StartContext) error { return cause },
	}})
	mustRegister(t, o, services.Definition{
		Name: dependent, Behavior: services.Marker(),
		Dependencies: []services.Dependency{services.Required(broken)},
	})
	mustRegister(t, o, services.Definition{
		Name: orphan, Behavior: services.Marker(),
		Dependencies: []services.Dependency{services.Required(api.MustServiceName("nowhere"))},
	})
	mustRegister(t, o, services.Definition{Name: lazy, Behavior: services.Marker(), Mode: api.ModeOnDemand})

	mon := New(o, broken, dependent)
	mon.Add(orphan, lazy, ghost, broken)
	assert.Len(t, mon.Names(), 5)

	res := mon.Await(context.Background(), 2*time.Second)
	require.True(t, res.Settled)
	assert.ErrorIs(t, res.Failed[broken], cause)
	assert.Contains(t, res.Problems[dependent], "dependency broken failed")
	assert.Contains(t, res.Problems[orphan], "missing dependency nowhere")
	assert.Equal(t, []api.ServiceName{lazy}, res.Inactive)
	assert.Equal(t, []api.ServiceName{ghost}, res.Removed)
	assert.Empty(t, res.Up)
	assert.Equal(t, []api.ServiceName{broken, dependent, ghost, lazy, orphan}, res.Unavailable())
}

func TestAwaitHonoursContext(t *testing.T) {
	o := newOrchestrator(t)
	n := api.MustServiceName("slow")
	release := make(chan struct{})
	defer close(release)
	mustRegister(t, o, services.Definition{Name: n, Behavior: services.Funcs{
		StartFunc: func(ctx context.Context, sc *services.StartContext) error {
			sc.Asynchronous()
			go func() {
				<-release
				_ = sc.Complete()
			}()
			return nil
		},
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := New(o, n).Await(ctx, 0)
	assert.False(t, res.Settled)
	assert.Equal(t, []api.ServiceName{n}, res.Pending)
}

func TestCheckDoesNotWait(t *testing.T) {
	o := newOrchestrator(t)
	n := api.MustServiceName("never")
	mustRegister(t, o, services.Definition{Name: n, Behavior: services.Marker(), Mode: api.ModeNever})

	res := New(o, n).Check()
	assert.True(t, res.Settled)
	assert.Equal(t, []api.ServiceName{n}, res.Inactive)
}
