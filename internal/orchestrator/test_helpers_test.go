package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tether/internal/api"
	"tether/internal/services"
)

const (
	waitFor = 2 * time.Second
	tick    = 2 * time.Millisecond
)

func svcName(s string) api.ServiceName {
	return api.MustServiceName(strings.Split(s, ".")...)
}

// eventLog records start and stop calls in the order they happen.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func (l *eventLog) index(e string) int {
	for i, got := range l.list() {
		if got == e {
			return i
		}
	}
	return -1
}

func (l *eventLog) count(e string) int {
	n := 0
	for _, got := range l.list() {
		if got == e {
			n++
		}
	}
	return n
}

// fakeService is a configurable Behavior for tests.
type fakeService struct {
	id       string
	log      *eventLog
	value    any
	startErr error
	stopErr  error
	panicMsg string
	// gate, when set, blocks Start until it is closed.
	gate chan struct{}
	// onStart runs inside Start before it returns.
	onStart func()

	starts atomic.Int32
	stops  atomic.Int32
}

func newFake(id string, log *eventLog) *fakeService {
	return &fakeService{id: id, log: log}
}

func (f *fakeService) Start(ctx context.Context, sc *services.StartContext) error {
	if f.log != nil {
		f.log.add("start:" + f.id)
	}
	f.starts.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.onStart != nil {
		f.onStart()
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.startErr
}

func (f *fakeService) Stop(ctx context.Context) error {
	if f.log != nil {
		f.log.add("stop:" + f.id)
	}
	f.stops.Add(1)
	return f.stopErr
}

func (f *fakeService) Value() any {
	return f.value
}

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	o := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func register(t *testing.T, o *Orchestrator, name string, b services.Behavior, mode api.Mode, deps ...services.Dependency) *Controller {
	t.Helper()
	c, err := o.Register(services.Definition{
		Name:         svcName(name),
		Behavior:     b,
		Mode:         mode,
		Dependencies: deps,
	})
	require.NoError(t, err)
	return c
}

func requireState(t *testing.T, c *Controller, state api.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State() == state
	}, waitFor, tick, "service %s never reached %s (is %s)", c.Name(), state, c.State())
}

func requireGone(t *testing.T, o *Orchestrator, name string) {
	t.Helper()
	require.Eventually(t, func() bool {
		_, err := o.Lookup(svcName(name))
		return api.IsNotFound(err)
	}, waitFor, tick, "service %s was never removed", name)
}
