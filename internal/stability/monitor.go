package stability

import (
	"context"
	"slices"
	"sync"
	"time"

	"tether/internal/api"
	"tether/internal/orchestrator"
	"tether/pkg/logging"
)

// Source is the registry view a Monitor needs. *orchestrator.Orchestrator
// implements it.
type Source interface {
	Statuses(names []api.ServiceName) []orchestrator.Status
	Watch() <-chan struct{}
}

// Result describes the tracked services when Await returned.
type Result struct {
	// Settled is true when every tracked service is in one of the buckets
	// below other than Pending.
	Settled bool

	Up []api.ServiceName
	// Failed holds START_FAILED services and their start error.
	Failed map[api.ServiceName]error
	// Problems holds DOWN services that want to be up but cannot start
	// without an outside change (missing or failed dependency, cycle).
	Problems map[api.ServiceName]string
	// Inactive holds DOWN services nothing wants up (NEVER, or ON_DEMAND
	// without demand).
	Inactive []api.ServiceName
	// Removed holds names that are not registered.
	Removed []api.ServiceName
	// Pending holds services still on their way somewhere.
	Pending []api.ServiceName

	Elapsed time.Duration
}

// Unavailable returns every tracked service that is not UP, sorted.
func (r Result) Unavailable() []api.ServiceName {
	var out []api.ServiceName
	for name := range r.Failed {
		out = append(out, name)
	}
	for name := range r.Problems {
		out = append(out, name)
	}
	out = append(out, r.Inactive...)
	out = append(out, r.Removed...)
	out = append(out, r.Pending...)
	slices.SortFunc(out, api.ServiceName.Compare)
	return out
}

// IsUp reports whether name was UP.
func (r Result) IsUp(name api.ServiceName) bool {
	return slices.Contains(r.Up, name)
}

// Monitor waits for a set of services to settle.
type Monitor struct {
	src Source

	mu    sync.Mutex
	names []api.ServiceName
}

// New creates a monitor tracking the given names.
func New(src Source, names ...api.ServiceName) *Monitor {
	m := &Monitor{src: src}
	m.Add(names...)
	return m
}

// Add tracks more services. Duplicates are ignored.
func (m *Monitor) Add(names ...api.ServiceName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range names {
		if !slices.Contains(m.names, n) {
			m.names = append(m.names, n)
		}
	}
}

// Names returns the tracked names.
func (m *Monitor) Names() []api.ServiceName {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.names)
}

// Check classifies the tracked services without waiting.
func (m *Monitor) Check() Result {
	return classify(m.src.Statuses(m.Names()))
}

// Await blocks until every tracked service has settled, the timeout elapses
// or ctx is done. A timeout is not an error: the result simply reports
// Settled false and lists what is still pending. Work in flight is not
// cancelled. A non-positive timeout waits for ctx only.
func (m *Monitor) Await(ctx context.Context, timeout time.Duration) Result {
	start := time.Now()
	names := m.Names()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		// Take the watch channel before reading state so no change is missed.
		changed := m.src.Watch()
		res := classify(m.src.Statuses(names))
		res.Elapsed = time.Since(start)
		if res.Settled {
			logging.Debug("Stability", "%d services settled after %s", len(names), res.Elapsed.Round(time.Millisecond))
			return res
		}

		select {
		case <-changed:
		case <-expired:
			logging.Warn("Stability", "Timed out after %s waiting for %v", timeout, res.Pending)
			return res
		case <-ctx.Done():
			logging.Debug("Stability", "Wait cancelled: %v", ctx.Err())
			return res
		}
	}
}

func classify(statuses []orchestrator.Status) Result {
	res := Result{
		Failed:   map[api.ServiceName]error{},
		Problems: map[api.ServiceName]string{},
	}
	for _, st := range statuses {
		switch {
		case !st.Registered:
			res.Removed = append(res.Removed, st.Name)
		case st.State == api.StateUp && !st.Stopping:
			res.Up = append(res.Up, st.Name)
		case st.State == api.StateStartFailed:
			res.Failed[st.Name] = st.Err
		case st.State == api.StateDown && !st.WantsUp:
			res.Inactive = append(res.Inactive, st.Name)
		case st.State == api.StateDown && st.Blocked != "":
			res.Problems[st.Name] = st.Blocked
		default:
			res.Pending = append(res.Pending, st.Name)
		}
	}
	res.Settled = len(res.Pending) == 0
	return res
}
