package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/api"
	"tether/internal/orchestrator"
	"tether/internal/pipeline"
	"tether/internal/services"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	name := api.MustServiceName("svc")

	r.TransitionObserved(api.Transition{Service: name, Kind: api.TransitionStarting})
	r.TransitionObserved(api.Transition{Service: name, Kind: api.TransitionStarted})
	r.TransitionObserved(api.Transition{Service: name, Kind: api.TransitionStarted})
	r.StartFinished(name, 10*time.Millisecond, nil)
	r.StartFinished(name, time.Second, errors.New("boom"))
	r.RegisteredChanged(7)
	r.PhaseCompleted(pipeline.PhaseInstall, 50*time.Millisecond, nil)
	r.PhaseCompleted(pipeline.PhaseResolve, time.Millisecond, errors.New("bad"))
	r.UnitSettled(pipeline.UnitActive)
	r.UnitSettled(pipeline.UnitActive)
	r.UnitSettled(pipeline.UnitStartFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.transitions.WithLabelValues("Started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.transitions.WithLabelValues("Starting")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.startDuration))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.registered))
	assert.Equal(t, 2, testutil.CollectAndCount(r.phaseDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.phaseFailures.WithLabelValues("resolve")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.units.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.units.WithLabelValues("start-failed")))
}

func TestRecorderObservesOrchestrator(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	o := orchestrator.New(orchestrator.Config{Workers: 2, Recorder: r})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})

	name := api.MustServiceName("observed")
	_, err := o.Register(services.Definition{Name: name, Behavior: services.Marker()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.transitions.WithLabelValues("Started")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.registered))
	assert.Equal(t, 1, testutil.CollectAndCount(r.startDuration))
}

func TestNewRecorderRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewRecorder(reg)
	assert.Panics(t, func() { NewRecorder(reg) })
}

func TestServerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)
	r.RegisteredChanged(3)

	s := NewServer("127.0.0.1:0", reg)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	assert.Error(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "tether_services_registered 3")

	resp, err = http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}

func TestServerReadiness(t *testing.T) {
	s := NewServer("127.0.0.1:0", prometheus.NewRegistry())
	h := s.Handler()

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/health/ready").Code)

	ready := false
	s.SetReady(func() (bool, string) {
		if !ready {
			return false, "stage ACTIVATING"
		}
		return true, ""
	})
	rec := get("/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "stage ACTIVATING", rec.Body.String())

	ready = true
	assert.Equal(t, http.StatusOK, get("/health/ready").Code)
	assert.Equal(t, http.StatusOK, get("/health").Code)
	assert.Equal(t, http.StatusNotFound, get("/nope").Code)
}
