package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tether/internal/api"
	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

// Recorder is the Prometheus implementation of orchestrator.Recorder and
// pipeline.Recorder.
type Recorder struct {
	transitions   *prometheus.CounterVec
	startDuration *prometheus.HistogramVec
	registered    prometheus.Gauge
	phaseDuration *prometheus.HistogramVec
	phaseFailures *prometheus.CounterVec
	units         *prometheus.CounterVec
}

var (
	_ orchestrator.Recorder = (*Recorder)(nil)
	_ pipeline.Recorder     = (*Recorder)(nil)
)

// NewRecorder registers the tether metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	return &Recorder{
		transitions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_service_transitions_total",
				Help: "Service state transitions by kind",
			},
			[]string{"kind"}, // Starting, Started, Failed, Stopping, Stopped, Removed
		),
		startDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "tether_service_start_duration_seconds",
				Help: "Duration of service starts, from dispatch to completion",
				Buckets: []float64{
					0.001, // 1ms - markers
					0.01,  // 10ms
					0.1,   // 100ms
					0.5,   // 500ms
					1,     // 1s
					5,     // 5s
					30,    // 30s - slow activators
					120,   // 2m
				},
			},
			[]string{"result"}, // "success", "failure"
		),
		registered: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tether_services_registered",
				Help: "Number of registered services",
			},
		),
		phaseDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tether_pipeline_phase_duration_seconds",
				Help:    "Duration of bootstrap phases",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
			[]string{"phase"},
		),
		phaseFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_pipeline_phase_failures_total",
				Help: "Bootstrap phases that failed",
			},
			[]string{"phase"},
		),
		units: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tether_pipeline_units_total",
				Help: "Unit outcomes reported by the bootstrap pipeline",
			},
			[]string{"status"},
		),
	}
}

// TransitionObserved counts a transition.
func (r *Recorder) TransitionObserved(t api.Transition) {
	r.transitions.WithLabelValues(t.Kind.String()).Inc()
}

// StartFinished observes the duration of a start.
func (r *Recorder) StartFinished(_ api.ServiceName, d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.startDuration.WithLabelValues(result).Observe(d.Seconds())
}

// RegisteredChanged sets the registered services gauge.
func (r *Recorder) RegisteredChanged(n int) {
	r.registered.Set(float64(n))
}

// PhaseCompleted observes a finished bootstrap phase.
func (r *Recorder) PhaseCompleted(phase pipeline.Phase, d time.Duration, err error) {
	r.phaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
	if err != nil {
		r.phaseFailures.WithLabelValues(string(phase)).Inc()
	}
}

// UnitSettled counts a unit outcome.
func (r *Recorder) UnitSettled(status pipeline.UnitStatus) {
	r.units.WithLabelValues(string(status)).Inc()
}
