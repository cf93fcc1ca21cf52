package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"tether/internal/config"
	"tether/internal/metrics"
	"tether/internal/orchestrator"
	"tether/internal/pipeline"
	"tether/internal/repository"
	"tether/internal/resolver"
	"tether/pkg/logging"
)

// Services holds all initialized services used by the application.
//
// The services are created in dependency order:
//  1. Metrics registry and recorder
//  2. Orchestrator, observed by the recorder
//  3. Unit repository and resolver
//  4. Bootstrap pipeline on top of all of the above
type Services struct {
	// Orchestrator is the service registry and lifecycle scheduler.
	Orchestrator *orchestrator.Orchestrator

	// Registry holds tether's Prometheus metrics plus the Go and process
	// collectors.
	Registry *prometheus.Registry
	Recorder *metrics.Recorder

	// MetricsServer is nil when metrics.address is empty.
	MetricsServer *metrics.Server

	Repository *repository.Repository
	Resolver   *resolver.Resolver
	Pipeline   *pipeline.Pipeline
}

// InitializeServices creates every service from cfg. Nothing is registered
// with the orchestrator until the pipeline runs.
func InitializeServices(cfg *config.TetherConfig) (*Services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(reg)

	repo, err := repository.New(cfg.Repository.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open unit repository: %w", err)
	}
	res := resolver.New()

	orch := orchestrator.New(orchestratorConfig(cfg, recorder))
	pl, err := pipeline.New(orch, pipelineOptions(cfg, repo, res, recorder))
	if err != nil {
		shutdownCtx, cancel := shutdownContext(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()
		_ = orch.Shutdown(shutdownCtx)
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	s := &Services{
		Orchestrator: orch,
		Registry:     reg,
		Recorder:     recorder,
		Repository:   repo,
		Resolver:     res,
		Pipeline:     pl,
	}
	if cfg.Metrics.Address != "" {
		s.MetricsServer = metrics.NewServer(cfg.Metrics.Address, reg)
		s.MetricsServer.SetReady(pipelineReady(pl))
	}

	logging.Debug("Services", "Initialized services: %d workers, cycle policy %s, repository %s",
		cfg.Registry.Workers, cfg.Registry.CyclePolicy, repo.Dir())
	return s, nil
}

// Close tears the pipeline down, shuts the orchestrator down and stops the
// metrics server. It keeps going after a failure and returns all errors.
func (s *Services) Close(ctx context.Context) error {
	var errs []error
	if err := s.Pipeline.Teardown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pipeline teardown: %w", err))
	}
	if err := s.Orchestrator.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("orchestrator shutdown: %w", err))
	}
	if s.MetricsServer != nil {
		if err := s.MetricsServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	return errors.Join(errs...)
}

// shutdownContext bounds ctx by d; zero means no bound.
func shutdownContext(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// pipelineReady reports ready once the bootstrap pipeline completed.
func pipelineReady(pl *pipeline.Pipeline) metrics.ReadyFunc {
	return func() (bool, string) {
		if stage := pl.Stage(); stage != pipeline.StageComplete {
			return false, "bootstrap stage " + stage.String()
		}
		return true, ""
	}
}
