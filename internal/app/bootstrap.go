package app

import (
	"context"
	"fmt"
	"os"

	"github.com/coreos/go-systemd/v22/daemon"

	"tether/internal/config"
	"tether/internal/pipeline"
	"tether/pkg/logging"
)

// Application bootstraps and runs tether. It follows a two-phase pattern:
//
//  1. NewApplication loads configuration, initializes logging and creates
//     the services.
//  2. Boot runs the bootstrap pipeline; Run then keeps the units up until
//     the context is cancelled or a signal arrives, deploying manifest
//     changes in watch mode.
//
// Example usage:
//
//	application, err := app.NewApplication(app.NewConfig(false, false, configPath))
//	if err != nil {
//	    return err
//	}
//	report, err := application.Boot(ctx)
//	...
//	defer application.Shutdown(context.Background())
//	return application.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configuration when cfg.TetherConfig is nil,
// initializes logging and creates all services.
func NewApplication(cfg *Config) (*Application, error) {
	if cfg.LogOutput == nil {
		cfg.LogOutput = os.Stderr
	}

	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	logging.InitForCLI(level, cfg.LogOutput)

	if cfg.TetherConfig == nil {
		tc, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
			return nil, err
		}
		cfg.TetherConfig = &tc
	}
	if err := initLogging(cfg); err != nil {
		return nil, err
	}

	services, err := InitializeServices(cfg.TetherConfig)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// initLogging applies the logging section; --debug wins over the level.
func initLogging(cfg *Config) error {
	level, err := logging.ParseLevel(cfg.TetherConfig.Logging.Level)
	if err != nil {
		return err
	}
	if cfg.Debug {
		level = logging.LevelDebug
	}
	format, err := logging.ParseFormat(cfg.TetherConfig.Logging.Format)
	if err != nil {
		return err
	}
	logging.Init(level, format, cfg.LogOutput)
	return nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Boot starts the metrics endpoint, when configured, and runs the bootstrap
// pipeline. Unit failures are in the report; the error is non-nil only when
// a phase failed or ctx ended first.
func (a *Application) Boot(ctx context.Context) (*pipeline.Report, error) {
	if a.services.MetricsServer != nil {
		if err := a.services.MetricsServer.Start(); err != nil {
			return nil, err
		}
	}

	return a.services.Pipeline.Run(ctx)
}

// Run blocks until ctx is cancelled or SIGINT/SIGTERM arrives. In watch
// mode manifest changes are deployed meanwhile.
func (a *Application) Run(ctx context.Context) error {
	notifySystemd(daemon.SdNotifyReady, readyStatus(a.services.Pipeline.Report()))
	defer notifySystemd(daemon.SdNotifyStopping)

	if a.config.watchEnabled() {
		return runWatchMode(ctx, a.config.TetherConfig, a.services)
	}
	return runHoldMode(ctx)
}

// Shutdown tears everything down within timeouts.shutdown.
func (a *Application) Shutdown(ctx context.Context) error {
	ctx, cancel := shutdownContext(ctx, a.config.TetherConfig.Timeouts.Shutdown)
	defer cancel()
	logging.Info("Bootstrap", "Shutting down")
	return a.services.Close(ctx)
}
