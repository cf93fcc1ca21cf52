package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"tether/internal/config"
	"tether/internal/pipeline"
	"tether/internal/repository"
	"tether/pkg/logging"
)

// changeBuffer is the capacity of the scanner's change channel.
const changeBuffer = 64

// signalContext derives a context that ends on SIGINT or SIGTERM.
func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// runHoldMode keeps the booted units up until ctx ends or the process is
// signalled.
func runHoldMode(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	logging.Info("CLI", "Units are up. Press Ctrl+C to stop them and exit.")
	<-ctx.Done()
	return nil
}

// runWatchMode deploys, redeploys and undeploys units as their manifests
// appear, change and disappear, until ctx ends or the process is signalled.
func runWatchMode(ctx context.Context, cfg *config.TetherConfig, s *Services) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	scanner := repository.NewScanner(s.Repository.Dir(), cfg.Repository.Debounce)
	changes := make(chan repository.Change, changeBuffer)
	if err := scanner.Start(ctx, changes); err != nil {
		return err
	}
	defer func() { _ = scanner.Stop() }()

	deployer := s.Pipeline.Deployer()
	logging.Info("CLI", "Watching %s for unit changes. Press Ctrl+C to stop.", s.Repository.Dir())
	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-changes:
			applyChange(ctx, cfg, deployer, change)
		}
	}
}

// unitDeployer is the part of pipeline.Deployer that watch mode drives.
type unitDeployer interface {
	Deploy(ctx context.Context, uc pipeline.UnitConfig) (pipeline.UnitReport, error)
	Undeploy(ctx context.Context, identifier string) error
}

// applyChange maps one manifest change onto the deployer. Errors are logged;
// watch mode keeps running.
func applyChange(ctx context.Context, cfg *config.TetherConfig, d unitDeployer, change repository.Change) {
	logging.Debug("Watch", "Manifest %s %s", change.Identifier, change.Op)

	switch change.Op {
	case repository.ChangeRemoved:
		undeploy(ctx, d, change.Identifier)
	case repository.ChangeChanged:
		undeploy(ctx, d, change.Identifier)
		deploy(ctx, cfg, d, change.Identifier)
	case repository.ChangeAdded:
		deploy(ctx, cfg, d, change.Identifier)
	}
}

func deploy(ctx context.Context, cfg *config.TetherConfig, d unitDeployer, identifier string) {
	report, err := d.Deploy(ctx, deployConfig(cfg, identifier))
	switch {
	case errors.Is(err, pipeline.ErrAlreadyDeployed):
		logging.Debug("Watch", "Unit %s is already deployed", identifier)
	case err != nil:
		logging.Error("Watch", err, "Failed to deploy %s", identifier)
	case report.Status.IsFailure():
		logging.Warn("Watch", "Deployed %s but it is %s: %v", identifier, report.Status, report.Err)
	default:
		logging.Info("Watch", "Deployed %s (%s)", identifier, report.Status)
	}
}

func undeploy(ctx context.Context, d unitDeployer, identifier string) {
	err := d.Undeploy(ctx, identifier)
	switch {
	case errors.Is(err, pipeline.ErrNotDeployed):
		logging.Debug("Watch", "Unit %s was not deployed", identifier)
	case err != nil:
		logging.Error("Watch", err, "Failed to undeploy %s", identifier)
	default:
		logging.Info("Watch", "Undeployed %s", identifier)
	}
}
