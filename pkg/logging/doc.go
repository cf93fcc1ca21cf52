// Package logging provides subsystem-tagged structured logging for tether.
//
// This package is a thin layer over Go's standard slog package. Every entry
// carries a subsystem attribute so the output of the registry, the pipeline
// and the repository scanner can be told apart and filtered.
//
// # Log Levels
//   - **Debug**: state transitions, scheduling decisions
//   - **Info**: phase progress, unit activation
//   - **Warn**: unit failures that do not abort the pipeline
//   - **Error**: start/stop failures and systemic errors
//
// # Usage Examples
//
//	logging.Init(logging.LevelInfo, logging.FormatJSON, os.Stderr)
//
//	logging.Info("Pipeline", "Installed %d of %d units", installed, total)
//	logging.Debug("Registry", "Dispatching start of %s", name)
//	logging.Error("Registry", err, "Stop of %s failed, forcing DOWN", name)
//
// Two handlers are available: FormatText (slog.TextHandler) and FormatJSON
// (slog.JSONHandler). InitForCLI is shorthand for the text handler.
//
// # Subsystems
//
//   - **Bootstrap**: application wiring
//   - **Config**: configuration loading and validation
//   - **Registry**: the service registry and scheduler
//   - **Stability**: stability waits
//   - **Pipeline**: install, resolve and activate phases
//   - **Deployer**: runtime deploy and undeploy
//   - **Repository**: manifest loading and directory scanning
//   - **Metrics**: the metrics endpoint
//
// Logging before Init is a no-op except for errors, which are written to
// stderr.
package logging
