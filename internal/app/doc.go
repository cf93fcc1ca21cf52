// Package app wires tether together: configuration, logging, metrics, the
// orchestrator, the unit repository, the resolver and the bootstrap
// pipeline.
//
// # Run modes
//
// After Boot the application either holds the booted units until it is
// signalled, or, in watch mode (--watch or repository.watch), deploys
// manifests that appear in the repository, redeploys changed ones and
// undeploys removed ones through the pipeline's Deployer.
//
// Under systemd (Type=notify) both modes report READY=1 with a unit summary
// once they start holding, and STOPPING=1 when they return. The metrics
// server's /health/ready answers 503 until the bootstrap completed.
//
// Check installs and resolves the configured units without starting
// anything, for validating a repository before booting it.
package app
