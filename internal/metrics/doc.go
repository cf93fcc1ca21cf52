// Package metrics exports registry and bootstrap measurements to Prometheus.
//
// Recorder plugs into orchestrator.Config.Recorder and
// pipeline.Options.Recorder. Server serves a registry over HTTP when
// metrics.address is configured.
package metrics
