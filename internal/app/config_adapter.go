package app

import (
	"tether/internal/config"
	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

// cyclePolicy maps registry.cyclePolicy onto the orchestrator policy.
// Validation has already rejected unknown values.
func cyclePolicy(s string) orchestrator.CyclePolicy {
	if s == "allow" {
		return orchestrator.CycleAllow
	}
	return orchestrator.CycleReject
}

func orchestratorConfig(cfg *config.TetherConfig, recorder orchestrator.Recorder) orchestrator.Config {
	return orchestrator.Config{
		Workers:     cfg.Registry.Workers,
		CyclePolicy: cyclePolicy(cfg.Registry.CyclePolicy),
		Recorder:    recorder,
	}
}

func unitConfig(u config.UnitConfig) pipeline.UnitConfig {
	return pipeline.UnitConfig{
		Identifier: u.Identifier,
		StartLevel: u.StartLevel,
		AutoStart:  u.AutoStartEnabled(),
	}
}

func unitConfigs(units []config.UnitConfig) []pipeline.UnitConfig {
	out := make([]pipeline.UnitConfig, 0, len(units))
	for _, u := range units {
		out = append(out, unitConfig(u))
	}
	return out
}

func pipelineTimeouts(t config.TimeoutsConfig) pipeline.Timeouts {
	return pipeline.Timeouts{
		Install:  t.Install,
		Resolve:  t.Resolve,
		Activate: t.Activate,
		Unit:     t.Unit,
	}
}

func pipelineOptions(cfg *config.TetherConfig, installer pipeline.Installer, resolver pipeline.Resolver, recorder pipeline.Recorder) pipeline.Options {
	return pipeline.Options{
		Name:               cfg.Pipeline.Name,
		Units:              unitConfigs(cfg.Units),
		Installer:          installer,
		Resolver:           resolver,
		Timeouts:           pipelineTimeouts(cfg.Timeouts),
		InstallConcurrency: cfg.Pipeline.InstallConcurrency,
		RequireUnits:       cfg.Pipeline.RequireUnits,
		Recorder:           recorder,
	}
}

// deployConfig returns the configured settings for identifier, or autoStart
// at the manifest's level for units that only exist in the repository.
func deployConfig(cfg *config.TetherConfig, identifier string) pipeline.UnitConfig {
	for _, u := range cfg.Units {
		if u.Identifier == identifier {
			return unitConfig(u)
		}
	}
	return pipeline.UnitConfig{Identifier: identifier, AutoStart: true}
}
