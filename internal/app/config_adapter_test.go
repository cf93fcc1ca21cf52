package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tether/internal/config"
	"tether/internal/orchestrator"
	"tether/internal/pipeline"
)

func TestCyclePolicy(t *testing.T) {
	assert.Equal(t, orchestrator.CycleAllow, cyclePolicy("allow"))
	assert.Equal(t, orchestrator.CycleReject, cyclePolicy("reject"))
}

func TestPipelineOptions(t *testing.T) {
	no := false
	cfg := config.GetDefaultConfig()
	cfg.Pipeline.RequireUnits = true
	cfg.Timeouts.Unit = 7 * time.Second
	cfg.Units = []config.UnitConfig{
		{Identifier: "core", StartLevel: 1},
		{Identifier: "lazy", AutoStart: &no},
	}

	opts := pipelineOptions(&cfg, nil, nil, nil)
	assert.Equal(t, config.DefaultPipelineName, opts.Name)
	assert.True(t, opts.RequireUnits)
	assert.Equal(t, config.DefaultInstallConcurrency, opts.InstallConcurrency)
	assert.Equal(t, 7*time.Second, opts.Timeouts.Unit)
	assert.Equal(t, 5*time.Minute, opts.Timeouts.Activate)
	assert.Equal(t, []pipeline.UnitConfig{
		{Identifier: "core", StartLevel: 1, AutoStart: true},
		{Identifier: "lazy", AutoStart: false},
	}, opts.Units)

	oc := orchestratorConfig(&cfg, nil)
	assert.Equal(t, config.DefaultWorkers, oc.Workers)
	assert.Equal(t, orchestrator.CycleReject, oc.CyclePolicy)
}

func TestDeployConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Units = []config.UnitConfig{{Identifier: "core", StartLevel: 4}}

	assert.Equal(t, pipeline.UnitConfig{Identifier: "core", StartLevel: 4, AutoStart: true}, deployConfig(&cfg, "core"))
	assert.Equal(t, pipeline.UnitConfig{Identifier: "new", AutoStart: true}, deployConfig(&cfg, "new"))
}
