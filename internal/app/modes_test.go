package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"tether/internal/config"
	"tether/internal/pipeline"
	"tether/internal/repository"
)

type recordingDeployer struct {
	calls     []string
	deployed  []pipeline.UnitConfig
	deployErr error
}

func (d *recordingDeployer) Deploy(_ context.Context, uc pipeline.UnitConfig) (pipeline.UnitReport, error) {
	d.calls = append(d.calls, "deploy:"+uc.Identifier)
	d.deployed = append(d.deployed, uc)
	return pipeline.UnitReport{Identifier: uc.Identifier, Status: pipeline.UnitActive}, d.deployErr
}

func (d *recordingDeployer) Undeploy(_ context.Context, identifier string) error {
	d.calls = append(d.calls, "undeploy:"+identifier)
	return fmt.Errorf("%w: %s", pipeline.ErrNotDeployed, identifier)
}

func TestApplyChange(t *testing.T) {
	no := false
	cfg := config.GetDefaultConfig()
	cfg.Units = []config.UnitConfig{{Identifier: "reports", StartLevel: 3, AutoStart: &no}}

	tests := []struct {
		name  string
		op    repository.ChangeOp
		id    string
		calls []string
	}{
		{"added", repository.ChangeAdded, "core", []string{"deploy:core"}},
		{"changed", repository.ChangeChanged, "core", []string{"undeploy:core", "deploy:core"}},
		{"removed", repository.ChangeRemoved, "core", []string{"undeploy:core"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &recordingDeployer{}
			applyChange(context.Background(), &cfg, d, repository.Change{Op: tt.op, Identifier: tt.id})
			assert.Equal(t, tt.calls, d.calls)
		})
	}

	t.Run("configured unit keeps its settings", func(t *testing.T) {
		d := &recordingDeployer{deployErr: pipeline.ErrAlreadyDeployed}
		applyChange(context.Background(), &cfg, d, repository.Change{Op: repository.ChangeAdded, Identifier: "reports"})
		assert.Equal(t, []pipeline.UnitConfig{{Identifier: "reports", StartLevel: 3, AutoStart: false}}, d.deployed)
	})
}
