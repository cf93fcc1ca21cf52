package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecActivatorRunsCommands(t *testing.T) {
	dir := t.TempDir()
	a := NewExecActivator("demo", dir, ActivatorSpec{
		Start: []string{"sh", "-c", `echo "$GREETING $TETHER_UNIT" > started`},
		Stop:  []string{"sh", "-c", "touch stopped"},
		Env:   map[string]string{"GREETING": "hello"},
	})
	ctx := context.Background()

	require.NoError(t, a.Start(ctx, nil))
	data, err := os.ReadFile(filepath.Join(dir, "started"))
	require.NoError(t, err)
	assert.Equal(t, "hello demo\n", string(data))
	assert.False(t, a.Running())

	require.NoError(t, a.Stop(ctx))
	assert.FileExists(t, filepath.Join(dir, "stopped"))
	assert.Nil(t, a.Value())
}

func TestExecActivatorReportsFailure(t *testing.T) {
	a := NewExecActivator("broken", t.TempDir(), ActivatorSpec{
		Start: []string{"sh", "-c", "echo nope >&2; exit 3"},
	})
	err := a.Start(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "broken")
}

func TestExecActivatorDaemon(t *testing.T) {
	dir := t.TempDir()
	a := NewExecActivator("sleeper", dir, ActivatorSpec{
		Start:  []string{"sleep", "30"},
		Daemon: true,
		Dir:    "work",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "work"), 0755))

	require.NoError(t, a.Start(context.Background(), nil))
	assert.True(t, a.Running())

	start := time.Now()
	require.NoError(t, a.Stop(context.Background()))
	assert.False(t, a.Running())
	assert.Less(t, time.Since(start), stopGrace)
}

func TestExecActivatorWithoutCommands(t *testing.T) {
	a := NewExecActivator("empty", t.TempDir(), ActivatorSpec{})
	assert.NoError(t, a.Start(context.Background(), nil))
	assert.NoError(t, a.Stop(context.Background()))
}
