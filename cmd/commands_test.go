package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tether/internal/formatting"
)

const workspaceConfig = `
logging:
  level: error
units:
  - identifier: core
    startLevel: 1
  - identifier: web
  - identifier: missing
`

var workspaceManifests = map[string]string{
	"core.yaml": "identifier: core\nversion: 1.0.0\nprovides: [logging]\n",
	"web.yaml":  "identifier: web\nrequires: [logging]\n",
}

func TestCheckCommand(t *testing.T) {
	dir := newWorkspace(t, workspaceConfig, workspaceManifests)

	out, err := execute(t, "check", "--config-path", dir, "-o", "json")
	var failed *UnitsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, 1, failed.Failed)

	var doc formatting.ReportDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "RESOLVED", doc.Stage)
	assert.Equal(t, map[string]int{"resolved": 2, "install-failed": 1}, doc.Summary)
}

func TestCheckCommandInvalidOutput(t *testing.T) {
	dir := newWorkspace(t, "", nil)
	_, err := execute(t, "check", "--config-path", dir, "-o", "xml")
	assert.ErrorContains(t, err, "invalid --output")
}

func TestBootCommandExit(t *testing.T) {
	dir := newWorkspace(t, workspaceConfig, workspaceManifests)

	out, err := execute(t, "boot", "--config-path", dir, "--exit", "-o", "json")
	require.NoError(t, err)

	var doc formatting.ReportDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "COMPLETE", doc.Stage)
	assert.Equal(t, 2, doc.Summary["active"])
	assert.Equal(t, 1, doc.Summary["install-failed"])
}

func TestBootCommandStrict(t *testing.T) {
	dir := newWorkspace(t, workspaceConfig, workspaceManifests)

	_, err := execute(t, "boot", "--config-path", dir, "--exit", "--strict", "--no-color")
	var failed *UnitsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, ExitCodeUnitsFailed, getExitCode(err))
}

func TestBootCancelledTearsDown(t *testing.T) {
	dir := newWorkspace(t, `
logging:
  level: error
units:
  - identifier: core
    startLevel: 1
  - identifier: slow
    startLevel: 2
`, map[string]string{
		"core.yaml": `identifier: core
activator:
  start: [sh, -c, "touch core.started"]
  stop: [sh, -c, "touch core.stopped"]
`,
		"slow.yaml": `identifier: slow
activator:
  start: [sh, -c, "touch slow.started && sleep 1"]
`,
	})
	unitsDir := filepath.Join(dir, "units")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			if _, err := os.Stat(filepath.Join(unitsDir, "slow.started")); err == nil {
				cancel()
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()

	_, err := executeContext(t, ctx, "boot", "--config-path", dir, "-o", "json")
	require.ErrorIs(t, err, context.Canceled)
	assert.ErrorContains(t, err, "bootstrap failed")
	assert.FileExists(t, filepath.Join(unitsDir, "core.started"))
	assert.FileExists(t, filepath.Join(unitsDir, "core.stopped"))
}

func TestListUnits(t *testing.T) {
	dir := newWorkspace(t, "", map[string]string{
		"core.yaml":   "identifier: core\nversion: 1.0.0\n",
		"broken.yaml": "identifier: [",
	})

	var stderr bytes.Buffer
	units, err := listUnits(context.Background(), filepath.Join(dir, "units"), &stderr)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "core", units[0].Identifier)
	assert.Contains(t, stderr.String(), "broken")
}

func TestProgressStaysSilentOffTerminal(t *testing.T) {
	var stderr bytes.Buffer
	cmd := bootCmd
	cmd.SetErr(&stderr)
	t.Cleanup(func() { cmd.SetErr(nil) })

	f := outputFlags{}
	stop := f.progress(cmd, " Working...")
	stop()
	assert.Empty(t, stderr.String())

	f.quiet = true
	f.progress(cmd, " Working...")()
	assert.Empty(t, stderr.String())
}
