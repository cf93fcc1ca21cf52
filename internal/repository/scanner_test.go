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

func TestMergeOps(t *testing.T) {
	tests := []struct {
		prev, next, want ChangeOp
	}{
		{ChangeAdded, ChangeChanged, ChangeAdded},
		{ChangeAdded, ChangeRemoved, ChangeRemoved},
		{ChangeChanged, ChangeChanged, ChangeChanged},
		{ChangeChanged, ChangeRemoved, ChangeRemoved},
		{ChangeRemoved, ChangeAdded, ChangeChanged},
	}
	for _, tt := range tests {
		t.Run(string(tt.prev)+"_"+string(tt.next), func(t *testing.T) {
			if got := mergeOps(tt.prev, tt.next); got != tt.want {
				t.Errorf("mergeOps(%s, %s) = %s, want %s", tt.prev, tt.next, got, tt.want)
			}
		})
	}
}

func waitChange(t *testing.T, changes <-chan Change) Change {
	t.Helper()
	select {
	case c := <-changes:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
		return Change{}
	}
}

func TestScannerReportsManifestChanges(t *testing.T) {
	dir := t.TempDir()
	s := NewScanner(dir, 50*time.Millisecond)
	changes := make(chan Change, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx, changes))
	defer s.Stop()

	path := filepath.Join(dir, "plugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("identifier: plugin\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("identifier: plugin\nversion: 2.0.0\n"), 0644))

	c := waitChange(t, changes)
	assert.Equal(t, ChangeAdded, c.Op)
	assert.Equal(t, "plugin", c.Identifier)
	assert.Equal(t, path, c.Path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0644))
	require.NoError(t, os.Remove(path))

	// The second write may land after the first debounce window.
	for c = waitChange(t, changes); c.Op == ChangeChanged; c = waitChange(t, changes) {
	}
	assert.Equal(t, ChangeRemoved, c.Op)
	assert.Equal(t, "plugin", c.Identifier)
}

func TestScannerStartStop(t *testing.T) {
	s := NewScanner(t.TempDir(), 0)
	assert.Equal(t, DefaultDebounce, s.debounce)

	ctx := context.Background()
	changes := make(chan Change, 1)
	require.NoError(t, s.Start(ctx, changes))
	require.NoError(t, s.Start(ctx, changes))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	missing := NewScanner(filepath.Join(t.TempDir(), "missing"), 0)
	assert.Error(t, missing.Start(ctx, changes))
}
