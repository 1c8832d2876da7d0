package anvil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaceFile swaps the file content atomically so that the watcher never
// reads a truncated file
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o644))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatchParameters_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.toml")
	require.NoError(t, os.WriteFile(path, []byte("slop = 0.01\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Parameters, 8)
	done := make(chan error, 1)
	go func() {
		done <- WatchParameters(ctx, path, discardLogger(), func(p Parameters) {
			reloaded <- p
		})
	}()

	// the watcher has no ready signal, rewrite until it picks a change up
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case p := <-reloaded:
			assert.Equal(t, 0.05, p.Slop)
			cancel()
			require.NoError(t, <-done)
			return
		case <-ticker.C:
			replaceFile(t, path, "slop = 0.05\n")
		case <-deadline:
			require.FailNow(t, "parameters were not reloaded")
		}
	}
}

func TestWatchParameters_SkipsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.yaml")
	require.NoError(t, os.WriteFile(path, []byte("slop: 0.01\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan Parameters, 8)
	done := make(chan error, 1)
	go func() {
		done <- WatchParameters(ctx, path, discardLogger(), func(p Parameters) {
			reloaded <- p
		})
	}()

	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	// invalid rewrites are ignored, the next valid one goes through
	for {
		select {
		case p := <-reloaded:
			assert.Equal(t, 0.02, p.Slop)
			cancel()
			require.NoError(t, <-done)
			return
		case <-ticker.C:
			replaceFile(t, path, "slop: -1\n")
			replaceFile(t, path, "slop: 0.02\n")
		case <-deadline:
			require.FailNow(t, "parameters were not reloaded")
		}
	}
}

func TestWatchParameters_OtherFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "physics.toml")
	require.NoError(t, os.WriteFile(path, []byte("slop = 0.01\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	called := false
	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "other.toml"), []byte("slop = 0.05\n"), 0o644)
	}()

	require.NoError(t, WatchParameters(ctx, path, discardLogger(), func(Parameters) { called = true }))
	assert.False(t, called)
}

func TestWatchParameters_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "physics.toml")
	err := WatchParameters(context.Background(), path, discardLogger(), func(Parameters) {})
	assert.Error(t, err)
}
