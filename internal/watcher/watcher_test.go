package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectTrigger(t *testing.T, triggers <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case _, ok := <-triggers:
		require.True(t, ok, "trigger channel closed unexpectedly")
	case <-time.After(within):
		t.Fatal("expected a trigger, got none")
	}
}

func expectNoTrigger(t *testing.T, triggers <-chan struct{}, within time.Duration) {
	t.Helper()
	select {
	case _, ok := <-triggers:
		if ok {
			t.Fatal("unexpected trigger")
		}
	case <-time.After(within):
	}
}

func TestWatch_DebouncesBurstsIntoOneTrigger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bacon-locations")
	require.NoError(t, os.WriteFile(path, []byte("initial\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	triggers := Watch(ctx, path, 300*time.Millisecond)

	// Give registration a moment before generating events.
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("update\n"), 0o644))
		time.Sleep(20 * time.Millisecond)
	}

	expectTrigger(t, triggers, 2*time.Second)
	expectNoTrigger(t, triggers, 500*time.Millisecond)
}

func TestWatch_SurvivesExportFileReplacement(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bacon-locations")
	require.NoError(t, os.WriteFile(path, []byte("initial\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	triggers := Watch(ctx, path, 100*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("before replacement\n"), 0o644))
	expectTrigger(t, triggers, 2*time.Second)

	// Atomic rewrite: write a sibling, rename it over the export path. The
	// old inode's watch is gone; the directory watch must keep working.
	sibling := filepath.Join(dir, ".bacon-locations.tmp")
	require.NoError(t, os.WriteFile(sibling, []byte("replacement\n"), 0o644))
	require.NoError(t, os.Rename(sibling, path))
	expectTrigger(t, triggers, 2*time.Second)

	require.NoError(t, os.WriteFile(path, []byte("after replacement\n"), 0o644))
	expectTrigger(t, triggers, 2*time.Second)
}

func TestWatch_SiblingFilesDoNotTrigger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bacon-locations")
	require.NoError(t, os.WriteFile(path, []byte("initial\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	triggers := Watch(ctx, path, 100*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.log"), []byte("noise\n"), 0o644))

	expectNoTrigger(t, triggers, 600*time.Millisecond)
}

func TestWatch_RegistrationRetriesUntilDirectoryExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "target")
	path := filepath.Join(dir, ".bacon-locations")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	triggers := Watch(ctx, path, 100*time.Millisecond)

	// The containing directory does not exist yet; registration keeps
	// retrying.
	time.Sleep(1500 * time.Millisecond)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	// Wait past at least one retry tick, then create and modify the file.
	time.Sleep(1500 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("created\n"), 0o644))

	expectTrigger(t, triggers, 3*time.Second)
}

func TestWatch_MetadataOnlyBatchIsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bacon-locations")
	require.NoError(t, os.WriteFile(path, []byte("initial\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	triggers := Watch(ctx, path, 100*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.Chmod(path, 0o600))

	expectNoTrigger(t, triggers, 600*time.Millisecond)
}

func TestWatch_CancellationClosesStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".bacon-locations")
	require.NoError(t, os.WriteFile(path, []byte("initial\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	triggers := Watch(ctx, path, 100*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case _, ok := <-triggers:
		assert.False(t, ok, "channel should be closed after cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("trigger channel was not closed after cancellation")
	}
}

func TestWatch_CancellationDuringRegistrationRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", ".bacon-locations")

	ctx, cancel := context.WithCancel(context.Background())
	triggers := Watch(ctx, path, 100*time.Millisecond)
	cancel()

	select {
	case _, ok := <-triggers:
		assert.False(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop while retrying registration")
	}
}
