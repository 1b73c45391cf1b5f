package bacon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisor_ChildExitsNaturally(t *testing.T) {
	supervisor, err := Start(context.Background(), "echo", []string{"i am running"}, "", true)
	require.NoError(t, err)
	assert.NoError(t, supervisor.Wait())
}

func TestSupervisor_CancellationKillsChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	supervisor, err := Start(ctx, "sleep", []string{"60"}, "", false)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- supervisor.Wait() }()

	cancel()
	select {
	case err := <-done:
		// Being killed on cancellation resolves the handle without error.
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not resolve after cancellation")
	}
}

func TestSupervisor_SpawnFailure(t *testing.T) {
	_, err := Start(context.Background(), "definitely-not-a-real-command", nil, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start")
}

func TestSupervisor_NonZeroExitIsAnError(t *testing.T) {
	supervisor, err := Start(context.Background(), "sh", []string{"-c", "exit 3"}, "", false)
	require.NoError(t, err)
	assert.Error(t, supervisor.Wait())
}
