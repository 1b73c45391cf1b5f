package lsp

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOptions_Empty(t *testing.T) {
	opts, err := ParseOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)
	assert.Equal(t, ".bacon-locations", opts.LocationsFile)
	assert.True(t, opts.UpdateOnSave)
	assert.False(t, opts.UseCargoBackend)
	assert.Equal(t, time.Second, opts.UpdateOnSaveWait())
	assert.Equal(t, 2*time.Second, opts.SynchronizeWait())
}

func TestParseOptions_OverridesKeepOtherDefaults(t *testing.T) {
	raw := json.RawMessage(`{
		"locationsFile": "custom-locations",
		"updateOnSave": false,
		"useCargoBackend": true,
		"updateOnSaveWaitMillis": 250,
		"cargoEnv": ["RUSTFLAGS=-D warnings"]
	}`)
	opts, err := ParseOptions(raw)
	require.NoError(t, err)

	assert.Equal(t, "custom-locations", opts.LocationsFile)
	assert.False(t, opts.UpdateOnSave)
	assert.True(t, opts.UseCargoBackend)
	assert.Equal(t, 250*time.Millisecond, opts.UpdateOnSaveWait())
	assert.Equal(t, []string{"RUSTFLAGS=-D warnings"}, opts.CargoEnv)

	// Untouched keys keep their defaults.
	assert.True(t, opts.RunBaconInBackground)
	assert.True(t, opts.ValidateBaconPreferences)
	assert.Equal(t, "bacon", opts.RunBaconInBackgroundCommand)
}

func TestParseOptions_InvalidJSON(t *testing.T) {
	_, err := ParseOptions(json.RawMessage(`{"locationsFile": 42`))
	assert.Error(t, err)
}
