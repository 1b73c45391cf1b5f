package lsp

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultLocationsFile is the export file name bacon writes unless
// configured otherwise.
const DefaultLocationsFile = ".bacon-locations"

const (
	defaultBaconCommand     = "bacon"
	defaultBaconCommandArgs = "--headless -j bacon-ls"
	defaultCargoCommandArgs = "clippy --tests --all-features --all-targets --message-format json-diagnostic-rendered-ansi"
)

// Options is the configuration surface supplied by the client through
// initializationOptions. It is decoded once during initialize and fixed for
// the lifetime of the session.
type Options struct {
	LocationsFile                     string   `json:"locationsFile"`
	UseCargoBackend                   bool     `json:"useCargoBackend"`
	UpdateOnSave                      bool     `json:"updateOnSave"`
	UpdateOnSaveWaitMillis            int64    `json:"updateOnSaveWaitMillis"`
	UpdateOnChange                    bool     `json:"updateOnChange"`
	ValidateBaconPreferences          bool     `json:"validateBaconPreferences"`
	CreateBaconPreferencesFile        bool     `json:"createBaconPreferencesFile"`
	RunBaconInBackground              bool     `json:"runBaconInBackground"`
	RunBaconInBackgroundCommand       string   `json:"runBaconInBackgroundCommand"`
	RunBaconInBackgroundCommandArgs   string   `json:"runBaconInBackgroundCommandArgs"`
	SynchronizeAllOpenFilesWaitMillis int64    `json:"synchronizeAllOpenFilesWaitMillis"`
	CargoCommandArguments             string   `json:"cargoCommandArguments"`
	CargoEnv                          []string `json:"cargoEnv"`
	LogBacon                          bool     `json:"logBacon"`
}

// DefaultOptions returns the configuration used when the client sends no
// initializationOptions.
func DefaultOptions() Options {
	return Options{
		LocationsFile:                     DefaultLocationsFile,
		UseCargoBackend:                   false,
		UpdateOnSave:                      true,
		UpdateOnSaveWaitMillis:            1000,
		UpdateOnChange:                    false,
		ValidateBaconPreferences:          true,
		CreateBaconPreferencesFile:        true,
		RunBaconInBackground:              true,
		RunBaconInBackgroundCommand:       defaultBaconCommand,
		RunBaconInBackgroundCommandArgs:   defaultBaconCommandArgs,
		SynchronizeAllOpenFilesWaitMillis: 2000,
		CargoCommandArguments:             defaultCargoCommandArgs,
		LogBacon:                          true,
	}
}

// ParseOptions decodes initializationOptions on top of the defaults, so
// absent keys keep their default values.
func ParseOptions(raw json.RawMessage) (Options, error) {
	opts := DefaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return DefaultOptions(), fmt.Errorf("decoding initialization options: %w", err)
	}
	return opts, nil
}

// UpdateOnSaveWait is the delay between a save notification and the
// republish, giving the checker time to rewrite the export file.
func (o Options) UpdateOnSaveWait() time.Duration {
	return time.Duration(o.UpdateOnSaveWaitMillis) * time.Millisecond
}

// SynchronizeWait is the debounce window for export file change events.
func (o Options) SynchronizeWait() time.Duration {
	return time.Duration(o.SynchronizeAllOpenFilesWaitMillis) * time.Millisecond
}
