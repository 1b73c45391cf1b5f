package bacon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	analyzerName = "cargo_json"
	exporterName = "analyzer"
	// lineFormat must match what the export-file parser expects, field for
	// field, or the published diagnostics would be garbage.
	lineFormat = "{diagnostic.level}|:|{span.file_name}|:|{span.line_start}|:|{span.line_end}|:|{span.column_start}|:|{span.column_end}|:|{diagnostic.message}|:|{diagnostic.rendered}|:|{span.suggested_replacement}"

	incompatibleMessage = "bacon configuration is not compatible with bacon-lsp: " +
		"add a bacon-ls job with the cargo_json analyzer and a cargo-json-spans export, " +
		"or let the server create one with createBaconPreferencesFile"
)

var defaultJobCommand = []string{
	"cargo", "clippy", "--tests", "--all-targets", "--all-features",
	"--message-format", "json-diagnostic-rendered-ansi",
}

// Preferences is the subset of a bacon preferences file the server cares
// about: the bacon-ls job and the spans export feeding the locations file.
type Preferences struct {
	Jobs    jobs    `toml:"jobs"`
	Exports exports `toml:"exports"`
}

type jobs struct {
	BaconLs job `toml:"bacon-ls"`
}

type job struct {
	Command    []string `toml:"command,omitempty"`
	Analyzer   string   `toml:"analyzer"`
	NeedStdout bool     `toml:"need_stdout"`
}

type exports struct {
	CargoJSONSpans export `toml:"cargo-json-spans"`
}

type export struct {
	Auto       bool   `toml:"auto"`
	Exporter   string `toml:"exporter"`
	LineFormat string `toml:"line_format"`
	Path       string `toml:"path"`
}

// ValidatePreferences asks bacon for its preference file paths and checks
// every existing one for compatibility. When none exists and creation is
// enabled, a compliant file is written at the first reported path.
func ValidatePreferences(ctx context.Context, locationsFile string, createIfMissing bool) error {
	out, err := exec.CommandContext(ctx, "bacon", "--prefs").Output()
	if err != nil {
		return fmt.Errorf("failed to list bacon preference files: %w", err)
	}
	return validatePreferencePaths(string(out), locationsFile, createIfMissing)
}

func validatePreferencePaths(prefsOutput, locationsFile string, createIfMissing bool) error {
	paths := strings.Split(strings.TrimSpace(prefsOutput), "\n")
	exists := false
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			slog.Debug("skipping non existing bacon preference file", "path", path)
			continue
		}
		exists = true
		if err := ValidatePreferencesFile(path, locationsFile); err != nil {
			return err
		}
	}
	if !exists && createIfMissing && len(paths) > 0 {
		return CreatePreferencesFile(paths[0], locationsFile)
	}
	return nil
}

// ValidatePreferencesFile checks one preferences file against the job and
// export shape the server depends on.
func ValidatePreferencesFile(path, locationsFile string) error {
	var prefs Preferences
	if _, err := toml.DecodeFile(path, &prefs); err != nil {
		return fmt.Errorf("%s: %w", incompatibleMessage, err)
	}
	slog.Debug("loaded bacon preferences", "path", path, "prefs", fmt.Sprintf("%+v", prefs))

	valid := prefs.Jobs.BaconLs.Analyzer == analyzerName &&
		prefs.Jobs.BaconLs.NeedStdout &&
		prefs.Exports.CargoJSONSpans.Auto &&
		prefs.Exports.CargoJSONSpans.Exporter == exporterName &&
		prefs.Exports.CargoJSONSpans.LineFormat == lineFormat &&
		prefs.Exports.CargoJSONSpans.Path == locationsFile
	if !valid {
		return fmt.Errorf("%s (checked %s)", incompatibleMessage, path)
	}
	slog.Info("bacon configuration is valid", "path", path)
	return nil
}

// CreatePreferencesFile writes a compliant preferences file at path.
func CreatePreferencesFile(path, locationsFile string) error {
	prefs := Preferences{
		Jobs: jobs{
			BaconLs: job{
				Command:    defaultJobCommand,
				Analyzer:   analyzerName,
				NeedStdout: true,
			},
		},
		Exports: exports{
			CargoJSONSpans: export{
				Auto:       true,
				Exporter:   exporterName,
				LineFormat: lineFormat,
				Path:       locationsFile,
			},
		},
	}
	slog.Info("creating new bacon preference file", "path", path)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating bacon preferences %s: %w", path, err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("error closing bacon preferences file", "path", path, "err", err)
		}
	}()
	if err := toml.NewEncoder(file).Encode(prefs); err != nil {
		return fmt.Errorf("error writing bacon preferences %s: %w", path, err)
	}
	return nil
}
