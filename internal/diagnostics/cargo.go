package diagnostics

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
)

// CargoBackend produces diagnostics by running cargo with machine-readable
// message output and decoding its stdout. This backend is pull/batch: the
// process must terminate before any diagnostics are available.
type CargoBackend struct {
	// CommandArgs is the whitespace-separated cargo argument string, e.g.
	// "clippy --tests --message-format json-diagnostic-rendered-ansi".
	CommandArgs string
	// Env holds KEY=VALUE overrides appended to the process environment.
	Env []string
	// BuildDir is the directory cargo runs in; a --manifest-path override
	// pointing into it makes the invocation independent of the caller's
	// working directory.
	BuildDir string
	// LogStderr forwards cargo's stderr to the log when set. Stderr is
	// never treated as a failure signal.
	LogStderr bool
}

// NewCargoBackend creates a cargo-driven backend.
func NewCargoBackend(commandArgs string, env []string, buildDir string, logStderr bool) *CargoBackend {
	return &CargoBackend{
		CommandArgs: commandArgs,
		Env:         env,
		BuildDir:    buildDir,
		LogStderr:   logStderr,
	}
}

type cargoSpan struct {
	FileName             string  `json:"file_name"`
	LineStart            int     `json:"line_start"`
	LineEnd              int     `json:"line_end"`
	ColumnStart          int     `json:"column_start"`
	ColumnEnd            int     `json:"column_end"`
	SuggestedReplacement *string `json:"suggested_replacement"`
}

type cargoChild struct {
	Message string      `json:"message"`
	Level   string      `json:"level"`
	Spans   []cargoSpan `json:"spans"`
}

type cargoMessage struct {
	MessageType string       `json:"$message_type"`
	Rendered    string       `json:"rendered"`
	Level       string       `json:"level"`
	Spans       []cargoSpan  `json:"spans"`
	Children    []cargoChild `json:"children"`
}

// cargoEnvelope is one line of cargo's newline-delimited JSON stream. Only
// envelopes carrying a diagnostic message are of interest.
type cargoEnvelope struct {
	Message *cargoMessage `json:"message"`
}

// Diagnostics runs cargo to completion and decodes the diagnostics from its
// stdout. The filter argument is ignored: cargo always reports the whole
// workspace and recomputing is the same cost either way.
func (c *CargoBackend) Diagnostics(ctx context.Context, _ string) (DocumentDiagnostics, error) {
	args := strings.Fields(c.CommandArgs)
	args = append(args, "--manifest-path", filepath.Join(c.BuildDir, "Cargo.toml"))
	slog.Debug("running cargo", "args", args)

	cmd := exec.CommandContext(ctx, "cargo", args...)
	cmd.Dir = c.BuildDir
	cmd.Env = append(os.Environ(), c.Env...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// cargo exits non-zero whenever the build has errors; that is a
		// result, not a failure. Only a spawn problem is fatal.
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run cargo: %w", err)
		}
		slog.Debug("cargo exited non-zero", "err", err)
	}

	if c.LogStderr {
		for _, line := range strings.Split(strings.TrimRight(stderr.String(), "\n"), "\n") {
			slog.Info("[cargo stderr] " + line)
		}
	}

	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return parseCargoOutput(stdout.Bytes(), workDir), nil
}

// parseCargoOutput decodes each stdout line independently as one diagnostic
// envelope. Lines that fail to decode are logged and skipped since cargo
// emits non-diagnostic informational lines on the same stream. Relative
// span paths are anchored against workDir.
func parseCargoOutput(output []byte, workDir string) DocumentDiagnostics {
	result := DocumentDiagnostics{}
	scanner := bufio.NewScanner(bytes.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var envelope cargoEnvelope
		if err := json.Unmarshal(line, &envelope); err != nil {
			slog.Warn("skipping undecodable cargo line", "line", string(line), "err", err)
			continue
		}
		message := envelope.Message
		if message == nil || message.MessageType != "diagnostic" {
			continue
		}

		rendered := strings.TrimRight(stripANSI(message.Rendered), "\n")
		for _, span := range message.Spans {
			addCargoSpan(result, workDir, message.Level, rendered, span)
		}
		// Child diagnostics (help suggestions and notes) carry their own
		// message and spans, independent of the parent's rendered text.
		for _, child := range message.Children {
			for _, span := range child.Spans {
				addCargoSpan(result, workDir, child.Level, child.Message, span)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("error scanning cargo output", "err", err)
	}
	return result
}

// addCargoSpan emits one diagnostic keyed by the span's canonicalized
// absolute file location. A path that cannot be canonicalized (for example
// the file vanished between the build and this pass) drops the span.
func addCargoSpan(into DocumentDiagnostics, workDir, level, message string, span cargoSpan) {
	path := span.FileName
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		slog.Warn("dropping diagnostic span with unresolvable path", "path", path, "err", err)
		return
	}

	var data interface{}
	if span.SuggestedReplacement != nil {
		data = protocol.DiagnosticData{Corrections: []string{*span.SuggestedReplacement}}
	}

	Add(into, protocol.PathToURI(resolved), protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: span.LineStart - 1, Character: span.ColumnStart - 1},
			End:   protocol.Position{Line: span.LineEnd - 1, Character: span.ColumnEnd - 1},
		},
		Severity: parseSeverity(level),
		Source:   Source,
		Message:  message,
		Data:     data,
	})
}
