package diagnostics

import (
	"log/slog"
	"net/url"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
)

// locationsDelimiter joins the nine fields of one export record:
// severity, file path, line start/end, column start/end, message,
// rendered message and suggested replacement.
const locationsDelimiter = "|:|"

// noneSentinel marks an absent rendered message or suggested replacement.
const noneSentinel = "none"

// severityKeywords are the markers that begin a new logical record in the
// export file. Lines not starting with one of these are continuations of
// the previous record.
var severityKeywords = []string{"warning", "error", "info", "note", "failure-note", "help"}

var ansiEscapes = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

func stripANSI(s string) string {
	return ansiEscapes.ReplaceAllString(s, "")
}

func startsWithSeverity(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, keyword := range severityKeywords {
		if strings.HasPrefix(trimmed, keyword) {
			return true
		}
	}
	return false
}

// parseSeverity maps a level keyword to an LSP severity. Unknown keywords,
// including "error" itself, are errors.
func parseSeverity(level string) protocol.DiagnosticSeverity {
	switch level {
	case "warning":
		return protocol.DiagnosticSeverityWarning
	case "info", "information", "note", "failure-note":
		return protocol.DiagnosticSeverityInformation
	case "hint", "help":
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}

// parseLocationsRecord parses one assembled logical record from the export
// file. The record may contain embedded newlines from continuation lines.
// root resolves relative file paths. Malformed records return ok == false;
// the caller logs nothing further and moves on.
func parseLocationsRecord(record, root string) (uri string, diagnostic protocol.Diagnostic, ok bool) {
	fields := strings.Split(record, locationsDelimiter)
	if len(fields) != 9 {
		slog.Warn("skipping malformed export record", "fields", len(fields), "record", record)
		return "", protocol.Diagnostic{}, false
	}

	positions := make([]int, 4)
	for i, field := range fields[2:6] {
		value, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || value < 1 {
			slog.Warn("skipping export record with invalid position", "field", field, "record", record)
			return "", protocol.Diagnostic{}, false
		}
		positions[i] = value
	}

	path := fields[1]
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	uri = protocol.PathToURI(path)
	if _, err := url.Parse(uri); err != nil {
		slog.Warn("skipping export record with invalid path", "path", fields[1], "err", err)
		return "", protocol.Diagnostic{}, false
	}

	message := strings.TrimSuffix(strings.ReplaceAll(fields[6], `\n`, "\n"), "\n")
	if rendered := fields[7]; rendered != "" && rendered != noneSentinel {
		// The rendered field carries the compiler's full colorized
		// explanation and replaces the bare message when present.
		rendered = strings.ReplaceAll(rendered, `\n`, "\n")
		message = strings.TrimSuffix(stripANSI(rendered), "\n")
	}

	var data interface{}
	if replacement := fields[8]; replacement != "" && replacement != noneSentinel {
		data = protocol.DiagnosticData{Corrections: []string{strings.ReplaceAll(replacement, `\n`, "\n")}}
	}

	diagnostic = protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: positions[0] - 1, Character: positions[2] - 1},
			End:   protocol.Position{Line: positions[1] - 1, Character: positions[3] - 1},
		},
		Severity: parseSeverity(strings.TrimSpace(fields[0])),
		Source:   Source,
		Message:  message,
		Data:     data,
	}
	return uri, diagnostic, true
}
