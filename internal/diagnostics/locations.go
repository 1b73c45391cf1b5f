package diagnostics

import (
	"bufio"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// BaconBackend reads diagnostics out of the export files the bacon checker
// writes under the workspace roots. It never returns an error: a missing
// export file just means the checker has not produced output yet and
// contributes zero diagnostics for this pass.
type BaconBackend struct {
	// LocationsFile is the export file name to discover under each root.
	LocationsFile string
	// Roots are the effective workspace roots, already resolved through
	// EffectiveRoot by the caller.
	Roots []string
}

// NewBaconBackend creates a backend tailing export files named
// locationsFile under the given roots.
func NewBaconBackend(locationsFile string, roots []string) *BaconBackend {
	return &BaconBackend{LocationsFile: locationsFile, Roots: roots}
}

// Diagnostics discovers every export file under the configured roots and
// merges their records into one per-document map. When filter is a
// non-empty document URI, records for other documents are discarded.
func (b *BaconBackend) Diagnostics(ctx context.Context, filter string) (DocumentDiagnostics, error) {
	result := DocumentDiagnostics{}
	for _, root := range b.Roots {
		for _, path := range b.findExportFiles(root) {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			b.readExportFile(path, root, filter, result)
		}
	}
	return result, nil
}

// findExportFiles recursively searches root for files named LocationsFile.
func (b *BaconBackend) findExportFiles(root string) []string {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("skipping unreadable path during export file discovery", "path", path, "err", err)
			return nil
		}
		if !d.IsDir() && d.Name() == b.LocationsFile {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		slog.Warn("export file discovery failed", "root", root, "err", err)
	}
	return found
}

// readExportFile streams one export file, assembling multi-line logical
// records and feeding them to the record parser. A new record begins on
// every line whose trimmed content starts with a severity keyword; other
// lines are joined to the current record with embedded newlines.
func (b *BaconBackend) readExportFile(path, root, filter string, into DocumentDiagnostics) {
	file, err := os.Open(path)
	if err != nil {
		slog.Warn("cannot read export file", "path", path, "err", err)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("error closing export file", "path", path, "err", err)
		}
	}()

	var record strings.Builder
	flush := func() {
		if record.Len() == 0 {
			return
		}
		if uri, diagnostic, ok := parseLocationsRecord(record.String(), root); ok {
			if filter == "" || filter == uri {
				Add(into, uri, diagnostic)
			}
		}
		record.Reset()
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case startsWithSeverity(line):
			flush()
			record.WriteString(line)
		case record.Len() > 0:
			record.WriteString("\n")
			record.WriteString(line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		// Truncates this file's remaining lines without aborting the scan.
		slog.Warn("error reading export file", "path", path, "err", err)
	}
}
