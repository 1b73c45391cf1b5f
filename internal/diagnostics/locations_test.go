package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
)

func writeExportFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestBaconBackend_Diagnostics(t *testing.T) {
	root := t.TempDir()
	writeExportFile(t, root, ".bacon-locations",
		"error|:|src/lib.rs|:|10|:|10|:|1|:|5|:|bad code|:|none|:|none\n"+
			"error|:|src/lib.rs|:|10|:|10|:|1|:|5|:|bad code|:|none|:|none\n"+
			"warning|:|src/lib.rs|:|2|:|2|:|1|:|3|:|unused|:|none|:|none\n"+
			"warning|:|src/main.rs|:|1|:|1|:|1|:|2|:|dead code|:|none|:|none\n")

	backend := NewBaconBackend(".bacon-locations", []string{root})
	result, err := backend.Diagnostics(context.Background(), "")
	require.NoError(t, err)

	libURI := protocol.PathToURI(filepath.Join(root, "src/lib.rs"))
	mainURI := protocol.PathToURI(filepath.Join(root, "src/main.rs"))

	// Two identical records collapse to one; distinct records survive.
	require.Len(t, result, 2)
	assert.Len(t, result[libURI], 2)
	assert.Len(t, result[mainURI], 1)

	// First-seen order is preserved.
	assert.Equal(t, "bad code", result[libURI][0].Message)
	assert.Equal(t, "unused", result[libURI][1].Message)
}

func TestBaconBackend_MultiLineRecords(t *testing.T) {
	root := t.TempDir()
	writeExportFile(t, root, ".bacon-locations",
		"warning|:|src/lib.rs|:|1|:|1|:|1|:|2|:|msg|:|warning: unused variable\n"+
			"  --> src/lib.rs:1:1\n"+
			"   = note: annotate with underscore|:|none\n"+
			"error|:|src/lib.rs|:|5|:|5|:|1|:|2|:|boom|:|none|:|none\n")

	backend := NewBaconBackend(".bacon-locations", []string{root})
	result, err := backend.Diagnostics(context.Background(), "")
	require.NoError(t, err)

	libURI := protocol.PathToURI(filepath.Join(root, "src/lib.rs"))
	require.Len(t, result[libURI], 2)
	assert.Equal(t, "warning: unused variable\n  --> src/lib.rs:1:1\n   = note: annotate with underscore",
		result[libURI][0].Message)
	assert.Equal(t, "boom", result[libURI][1].Message)
}

func TestBaconBackend_MalformedRecordDoesNotAbortScan(t *testing.T) {
	root := t.TempDir()
	writeExportFile(t, root, ".bacon-locations",
		"error|:|src/lib.rs|:|1|:|1|:|1|:|2|:|first|:|none|:|none\n"+
			"error|:|not enough fields\n"+
			"error|:|src/lib.rs|:|2|:|2|:|1|:|2|:|second|:|none|:|none\n")

	backend := NewBaconBackend(".bacon-locations", []string{root})
	result, err := backend.Diagnostics(context.Background(), "")
	require.NoError(t, err)

	libURI := protocol.PathToURI(filepath.Join(root, "src/lib.rs"))
	require.Len(t, result[libURI], 2)
	assert.Equal(t, "first", result[libURI][0].Message)
	assert.Equal(t, "second", result[libURI][1].Message)
}

func TestBaconBackend_DocumentFilter(t *testing.T) {
	root := t.TempDir()
	writeExportFile(t, root, ".bacon-locations",
		"error|:|src/lib.rs|:|1|:|1|:|1|:|2|:|lib issue|:|none|:|none\n"+
			"error|:|src/main.rs|:|1|:|1|:|1|:|2|:|main issue|:|none|:|none\n")

	libURI := protocol.PathToURI(filepath.Join(root, "src/lib.rs"))
	backend := NewBaconBackend(".bacon-locations", []string{root})
	result, err := backend.Diagnostics(context.Background(), libURI)
	require.NoError(t, err)

	require.Len(t, result, 1)
	assert.Len(t, result[libURI], 1)
}

func TestBaconBackend_MissingExportFile(t *testing.T) {
	backend := NewBaconBackend(".bacon-locations", []string{t.TempDir()})
	result, err := backend.Diagnostics(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestBaconBackend_RecursiveDiscoveryMergesFiles(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "crates", "core")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeExportFile(t, root, ".bacon-locations",
		"error|:|src/lib.rs|:|1|:|1|:|1|:|2|:|dup|:|none|:|none\n")
	writeExportFile(t, nested, ".bacon-locations",
		// Same record again: merged through the deduplicator.
		"error|:|src/lib.rs|:|1|:|1|:|1|:|2|:|dup|:|none|:|none\n"+
			"warning|:|src/lib.rs|:|3|:|3|:|1|:|2|:|other|:|none|:|none\n")

	backend := NewBaconBackend(".bacon-locations", []string{root})
	result, err := backend.Diagnostics(context.Background(), "")
	require.NoError(t, err)

	libURI := protocol.PathToURI(filepath.Join(root, "src/lib.rs"))
	assert.Len(t, result[libURI], 2)
}
