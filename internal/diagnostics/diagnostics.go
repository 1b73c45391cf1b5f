package diagnostics

import (
	"context"
	"os/exec"
	"strings"

	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
)

// Source is the origin tag attached to every diagnostic this server publishes.
const Source = "bacon-lsp"

// DocumentDiagnostics maps a document URI to its ordered diagnostic list.
// The list order is first-seen; the map is rebuilt from scratch on every
// synchronization pass, never patched incrementally.
type DocumentDiagnostics map[string][]protocol.Diagnostic

// Backend produces the current diagnostics for the workspace. The two
// implementations are the bacon export-file reader and the cargo
// subprocess runner; the sync engine holds one of them, chosen at
// initialization, and never branches on the concrete type.
//
// If filter is a non-empty document URI, a backend may restrict the result
// to that document; restricting is an optimization, not a contract, so
// callers must still index the returned map by URI.
type Backend interface {
	Diagnostics(ctx context.Context, filter string) (DocumentDiagnostics, error)
}

// Add appends d to the document's diagnostic list unless an entry with
// equal range, severity and message is already present. The correction
// payload is not part of the identity. This is the sole mechanism keeping
// duplicate reports from reaching the editor twice.
func Add(into DocumentDiagnostics, uri string, d protocol.Diagnostic) {
	for _, existing := range into[uri] {
		if existing.Range == d.Range && existing.Severity == d.Severity && existing.Message == d.Message {
			return
		}
	}
	into[uri] = append(into[uri], d)
}

// EffectiveRoot resolves the directory diagnostics discovery should run
// from. Build tools and checkers usually run from the repository root while
// editors report workspace folders that may be a subdirectory, so the
// enclosing git root wins when one is discoverable.
func EffectiveRoot(ctx context.Context, dir string) string {
	out, err := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return dir
	}
	root := strings.TrimSpace(string(out))
	if root == "" {
		return dir
	}
	return root
}
