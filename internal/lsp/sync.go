package lsp

import (
	"context"
	"log/slog"

	"github.com/baconls/bacon-lsp/internal/diagnostics"
	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
)

// syncLoop is the steady loop: it blocks alternately on the next watcher
// trigger or on session cancellation, running one full synchronization pass
// per trigger. Cancellation exits without further publishing.
func (s *Server) syncLoop(ctx context.Context, triggers <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-triggers:
			if !ok {
				return
			}
			s.Synchronize(ctx)
		}
	}
}

// Synchronize recomputes diagnostics from the active backend and publishes
// the result to every currently open document, explicitly clearing the ones
// with no diagnostics. Each pass rebuilds from scratch and is idempotent:
// concurrent passes republish the same version-tagged snapshots.
func (s *Server) Synchronize(ctx context.Context) {
	open := s.state.openDocuments()
	backend := s.state.activeBackend()
	if backend == nil || len(open) == 0 {
		return
	}
	version := s.state.nextVersion()

	all, err := backend.Diagnostics(ctx, "")
	if err != nil {
		slog.Error("error recomputing diagnostics", "err", err)
		return
	}
	for _, uri := range open {
		s.publish(ctx, uri, all[uri], version)
	}
}

// publishFor recomputes and publishes diagnostics for a single document,
// used on open, rename and the post-save path.
func (s *Server) publishFor(ctx context.Context, uri string) {
	backend := s.state.activeBackend()
	if backend == nil {
		return
	}
	version := s.state.nextVersion()

	slog.Info("publishing diagnostics", "uri", uri)
	all, err := backend.Diagnostics(ctx, uri)
	if err != nil {
		slog.Error("error recomputing diagnostics", "uri", uri, "err", err)
		return
	}
	s.publish(ctx, uri, all[uri], version)
}

// Diagnostics returns a pull-based snapshot for one document, or the
// diagnostics of every document the backend currently reports when uri is
// empty.
func (s *Server) Diagnostics(ctx context.Context, uri string) []protocol.Diagnostic {
	backend := s.state.activeBackend()
	if backend == nil {
		return nil
	}
	all, err := backend.Diagnostics(ctx, uri)
	if err != nil {
		slog.Error("error computing diagnostics snapshot", "uri", uri, "err", err)
		return nil
	}
	if uri != "" {
		return all[uri]
	}
	var list []protocol.Diagnostic
	for _, docList := range all {
		list = append(list, docList...)
	}
	return list
}

// DiagnosticsMap returns a full-workspace snapshot from the active backend.
func (s *Server) DiagnosticsMap(ctx context.Context) diagnostics.DocumentDiagnostics {
	backend := s.state.activeBackend()
	if backend == nil {
		return diagnostics.DocumentDiagnostics{}
	}
	all, err := backend.Diagnostics(ctx, "")
	if err != nil {
		slog.Error("error computing workspace diagnostics snapshot", "err", err)
		return diagnostics.DocumentDiagnostics{}
	}
	return all
}

// publish sends one textDocument/publishDiagnostics notification. The
// version lets the client discard stale results arriving out of order; an
// empty list explicitly clears previously shown diagnostics.
func (s *Server) publish(ctx context.Context, uri string, list []protocol.Diagnostic, version int) {
	conn := s.connection()
	if conn == nil {
		return
	}
	if list == nil {
		list = []protocol.Diagnostic{}
	}
	params := protocol.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: list,
	}
	if err := conn.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		slog.Error("error publishing diagnostics", "uri", uri, "err", err)
	}
}
