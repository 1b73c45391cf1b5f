package lsp

import (
	"sync"

	"github.com/baconls/bacon-lsp/internal/diagnostics"
)

// state is the process-wide session state: the open-document set, the
// backend chosen at initialization, the configuration and the publish
// version counter. One instance lives for the whole session and is shared
// by every handler and background task.
//
// The lock protects metadata only. Everything a synchronization pass needs
// is read, copied and released before any I/O or subprocess work starts.
type state struct {
	mu sync.RWMutex

	opts      Options
	roots     []string
	openFiles map[string]struct{}
	backend   diagnostics.Backend
	version   int
}

func newState() *state {
	return &state{
		opts:      DefaultOptions(),
		openFiles: make(map[string]struct{}),
	}
}

// configure installs the session configuration decided during initialize.
func (s *state) configure(opts Options, roots []string, backend diagnostics.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts = opts
	s.roots = roots
	s.backend = backend
}

func (s *state) options() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

func (s *state) activeBackend() diagnostics.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

func (s *state) workspaceRoots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	roots := make([]string, len(s.roots))
	copy(roots, s.roots)
	return roots
}

func (s *state) openDocument(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openFiles[uri] = struct{}{}
}

func (s *state) closeDocument(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.openFiles, uri)
}

func (s *state) renameDocument(oldURI, newURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.openFiles[oldURI]; ok {
		delete(s.openFiles, oldURI)
		s.openFiles[newURI] = struct{}{}
	}
}

// openDocuments returns a snapshot of the open-document set so callers can
// iterate without holding the lock across publishes.
func (s *state) openDocuments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]string, 0, len(s.openFiles))
	for uri := range s.openFiles {
		uris = append(uris, uri)
	}
	return uris
}

// nextVersion bumps the publish version counter. It is incremented before
// backend recomputation so a slow pass cannot under-report its freshness.
func (s *state) nextVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	return s.version
}
