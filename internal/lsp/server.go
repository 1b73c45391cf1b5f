package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"golang.org/x/sync/errgroup"

	"github.com/baconls/bacon-lsp/internal/bacon"
	"github.com/baconls/bacon-lsp/internal/diagnostics"
	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
	"github.com/baconls/bacon-lsp/internal/watcher"
)

// Server bridges bacon and cargo diagnostics into an editor session over
// JSON-RPC on stdin/stdout.
type Server struct {
	name    string
	version string

	// connMu guards conn: the read loop spawned by jsonrpc2.NewConn can
	// dispatch a notification before Start has stored the connection.
	connMu sync.Mutex
	conn   *jsonrpc2.Conn

	state *state

	// sessionCtx is cancelled exactly once, at shutdown; every long-lived
	// task waits on it. tasks joins them before shutdown is acknowledged.
	sessionCtx context.Context
	cancel     context.CancelFunc
	tasks      *errgroup.Group

	supervisorMu     sync.Mutex
	supervisor       *bacon.Supervisor
	supervisorCancel context.CancelFunc
}

// NewServer creates a new diagnostics LSP server.
func NewServer(name, version string) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		name:       name,
		version:    version,
		state:      newState(),
		sessionCtx: ctx,
		cancel:     cancel,
		tasks:      new(errgroup.Group),
	}
}

// Start serves the LSP session over the given streams until the client
// disconnects.
func (s *Server) Start(in io.Reader, out io.Writer) error {
	stream := jsonrpc2.NewBufferedStream(rwc{in, out}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle))
	s.setConn(conn)

	<-conn.DisconnectNotify()
	return nil
}

func (s *Server) setConn(conn *jsonrpc2.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn = conn
}

// connection returns the active connection, or nil before the session has
// fully started. Notification senders treat nil as "nowhere to send yet".
func (s *Server) connection() *jsonrpc2.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

// rwc combines a reader and writer into a single ReadWriteCloser
type rwc struct {
	io.Reader
	io.Writer
}

// Close implements io.Closer
func (rwc) Close() error {
	return nil
}

// handle processes incoming JSON-RPC requests and notifications
func (s *Server) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if req.Method == "exit" {
		slog.Info("received exit notification, exiting")
		if err := conn.Close(); err != nil {
			slog.Error("error closing connection", "err", err)
		}
		return nil, nil
	}

	switch req.Method {
	case "initialize":
		var params protocol.InitializeParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeParseError, Message: err.Error()}
		}
		return s.initialize(ctx, &params)

	case "initialized":
		s.initialized(ctx)
		return nil, nil

	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		s.state.openDocument(params.TextDocument.URI)
		go s.publishFor(s.sessionCtx, params.TextDocument.URI)
		return nil, nil

	case "textDocument/didSave":
		var params protocol.DidSaveTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		s.didSave(params.TextDocument.URI)
		return nil, nil

	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		if s.state.options().UpdateOnChange {
			go s.publishFor(s.sessionCtx, params.TextDocument.URI)
		}
		return nil, nil

	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		s.state.closeDocument(params.TextDocument.URI)
		// Clear anything still shown for the closed document.
		s.publish(ctx, params.TextDocument.URI, nil, s.state.nextVersion())
		return nil, nil

	case "workspace/didRenameFiles":
		var params protocol.RenameFilesParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		for _, file := range params.Files {
			s.state.renameDocument(file.OldURI, file.NewURI)
			go s.publishFor(s.sessionCtx, file.NewURI)
		}
		return nil, nil

	case "workspace/didDeleteFiles":
		var params protocol.DeleteFilesParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		for _, file := range params.Files {
			s.state.closeDocument(file.URI)
		}
		return nil, nil

	case "textDocument/codeAction":
		var params protocol.CodeActionParams
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			return nil, err
		}
		return s.codeActions(&params), nil

	case "shutdown":
		slog.Info("received shutdown request, stopping background tasks")
		s.cancel()
		if err := s.tasks.Wait(); err != nil {
			slog.Error("error stopping background tasks", "err", err)
		}
		slog.Info("waiting for exit notification")
		return nil, nil

	default:
		// Notifications we do not handle need no response.
		if req.ID == (jsonrpc2.ID{}) {
			return nil, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "Method not implemented: " + req.Method}
	}
}

// initialize handles the LSP initialize request: it validates the client's
// diagnostics capabilities, decodes the configuration and fixes the backend
// for the lifetime of the session.
func (s *Server) initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	slog.Info("initializing", "name", s.name, "version", s.version)

	if !clientSupportsDiagnosticsData(params.Capabilities) {
		slog.Error("client does not support diagnostics data")
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeInvalidRequest,
			Message: "client must support textDocument.publishDiagnostics.dataSupport",
		}
	}

	opts, err := ParseOptions(params.InitializationOptions)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}

	roots := s.resolveRoots(ctx, params)
	backend := s.buildBackend(opts, roots)
	s.state.configure(opts, roots, backend)
	slog.Debug("session configured", "options", fmt.Sprintf("%+v", opts), "roots", roots)

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			PositionEncoding: "utf-16",
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncFull,
				Save:      true,
			},
			CodeActionProvider: true,
		},
		ServerInfo: &protocol.ServerInfo{Name: s.name, Version: s.version},
	}, nil
}

// initialized spawns the long-lived background tasks: preferences
// validation, the background checker and the export file watcher feeding
// the steady synchronization loop.
func (s *Server) initialized(ctx context.Context) {
	s.showMessage(ctx, protocol.MessageTypeInfo, fmt.Sprintf("%s v%s lsp server initialized", s.name, s.version))

	opts := s.state.options()
	roots := s.state.workspaceRoots()

	if opts.UseCargoBackend {
		// The cargo backend recomputes on demand; there is no export file
		// to supervise or watch.
		return
	}

	if opts.ValidateBaconPreferences {
		s.tasks.Go(func() error {
			if err := bacon.ValidatePreferences(s.sessionCtx, opts.LocationsFile, opts.CreateBaconPreferencesFile); err != nil {
				slog.Error("bacon preferences validation failed", "err", err)
				s.showMessage(s.sessionCtx, protocol.MessageTypeError, err.Error())
			}
			return nil
		})
	}

	if opts.RunBaconInBackground {
		workingDir := ""
		if len(roots) > 0 {
			workingDir = roots[0]
		}
		if err := s.StartBackgroundChecker(opts.RunBaconInBackgroundCommand, strings.Fields(opts.RunBaconInBackgroundCommandArgs), workingDir); err != nil {
			slog.Error("cannot start background checker", "err", err)
			s.showMessage(s.sessionCtx, protocol.MessageTypeError, err.Error())
		}
	}

	for _, root := range roots {
		exportPath := filepath.Join(root, opts.LocationsFile)
		triggers := watcher.Watch(s.sessionCtx, exportPath, opts.SynchronizeWait())
		s.tasks.Go(func() error {
			s.syncLoop(s.sessionCtx, triggers)
			return nil
		})
	}
}

// didSave republishes the saved document after the configured wait, giving
// the checker time to rewrite the export file.
func (s *Server) didSave(uri string) {
	opts := s.state.options()
	if !opts.UpdateOnSave {
		return
	}
	go func() {
		select {
		case <-s.sessionCtx.Done():
			return
		case <-time.After(opts.UpdateOnSaveWait()):
		}
		s.publishFor(s.sessionCtx, uri)
	}()
}

// StartBackgroundChecker spawns the checker subprocess and keeps it
// supervised until StopBackgroundChecker or session shutdown kills it. Only
// one checker instance runs at a time.
func (s *Server) StartBackgroundChecker(command string, args []string, workingDir string) error {
	s.supervisorMu.Lock()
	defer s.supervisorMu.Unlock()
	if s.supervisor != nil {
		return fmt.Errorf("checker %s is already running", command)
	}

	ctx, cancel := context.WithCancel(s.sessionCtx)
	supervisor, err := bacon.Start(ctx, command, args, workingDir, s.state.options().LogBacon)
	if err != nil {
		cancel()
		return err
	}
	s.supervisor = supervisor
	s.supervisorCancel = cancel
	s.tasks.Go(func() error {
		defer cancel()
		if err := supervisor.Wait(); err != nil {
			slog.Error("background checker failed", "err", err)
		}
		s.supervisorMu.Lock()
		s.supervisor = nil
		s.supervisorCancel = nil
		s.supervisorMu.Unlock()
		return nil
	})
	return nil
}

// StopBackgroundChecker kills the supervised checker, if any.
func (s *Server) StopBackgroundChecker() {
	s.supervisorMu.Lock()
	cancel := s.supervisorCancel
	s.supervisorMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// resolveRoots turns the reported workspace folders into effective roots,
// preferring the enclosing git root over each raw folder. With no folders
// it falls back to rootUri, rootPath and finally the working directory, in
// that order.
func (s *Server) resolveRoots(ctx context.Context, params *protocol.InitializeParams) []string {
	var dirs []string
	for _, folder := range params.WorkspaceFolders {
		dirs = append(dirs, protocol.URIToPath(folder.URI))
	}
	if len(dirs) == 0 && params.RootURI != "" {
		dirs = append(dirs, protocol.URIToPath(params.RootURI))
	}
	if len(dirs) == 0 && params.RootPath != "" {
		dirs = append(dirs, params.RootPath)
	}
	if len(dirs) == 0 {
		if cwd, err := os.Getwd(); err == nil {
			dirs = append(dirs, cwd)
		}
	}

	roots := make([]string, 0, len(dirs))
	seen := make(map[string]struct{})
	for _, dir := range dirs {
		root := diagnostics.EffectiveRoot(ctx, dir)
		if _, ok := seen[root]; ok {
			continue
		}
		seen[root] = struct{}{}
		roots = append(roots, root)
	}
	return roots
}

// buildBackend picks the diagnostics producer for this session.
func (s *Server) buildBackend(opts Options, roots []string) diagnostics.Backend {
	if opts.UseCargoBackend {
		buildDir := ""
		if len(roots) > 0 {
			buildDir = roots[0]
		}
		logStderr := os.Getenv("BACON_LS_LOG_CARGO") != "" && os.Getenv("BACON_LS_LOG_CARGO") != "off"
		return diagnostics.NewCargoBackend(opts.CargoCommandArguments, opts.CargoEnv, buildDir, logStderr)
	}
	return diagnostics.NewBaconBackend(opts.LocationsFile, roots)
}

func (s *Server) showMessage(ctx context.Context, messageType protocol.MessageType, message string) {
	conn := s.connection()
	if conn == nil {
		return
	}
	params := protocol.ShowMessageParams{Type: messageType, Message: message}
	if err := conn.Notify(ctx, "window/showMessage", params); err != nil {
		slog.Error("error sending window/showMessage", "err", err)
	}
}

func clientSupportsDiagnosticsData(capabilities protocol.ClientCapabilities) bool {
	return capabilities.TextDocument != nil &&
		capabilities.TextDocument.PublishDiagnostics != nil &&
		capabilities.TextDocument.PublishDiagnostics.DataSupport
}
