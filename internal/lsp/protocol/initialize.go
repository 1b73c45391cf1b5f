package protocol

import "encoding/json"

// InitializeParams represents the parameters for the 'initialize' request
type InitializeParams struct {
	RootPath              string             `json:"rootPath,omitempty"`
	RootURI               string             `json:"rootUri,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	InitializationOptions json.RawMessage    `json:"initializationOptions,omitempty"`
	WorkspaceFolders      []WorkspaceFolder  `json:"workspaceFolders,omitempty"`
}

// WorkspaceFolder represents a workspace folder
type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// ClientCapabilities carries the subset of client capabilities the server
// inspects during initialization.
type ClientCapabilities struct {
	TextDocument *TextDocumentClientCapabilities `json:"textDocument,omitempty"`
}

// TextDocumentClientCapabilities represents text document specific client
// capabilities.
type TextDocumentClientCapabilities struct {
	PublishDiagnostics *PublishDiagnosticsClientCapabilities `json:"publishDiagnostics,omitempty"`
}

// PublishDiagnosticsClientCapabilities describes what the client supports in
// textDocument/publishDiagnostics notifications. DataSupport is mandatory:
// without it the corrections payload never reaches the code action handler.
type PublishDiagnosticsClientCapabilities struct {
	RelatedInformation bool `json:"relatedInformation,omitempty"`
	VersionSupport     bool `json:"versionSupport,omitempty"`
	DataSupport        bool `json:"dataSupport,omitempty"`
}

// InitializeResult represents the result of the 'initialize' request
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ServerInfo        `json:"serverInfo,omitempty"`
}

// ServerCapabilities announces what this server can do
type ServerCapabilities struct {
	PositionEncoding   string                   `json:"positionEncoding,omitempty"`
	TextDocumentSync   *TextDocumentSyncOptions `json:"textDocumentSync,omitempty"`
	CodeActionProvider bool                     `json:"codeActionProvider,omitempty"`
}

// TextDocumentSyncOptions controls which document lifecycle notifications
// the client sends.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose,omitempty"`
	Change    TextDocumentSyncKind `json:"change,omitempty"`
	Save      bool                 `json:"save,omitempty"`
}

// TextDocumentSyncKind represents how text document changes are synchronized
type TextDocumentSyncKind int

const (
	// TextDocumentSyncNone means documents should not be synced at all
	TextDocumentSyncNone TextDocumentSyncKind = 0
	// TextDocumentSyncFull means documents are synced by sending the full content
	TextDocumentSyncFull TextDocumentSyncKind = 1
	// TextDocumentSyncIncremental means documents are synced by sending incremental updates
	TextDocumentSyncIncremental TextDocumentSyncKind = 2
)

// ServerInfo identifies the server in the initialize response
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}
