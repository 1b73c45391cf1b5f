package protocol

// DidOpenTextDocumentParams represents the parameters for a didOpen notification
type DidOpenTextDocumentParams struct {
	TextDocument struct {
		URI     string `json:"uri"`
		Text    string `json:"text"`
		Version int    `json:"version"`
	} `json:"textDocument"`
}

// DidSaveTextDocumentParams represents the parameters for a didSave notification
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidCloseTextDocumentParams represents the parameters for a didClose notification
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidChangeTextDocumentParams represents the parameters for a didChange notification
type DidChangeTextDocumentParams struct {
	TextDocument struct {
		URI     string `json:"uri"`
		Version int    `json:"version"`
	} `json:"textDocument"`
}

// RenameFilesParams represents the parameters for a workspace/didRenameFiles notification
type RenameFilesParams struct {
	Files []FileRename `json:"files"`
}

// FileRename represents a file rename operation
type FileRename struct {
	OldURI string `json:"oldUri"`
	NewURI string `json:"newUri"`
}

// DeleteFilesParams represents the parameters for a workspace/didDeleteFiles notification
type DeleteFilesParams struct {
	Files []FileDelete `json:"files"`
}

// FileDelete represents a file deletion operation
type FileDelete struct {
	URI string `json:"uri"`
}
