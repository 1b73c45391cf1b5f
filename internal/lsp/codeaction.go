package lsp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/baconls/bacon-lsp/internal/diagnostics"
	"github.com/baconls/bacon-lsp/internal/lsp/protocol"
)

// codeActions builds one quickfix per correction carried in the data
// payload of the context diagnostics. The payload is opaque JSON attached
// by the diagnostics engine; only this handler interprets it.
func (s *Server) codeActions(params *protocol.CodeActionParams) []protocol.CodeAction {
	actions := []protocol.CodeAction{}
	for _, diagnostic := range params.Context.Diagnostics {
		if diagnostic.Source != diagnostics.Source || diagnostic.Data == nil {
			continue
		}
		raw, err := json.Marshal(diagnostic.Data)
		if err != nil {
			continue
		}
		for _, correction := range gjson.GetBytes(raw, "corrections").Array() {
			replacement := correction.String()
			actions = append(actions, protocol.CodeAction{
				Title:       quickfixTitle(replacement),
				Kind:        protocol.CodeActionQuickFix,
				Diagnostics: []protocol.Diagnostic{diagnostic},
				IsPreferred: true,
				Edit: &protocol.WorkspaceEdit{
					Changes: map[string][]protocol.TextEdit{
						params.TextDocument.URI: {{
							Range:   diagnostic.Range,
							NewText: replacement,
						}},
					},
				},
			})
		}
	}
	return actions
}

func quickfixTitle(replacement string) string {
	title := strings.TrimSpace(replacement)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx] + "…"
	}
	return fmt.Sprintf("Replace with: %s", title)
}
