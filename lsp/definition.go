// Copyright © 2024 The ELPS authors

package lsp

import (
	"path"
	"strings"

	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentDefinition handles the textDocument/definition request.
func (s *Server) textDocumentDefinition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	s.ensureAnalysis(doc)

	doc.mu.Lock()
	defer doc.mu.Unlock()
	word := wordAtPosition(doc.Content, int(params.Position.Line), int(params.Position.Character))
	m := doc.lookupMacro(word)
	// Built-in macros have no navigable source.
	if m == nil || m.Origin.File == "" {
		return nil, nil
	}

	defURI := params.TextDocument.URI
	col := 0
	if m.Origin.File == documentFile(defURI) {
		lines := doc.lines()
		if m.Origin.Line <= len(lines) {
			col = nameColumn(lines[m.Origin.Line-1])
		}
	} else {
		defURI = pathToURI(path.Join(path.Dir(uriToPath(defURI)), m.Origin.File))
	}

	return protocol.Location{
		URI:   defURI,
		Range: lspRange(m.Origin.Line, col, len(m.Name)),
	}, nil
}

// nameColumn returns the 1-based column of the macro name on a define
// line, or 0.
func nameColumn(line string) int {
	def, err := preprocessor.ParseDefine(strings.TrimSuffix(line, "\r"))
	if err != nil {
		return 0
	}
	return def.Col
}
