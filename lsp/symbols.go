// Copyright © 2024 The ELPS authors

package lsp

import (
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentDocumentSymbol handles the textDocument/documentSymbol
// request. Every macro defined in the document is a symbol.
func (s *Server) textDocumentDocumentSymbol(_ *glsp.Context, params *protocol.DocumentSymbolParams) (any, error) {
	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}

	doc.mu.Lock()
	lines := doc.lines()
	doc.mu.Unlock()

	var symbols []protocol.DocumentSymbol
	for i, line := range lines {
		if !s.registry.IsDirective(line, "define") {
			continue
		}
		def, err := preprocessor.ParseDefine(line)
		if err != nil {
			continue
		}
		m := &preprocessor.Macro{Name: def.Name, Params: def.Params}
		kind := protocol.SymbolKindConstant
		if m.Parameterized() {
			kind = protocol.SymbolKindFunction
		}
		r := lspRange(i+1, def.Col, len(def.Name))
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           def.Name,
			Detail:         strPtr(m.Signature()),
			Kind:           kind,
			Range:          r,
			SelectionRange: r,
		})
	}

	// Return as []DocumentSymbol (the preferred hierarchical form).
	return symbols, nil
}
