// Copyright © 2024 The ELPS authors

package lsp

import (
	"sort"
	"strings"

	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentCompletion handles the textDocument/completion request.
func (s *Server) textDocumentCompletion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	s.ensureAnalysis(doc)

	doc.mu.Lock()
	defer doc.mu.Unlock()
	prefix := prefixAtPosition(doc.Content, int(params.Position.Line), int(params.Position.Character))

	var items []protocol.CompletionItem
	if strings.HasPrefix(prefix, preprocessor.Sigil) {
		items = s.directiveCompletions(prefix)
	} else {
		items = macroCompletions(doc, prefix)
	}
	return items, nil
}

// directiveCompletions returns registered directives starting with prefix.
func (s *Server) directiveCompletions(prefix string) []protocol.CompletionItem {
	kind := protocol.CompletionItemKindKeyword
	var items []protocol.CompletionItem
	for _, name := range s.registry.Names() {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		item := protocol.CompletionItem{Label: name, Kind: &kind}
		if doc := s.registry.Doc(name); doc != "" {
			item.Detail = strPtr(doc)
		}
		items = append(items, item)
	}
	return items
}

// macroCompletions returns the macros known after preprocessing the
// document whose names start with prefix. Callers hold doc.mu.
func macroCompletions(doc *Document, prefix string) []protocol.CompletionItem {
	seen := make(map[string]bool)
	var items []protocol.CompletionItem
	for i := len(doc.macros) - 1; i >= 0; i-- {
		m := doc.macros[i]
		if seen[m.Name] || !strings.HasPrefix(m.Name, prefix) {
			continue
		}
		seen[m.Name] = true
		kind := protocol.CompletionItemKindConstant
		if m.Parameterized() {
			kind = protocol.CompletionItemKindFunction
		}
		items = append(items, protocol.CompletionItem{
			Label:  m.Name,
			Kind:   &kind,
			Detail: strPtr(m.Signature()),
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}
