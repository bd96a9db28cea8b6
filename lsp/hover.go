// Copyright © 2024 The ELPS authors

package lsp

import (
	"fmt"
	"strings"

	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentHover handles the textDocument/hover request.
func (s *Server) textDocumentHover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.docs.Get(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	s.ensureAnalysis(doc)

	doc.mu.Lock()
	defer doc.mu.Unlock()
	word := wordAtPosition(doc.Content, int(params.Position.Line), int(params.Position.Character))
	if word == "" {
		return nil, nil
	}

	var content string
	if strings.HasPrefix(word, preprocessor.Sigil) {
		content = s.directiveHover(word)
	} else if m := doc.lookupMacro(word); m != nil {
		content = buildHoverContent(m)
	}
	if content == "" {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: content,
		},
	}, nil
}

func (s *Server) directiveHover(name string) string {
	if _, ok := s.registry.Lookup(name); !ok {
		return ""
	}
	content := fmt.Sprintf("**directive** `%s`", name)
	if doc := s.registry.Doc(name); doc != "" {
		content += "\n\n" + doc
	}
	return content
}

// buildHoverContent builds Markdown hover text for a macro.
func buildHoverContent(m *preprocessor.Macro) string {
	var sb strings.Builder

	kindLabel := "macro"
	if m.Origin.File == "" {
		kindLabel = "built-in macro"
	}
	fmt.Fprintf(&sb, "**%s** `%s`", kindLabel, m.Signature())

	switch {
	case m.Value != nil:
		sb.WriteString("\n\nValue computed at each use.")
	case m.Body != "":
		fmt.Fprintf(&sb, "\n\n```python\n%s\n```", m.Body)
	}

	if m.Origin.File != "" {
		fmt.Fprintf(&sb, "\n\n*Defined in %s:%d*", m.Origin.File, m.Origin.Line)
	}

	return sb.String()
}
