// Copyright © 2024 The ELPS authors

package lsp

import (
	"errors"
	"strings"
	"time"

	"github.com/luthersystems/pyplus/lint"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const debounceDelay = 300 * time.Millisecond

// textDocumentDidOpen handles the textDocument/didOpen notification.
func (s *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.captureNotify(ctx)
	doc := s.docs.Open(
		params.TextDocument.URI,
		int32(params.TextDocument.Version),
		params.TextDocument.Text,
	)
	s.analyzeAndPublish(doc)
	return nil
}

// textDocumentDidChange handles the textDocument/didChange notification.
func (s *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.captureNotify(ctx)
	// With full sync, the last content change is the complete document.
	var content string
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			content = c.Text
		case protocol.TextDocumentContentChangeEvent:
			content = c.Text
		}
	}

	doc := s.docs.Change(
		params.TextDocument.URI,
		int32(params.TextDocument.Version),
		content,
	)

	// Debounce: delay analysis to avoid thrashing during rapid edits.
	s.debounceMu.Lock()
	if t, ok := s.debounce[doc.URI]; ok {
		t.Stop()
	}
	s.debounce[doc.URI] = time.AfterFunc(debounceDelay, func() {
		defer func() { _ = recover() }() // don't crash the server on analysis panic
		d := s.docs.Get(doc.URI)
		if d != nil {
			s.analyzeAndPublish(d)
		}
	})
	s.debounceMu.Unlock()
	return nil
}

// textDocumentDidSave handles the textDocument/didSave notification.
func (s *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.captureNotify(ctx)
	// Cancel any pending debounce and publish immediately.
	s.debounceMu.Lock()
	if t, ok := s.debounce[params.TextDocument.URI]; ok {
		t.Stop()
		delete(s.debounce, params.TextDocument.URI)
	}
	s.debounceMu.Unlock()

	// The saved file may be included by any open document.
	for _, doc := range s.docs.All() {
		doc.mu.Lock()
		doc.analyzed = false
		doc.mu.Unlock()
		s.analyzeAndPublish(doc)
	}
	return nil
}

// textDocumentDidClose handles the textDocument/didClose notification.
func (s *Server) textDocumentDidClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	// Cancel pending debounce.
	s.debounceMu.Lock()
	if t, ok := s.debounce[params.TextDocument.URI]; ok {
		t.Stop()
		delete(s.debounce, params.TextDocument.URI)
	}
	s.debounceMu.Unlock()

	// Clear diagnostics for the closed file.
	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})

	s.docs.Close(params.TextDocument.URI)
	return nil
}

// analyzeAndPublish preprocesses and lints a document and publishes the
// resulting diagnostics to the client.
func (s *Server) analyzeAndPublish(doc *Document) {
	s.ensureAnalysis(doc)

	// Snapshot document fields under the lock.
	doc.mu.Lock()
	content := doc.Content
	runErr := doc.runErr
	result := doc.result
	uri := doc.URI
	doc.mu.Unlock()

	file := documentFile(uri)
	diags := []protocol.Diagnostic{}
	if runErr != nil {
		diags = append(diags, convertRunError(runErr, file, content))
	}
	if result != nil {
		for _, w := range result.Warnings {
			if w.Pos.File != file {
				continue
			}
			diags = append(diags, convertWarning(w, uri))
		}
	}

	lintDiags, err := s.linter.LintFile([]byte(content), file)
	if err == nil {
		for _, d := range lintDiags {
			diags = append(diags, convertLintDiagnostic(d))
		}
	}

	s.sendNotification(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

// convertWarning converts a run warning located in the document at uri.
// A related line in the same document is attached as related information.
func convertWarning(w preprocessor.Warning, uri string) protocol.Diagnostic {
	d := protocol.Diagnostic{
		Range:    lspRange(w.Pos.Line, w.Pos.Col, w.Pos.Len),
		Severity: severity(protocol.DiagnosticSeverityWarning),
		Source:   strPtr("pyplus"),
		Code:     &protocol.IntegerOrString{Value: w.Kind.String()},
		Message:  w.Msg,
	}
	if w.Related.File == w.Pos.File && w.Related.Line > 0 {
		d.RelatedInformation = []protocol.DiagnosticRelatedInformation{{
			Location: protocol.Location{URI: uri, Range: lspRange(w.Related.Line, 1, 0)},
			Message:  "previous definition",
		}}
	}
	return d
}

// convertRunError locates a preprocessing error in the document. Errors
// raised inside an included file are reported on the include line that
// pulled the file in.
func convertRunError(err error, file, content string) protocol.Diagnostic {
	d := protocol.Diagnostic{
		Severity: severity(protocol.DiagnosticSeverityError),
		Source:   strPtr("pyplus"),
		Message:  err.Error(),
	}
	var pe *preprocessor.Error
	if !errors.As(err, &pe) {
		return d
	}
	d.Code = &protocol.IntegerOrString{Value: pe.Kind.String()}
	d.Message = pe.Msg
	if pe.Pos.File == file {
		d.Range = lspRange(pe.Pos.Line, pe.Pos.Col, max(pe.Pos.Len, 1))
		return d
	}
	d.Message = err.Error()
	target := pe.Pos.File
	if len(pe.Chain) > 1 {
		target = pe.Chain[1]
	}
	if line := includeLine(content, target); line > 0 {
		d.Range = lspRange(line, 1, len(preprocessor.Sigil+"include"))
	}
	return d
}

// includeLine returns the 1-based line of the first include of name, or 0.
func includeLine(content, name string) int {
	for i, line := range strings.Split(content, "\n") {
		if n, ok := preprocessor.DirectiveName(line); !ok || n != "@include" {
			continue
		}
		if target, _, err := preprocessor.ParseInclude(line); err == nil && target == name {
			return i + 1
		}
	}
	return 0
}

// convertLintDiagnostic converts a lint.Diagnostic to an LSP Diagnostic.
func convertLintDiagnostic(d lint.Diagnostic) protocol.Diagnostic {
	sev := mapLintSeverity(d.Severity)
	return protocol.Diagnostic{
		Range:    lspRange(d.Pos.Line, d.Pos.Col, d.Len),
		Severity: &sev,
		Source:   strPtr("pyplus-lint"),
		Code:     &protocol.IntegerOrString{Value: d.Analyzer},
		Message:  d.Message,
	}
}

// mapLintSeverity converts a lint.Severity to a protocol.DiagnosticSeverity.
func mapLintSeverity(sev lint.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case lint.SeverityError:
		return protocol.DiagnosticSeverityError
	case lint.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case lint.SeverityInfo:
		return protocol.DiagnosticSeverityInformation
	default:
		return protocol.DiagnosticSeverityWarning
	}
}

func severity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func strPtr(s string) *string {
	return &s
}
