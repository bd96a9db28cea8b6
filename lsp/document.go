// Copyright © 2024 The ELPS authors

package lsp

import (
	"context"
	"strings"
	"sync"

	"github.com/luthersystems/pyplus/preprocessor"
)

// Document represents an open text document tracked by the LSP server.
type Document struct {
	mu      sync.Mutex
	URI     string
	Version int32
	Content string

	analyzed bool
	macros   []*preprocessor.Macro
	result   *preprocessor.Result
	runErr   error
}

// analyze preprocesses the document and keeps the macros it defined, even
// when the run fails part way.
func (d *Document) analyze(e *preprocessor.Engine) {
	file := documentFile(d.URI)
	pctx := e.NewContext(file)
	pctx.Sources[file] = d.Content
	d.result, d.runErr = e.RunContext(context.Background(), pctx, preprocessor.NewBuffer(file, d.Content))
	d.macros = pctx.Macros.Macros()
	d.analyzed = true
}

// lookupMacro returns the macro called name. Callers hold d.mu.
func (d *Document) lookupMacro(name string) *preprocessor.Macro {
	for i := len(d.macros) - 1; i >= 0; i-- {
		if d.macros[i].Name == name {
			return d.macros[i]
		}
	}
	return nil
}

func (d *Document) lines() []string {
	return strings.Split(d.Content, "\n")
}

// DocumentStore manages open documents with thread-safe access.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewDocumentStore creates an empty document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*Document)}
}

// Open adds a document to the store.
func (s *DocumentStore) Open(uri string, version int32, content string) *Document {
	doc := &Document{
		URI:     uri,
		Version: version,
		Content: content,
	}
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

// Change updates a document's content (full sync).
func (s *DocumentStore) Change(uri string, version int32, content string) *Document {
	s.mu.Lock()
	doc, ok := s.docs[uri]
	if !ok {
		doc = &Document{URI: uri}
		s.docs[uri] = doc
	}
	s.mu.Unlock()

	doc.mu.Lock()
	doc.Version = version
	doc.Content = content
	// Clear cached results; they will be rebuilt on next request.
	doc.analyzed = false
	doc.mu.Unlock()
	return doc
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get retrieves a document by URI. Returns nil if not found.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

// All returns every open document.
func (s *DocumentStore) All() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	return out
}
