// Copyright © 2024 The ELPS authors

// Package lsp implements a Language Server Protocol server for pyplus
// sources. It provides diagnostics, hover, go-to-definition, completion
// and document symbols.
package lsp

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/luthersystems/pyplus/buildvars"
	"github.com/luthersystems/pyplus/lint"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/sirupsen/logrus"
	"github.com/tliron/glsp"
	glspserver "github.com/tliron/glsp/server"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const serverName = "pyplus-lsp"

// Server is the pyplus language server. Every analysis preprocesses the
// document with a fresh engine, so @include resolves against the files on
// disk: first the document's directory, then the workspace root, then the
// directories given to WithIncludeDirs.
type Server struct {
	handler  protocol.Handler
	glspSrv  *glspserver.Server
	docs     *DocumentStore
	rootURI  string
	rootPath string

	log         logrus.FieldLogger
	registry    *preprocessor.Registry
	includeDirs []string
	engineOpts  []preprocessor.Option
	linter      *lint.Linter

	// pending didChange analyses by URI
	debounceMu sync.Mutex
	debounce   map[string]*time.Timer

	// notify is captured from the latest request for publishing
	// diagnostics outside a request.
	notifyMu sync.Mutex
	notify   glsp.NotifyFunc

	// exitFn handles the exit notification. Tests replace os.Exit.
	exitFn func(int)
}

// Option configures the LSP server.
type Option func(*Server)

// WithLogger sets the logger for preprocessing runs.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithRegistry sets the directives known to the server.
func WithRegistry(r *preprocessor.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithIncludeDirs adds directories searched by @include after the
// document's directory and the workspace root.
func WithIncludeDirs(dirs ...string) Option {
	return func(s *Server) { s.includeDirs = append(s.includeDirs, dirs...) }
}

// WithEngineOptions appends options to every engine the server builds.
// They apply after the server's defaults, so WithIncludeFS replaces the
// document's directory as include root.
func WithEngineOptions(opts ...preprocessor.Option) Option {
	return func(s *Server) { s.engineOpts = append(s.engineOpts, opts...) }
}

// New creates a new pyplus LSP server.
func New(opts ...Option) *Server {
	s := &Server{
		docs:     NewDocumentStore(),
		debounce: make(map[string]*time.Timer),
		exitFn:   os.Exit,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		log := logrus.New()
		log.SetOutput(io.Discard)
		s.log = log
	}
	if s.registry == nil {
		s.registry = preprocessor.DefaultRegistry(s.log)
	}
	s.linter = &lint.Linter{Analyzers: lint.DefaultAnalyzers(), Registry: s.registry}

	s.handler = protocol.Handler{
		Initialize: s.initialize,
		Shutdown:   s.shutdown,
		Exit:       s.exit,
		SetTrace:   s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidSave:   s.textDocumentDidSave,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentHover:          s.textDocumentHover,
		TextDocumentDefinition:     s.textDocumentDefinition,
		TextDocumentCompletion:     s.textDocumentCompletion,
		TextDocumentDocumentSymbol: s.textDocumentDocumentSymbol,
	}

	s.glspSrv = glspserver.NewServer(&s.handler, serverName, false)
	return s
}

// RunStdio starts the server using stdio transport.
func (s *Server) RunStdio() error {
	return s.glspSrv.RunStdio()
}

// RunTCP starts the server listening on the given address.
func (s *Server) RunTCP(addr string) error {
	return s.glspSrv.RunTCP(addr)
}

// initialize handles the LSP initialize request.
func (s *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	s.captureNotify(ctx)

	if params.RootURI != nil {
		s.rootURI = *params.RootURI
		s.rootPath = uriToPath(s.rootURI)
	} else if params.RootPath != nil {
		s.rootPath = *params.RootPath
		s.rootURI = pathToURI(s.rootPath)
	}

	capabilities := s.handler.CreateServerCapabilities()

	// Override text document sync to full.
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: boolPtr(false)},
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{preprocessor.Sigil},
	}

	version := buildvars.Version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    serverName,
			Version: &version,
		},
	}, nil
}

// shutdown handles the LSP shutdown request.
func (s *Server) shutdown(ctx *glsp.Context) error {
	// Cancel any pending debounce timers.
	s.debounceMu.Lock()
	for _, t := range s.debounce {
		t.Stop()
	}
	s.debounce = make(map[string]*time.Timer)
	s.debounceMu.Unlock()

	return nil
}

// exit handles the LSP exit notification by terminating the process.
func (s *Server) exit(_ *glsp.Context) error {
	s.exitFn(0)
	return nil
}

// setTrace handles the $/setTrace notification (required by some clients).
func (s *Server) setTrace(_ *glsp.Context, _ *protocol.SetTraceParams) error {
	return nil
}

// ensureAnalysis ensures the document has a current preprocessing result.
func (s *Server) ensureAnalysis(doc *Document) {
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.analyzed {
		return
	}
	doc.analyze(s.engine(doc.URI))
}

// engine returns an engine for analyzing the document at uri.
func (s *Server) engine(uri string) *preprocessor.Engine {
	opts := []preprocessor.Option{
		preprocessor.WithLogger(s.log),
		preprocessor.WithRegistry(s.registry),
	}
	if roots := s.includeRoots(uri); len(roots) > 0 {
		opts = append(opts, preprocessor.WithIncludeFS(roots...))
	}
	return preprocessor.New(append(opts, s.engineOpts...)...)
}

// includeRoots returns the include search path for the document at uri.
func (s *Server) includeRoots(uri string) []fs.FS {
	var dirs []string
	if dir := documentDir(uri); dir != "" {
		dirs = append(dirs, dir)
	}
	if s.rootPath != "" {
		dirs = append(dirs, s.rootPath)
	}
	dirs = append(dirs, s.includeDirs...)

	seen := make(map[string]bool)
	var roots []fs.FS
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		roots = append(roots, os.DirFS(dir))
	}
	return roots
}

// captureNotify stores the notification function from the context for
// async use (e.g., publishing diagnostics after a debounce).
func (s *Server) captureNotify(ctx *glsp.Context) {
	s.notifyMu.Lock()
	s.notify = ctx.Notify
	s.notifyMu.Unlock()
}

// sendNotification sends a notification to the client.
func (s *Server) sendNotification(method string, params any) {
	s.notifyMu.Lock()
	fn := s.notify
	s.notifyMu.Unlock()
	if fn != nil {
		fn(method, params)
	}
}

func boolPtr(b bool) *bool {
	return &b
}
