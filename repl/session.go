// Copyright © 2024 The ELPS authors

package repl

import (
	"context"
	"strings"

	"github.com/luthersystems/pyplus/preprocessor"
)

// InputName is the file name given to interactive input in diagnostics.
const InputName = "<stdin>"

// Session preprocesses successive inputs against one context, so macros
// defined by an input stay visible to the inputs that follow.
type Session struct {
	engine  *preprocessor.Engine
	ctx     *preprocessor.Context
	pending []string
	depth   int
	warned  int
}

// NewSession returns a session with a fresh context from e.
func NewSession(e *preprocessor.Engine) *Session {
	return &Session{
		engine: e,
		ctx:    e.NewContext(InputName),
	}
}

// Pending reports whether the session is collecting the body of an open
// block.
func (s *Session) Pending() bool {
	return len(s.pending) > 0
}

// Feed adds one line of input. While a block opened by an earlier line is
// still open Feed returns a nil result and a nil error. Otherwise the
// collected input is preprocessed and its result returned.
func (s *Session) Feed(ctx context.Context, line string) (*preprocessor.Result, error) {
	reg := s.engine.Registry()
	switch {
	case reg.OpensBlock(line):
		s.depth++
	case s.depth > 0 && reg.IsDirective(line, "end"):
		s.depth--
	}
	s.pending = append(s.pending, line)
	if s.depth > 0 {
		return nil, nil
	}
	src := strings.Join(s.pending, "\n") + "\n"
	s.pending = nil
	s.ctx.Sources[InputName] = src
	return s.engine.RunContext(ctx, s.ctx, preprocessor.NewBuffer(InputName, src))
}

// Reset discards any partially entered block.
func (s *Session) Reset() {
	s.pending = nil
	s.depth = 0
}

// Warnings returns the warnings recorded since the previous call.
func (s *Session) Warnings() []preprocessor.Warning {
	all := s.ctx.Warnings()
	if s.warned >= len(all) {
		return nil
	}
	w := all[s.warned:]
	s.warned = len(all)
	return w
}

// Macros returns the macros currently defined in the session.
func (s *Session) Macros() []*preprocessor.Macro {
	return s.ctx.Macros.Macros()
}

// Directives returns the names of the directives the session accepts.
func (s *Session) Directives() []string {
	return s.engine.Registry().Names()
}

// Sources returns the source text available for rendering diagnostics.
func (s *Session) Sources() map[string]string {
	return s.ctx.Sources
}
