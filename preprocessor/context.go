// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"fmt"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
)

// State is the engine's position in a run.
type State int

const (
	StateInit State = iota
	StatePreprocessing
	StateWaitingEndOfBlock
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePreprocessing:
		return "preprocessing"
	case StateWaitingEndOfBlock:
		return "waiting-end-of-block"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Context is the per-run state handed to every handler. File, Line and Col
// locate the directive being handled for diagnostics; they are not the
// dispatch cursor.
type Context struct {
	File  string
	Line  int
	Col   int
	State State

	Macros   *MacroTable
	Registry *Registry
	Log      logrus.FieldLogger

	// Sources holds the text of every file loaded during the run, keyed by
	// the name recorded in line origins.
	Sources map[string]string

	includer *includer
	rand     *rand.Rand
	warnings []Warning
}

// Pos returns the diagnostic position of the current directive.
func (c *Context) Pos() Pos {
	return Pos{File: c.File, Line: c.Line, Col: c.Col}
}

// Errorf returns an error of the given kind located at the current
// directive.
func (c *Context) Errorf(kind Kind, format string, v ...interface{}) *Error {
	return newError(kind, c.Pos(), format, v...)
}

// Warn records a warning at the current directive and logs it.
func (c *Context) Warn(kind WarningKind, ident string, format string, v ...interface{}) {
	c.warn(Warning{
		Kind:  kind,
		Msg:   fmt.Sprintf(format, v...),
		Pos:   c.Pos(),
		Ident: ident,
	})
}

func (c *Context) warn(w Warning) {
	c.warnings = append(c.warnings, w)
	c.Log.WithFields(logrus.Fields{
		"file": w.Pos.File,
		"line": w.Pos.Line,
	}).Warn(w.Msg)
}

// Warnings returns the warnings recorded so far.
func (c *Context) Warnings() []Warning {
	return append([]Warning(nil), c.warnings...)
}

// Define adds m to the macro table, warning when it replaces a macro.
func (c *Context) Define(m *Macro) {
	old := c.Macros.Define(m)
	switch {
	case old == nil:
	case old.Const:
		c.Warn(WarnRedefinition, m.Name, "redefinition of constant macro %s", m.Name)
	default:
		c.warn(Warning{
			Kind:    WarnRedefinition,
			Msg:     fmt.Sprintf("macro %s redefined (previous definition at %s:%d)", m.Name, old.Origin.File, old.Origin.Line),
			Pos:     c.Pos(),
			Ident:   m.Name,
			Related: Pos{File: old.Origin.File, Line: old.Origin.Line},
		})
	}
}

// Rand returns the run's random source.
func (c *Context) Rand() *rand.Rand {
	return c.rand
}

// FindEnd returns the index of the @end closing the block opened on line
// start. Nested blocks are skipped by counting the lines whose handlers
// open a block.
func (c *Context) FindEnd(buf *Buffer, start int) (int, error) {
	depth := 1
	for i := start + 1; i < buf.Len(); i++ {
		text := buf.Text(i)
		switch {
		case c.Registry.IsDirective(text, endDirective):
			depth--
			if depth == 0 {
				return i, nil
			}
		case c.Registry.OpensBlock(text):
			depth++
		}
	}
	name, _ := DirectiveName(buf.Text(start))
	e := c.Errorf(KindMissedEndOfBlock, "%s block is never closed by %s", name, endDirective)
	e.Ident = name
	return 0, e
}

// block locates the block opened on line start and returns its body.
// The state reads WaitingEndOfBlock while the terminator is searched for.
func (c *Context) block(buf *Buffer, start int) (body []Line, end int, err error) {
	c.State = StateWaitingEndOfBlock
	end, err = c.FindEnd(buf, start)
	if err != nil {
		return nil, 0, err
	}
	c.State = StatePreprocessing
	return buf.Slice(start+1, end), end, nil
}
