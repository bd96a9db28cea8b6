// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"fmt"
	"strings"

	"github.com/luthersystems/pyplus/diagnostic"
)

// Kind classifies a preprocessing error.
type Kind int

const (
	KindUnknown Kind = iota
	KindDirectiveSyntax
	KindMissedEndOfBlock
	KindUnexpectedEnd
	KindArgumentMismatch
	KindInvalidFilename
	KindFileNotFound
	KindCyclicInclude
	KindInvalidHandlerCursor
	KindUnknownDirective
	KindNotRegistered
	KindExpansionLimit
	KindUserError
	KindHandler
	KindIO
)

var kindNames = []string{
	KindUnknown:              "unknown",
	KindDirectiveSyntax:      "directive-syntax",
	KindMissedEndOfBlock:     "missed-end-of-block",
	KindUnexpectedEnd:        "unexpected-end",
	KindArgumentMismatch:     "argument-mismatch",
	KindInvalidFilename:      "invalid-filename",
	KindFileNotFound:         "file-not-found",
	KindCyclicInclude:        "cyclic-include",
	KindInvalidHandlerCursor: "invalid-handler-cursor",
	KindUnknownDirective:     "unknown-directive",
	KindNotRegistered:        "not-registered",
	KindExpansionLimit:       "expansion-limit",
	KindUserError:            "user-error",
	KindHandler:              "handler-failure",
	KindIO:                   "io-error",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// IsIO reports whether errors of kind k stem from reading files rather
// than from the text being preprocessed.
func (k Kind) IsIO() bool {
	return k == KindFileNotFound || k == KindIO
}

// Sentinel errors for use with errors.Is. They match any *Error of the same
// kind.
var (
	ErrDirectiveSyntax      = &Error{Kind: KindDirectiveSyntax}
	ErrMissedEndOfBlock     = &Error{Kind: KindMissedEndOfBlock}
	ErrUnexpectedEnd        = &Error{Kind: KindUnexpectedEnd}
	ErrArgumentMismatch     = &Error{Kind: KindArgumentMismatch}
	ErrInvalidFilename      = &Error{Kind: KindInvalidFilename}
	ErrFileNotFound         = &Error{Kind: KindFileNotFound}
	ErrCyclicInclude        = &Error{Kind: KindCyclicInclude}
	ErrInvalidHandlerCursor = &Error{Kind: KindInvalidHandlerCursor}
	ErrUnknownDirective     = &Error{Kind: KindUnknownDirective}
	ErrNotRegistered        = &Error{Kind: KindNotRegistered}
	ErrExpansionLimit       = &Error{Kind: KindExpansionLimit}
	ErrUserError            = &Error{Kind: KindUserError}
)

// Pos is a position in a source file. Line and Col are 1-based; zero means
// unknown. Len is the width of the offending text, zero when unknown.
type Pos struct {
	File string
	Line int
	Col  int
	Len  int
}

func (p Pos) String() string {
	switch {
	case p.Line <= 0:
		return p.File
	case p.Col <= 0:
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
}

// Error is a fatal preprocessing diagnostic. Fields beyond Kind, Msg and Pos
// are set only for the kinds they apply to.
type Error struct {
	Kind     Kind
	Msg      string
	Pos      Pos
	Ident    string   // macro or directive name
	Filename string   // include target
	Handler  string   // directive whose handler failed
	Chain    []string // active inclusion chain, outermost first
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Pos.File != "" {
		b.WriteString(e.Pos.String())
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
	} else {
		b.WriteString(strings.ReplaceAll(e.Kind.String(), "-", " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Pos == (Pos{}) && t.Kind == e.Kind
}

// Diagnostic converts e for rendering against the loaded sources.
func (e *Error) Diagnostic() diagnostic.Diagnostic {
	d := diagnostic.Diagnostic{
		Severity: diagnostic.SeverityError,
		Code:     e.Kind.String(),
		Message:  e.Msg,
	}
	if d.Message == "" {
		d.Message = strings.ReplaceAll(e.Kind.String(), "-", " ")
	}
	if e.Err != nil {
		d.Message += ": " + e.Err.Error()
	}
	if e.Pos.File != "" {
		d.Spans = []diagnostic.Span{posSpan(e.Pos)}
	}
	if len(e.Chain) > 0 {
		d.Notes = append(d.Notes, "inclusion chain: "+strings.Join(e.Chain, " -> "))
	}
	if e.Handler != "" {
		d.Notes = append(d.Notes, "while handling "+e.Handler)
	}
	return d
}

func posSpan(p Pos) diagnostic.Span {
	s := diagnostic.Span{File: p.File, Line: p.Line, Col: p.Col}
	if p.Col > 0 && p.Len > 0 {
		s.EndCol = p.Col + p.Len - 1
	}
	return s
}

// WarningKind classifies a non-fatal diagnostic.
type WarningKind int

const (
	WarnRedefinition WarningKind = iota
	WarnUndefined
	WarnUser
)

func (k WarningKind) String() string {
	switch k {
	case WarnRedefinition:
		return "redefinition"
	case WarnUndefined:
		return "undefined"
	case WarnUser:
		return "user-warning"
	default:
		return "unknown"
	}
}

// Warning is a diagnostic that never interrupts a run.
type Warning struct {
	Kind  WarningKind
	Msg   string
	Pos   Pos
	Ident string

	// Related locates an earlier line the warning refers to, such as the
	// previous definition of a redefined macro. Zero when there is none.
	Related Pos
}

func (w Warning) String() string {
	if w.Pos.File == "" {
		return "warning: " + w.Msg
	}
	return w.Pos.String() + ": warning: " + w.Msg
}

// Diagnostic converts w for rendering.
func (w Warning) Diagnostic() diagnostic.Diagnostic {
	d := diagnostic.Diagnostic{
		Severity: diagnostic.SeverityWarning,
		Code:     w.Kind.String(),
		Message:  w.Msg,
	}
	if w.Pos.File != "" {
		d.Spans = []diagnostic.Span{posSpan(w.Pos)}
		if w.Related.File != "" {
			related := posSpan(w.Related)
			related.Label = "previous definition"
			d.Spans = append(d.Spans, related)
		}
	}
	return d
}

func newError(kind Kind, pos Pos, format string, v ...interface{}) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, v...)}
}
