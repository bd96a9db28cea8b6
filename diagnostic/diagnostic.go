// Copyright © 2024 The ELPS authors

// Package diagnostic renders preprocessor errors and warnings as annotated
// source snippets. It does not depend on the preprocessor package so the
// linter and language server can share it.
package diagnostic

import (
	"fmt"
	"strings"
)

// Severity indicates the severity level of a diagnostic.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	default:
		return "unknown"
	}
}

// Span identifies a region of source code to highlight in the diagnostic.
type Span struct {
	File   string // key passed to the SourceReader; display name if unreadable
	Line   int    // 1-based line number
	Col    int    // 1-based start column
	EndCol int    // 1-based end column (0 = auto-detect from source)
	Label  string // text shown under the underline
}

// Diagnostic is a single error, warning, or note with optional source
// annotations and trailing notes.
type Diagnostic struct {
	Severity Severity
	Code     string // short kind name shown as error[code]
	Message  string
	Spans    []Span
	Notes    []string // "= note:" lines (inclusion chain, handler, ...)
}

// MapSource returns a SourceReader that serves file contents from memory.
// Rendering with it never touches the filesystem, so the output depends only
// on the diagnostic and the sources a run actually loaded.
func MapSource(sources map[string]string) func(string) ([]byte, error) {
	return func(name string) ([]byte, error) {
		s, ok := sources[name]
		if !ok {
			return nil, fmt.Errorf("no source for %s", name)
		}
		return []byte(s), nil
	}
}

// ParseColorMode converts the value of a --color flag.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	default:
		return ColorAuto, fmt.Errorf("invalid color mode %q (want auto, always or never)", s)
	}
}
