// Copyright © 2024 The ELPS authors

// Package lint provides static analysis for pyplus source files.
//
// The linter is modeled after go vet: each check is an independent Analyzer
// that receives the directive lines of a file and reports diagnostics. The
// framework handles scanning, running analyzers, collecting results, and
// formatting output. Sources are analyzed before preprocessing, so included
// files are not followed.
package lint

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/luthersystems/pyplus/comments"
	"github.com/luthersystems/pyplus/diagnostic"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/sirupsen/logrus"
)

// Severity indicates the severity level of a lint diagnostic.
type Severity int

const (
	severityUnset Severity = iota // unexported zero sentinel for default detection
	SeverityError
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalJSON serializes the severity as a JSON string.
// An unset severity (zero value) is marshaled as "warning".
func (s Severity) MarshalJSON() ([]byte, error) {
	if s == severityUnset {
		return json.Marshal("warning")
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON deserializes a severity from a JSON string.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "error":
		*s = SeverityError
	case "warning":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	default:
		return fmt.Errorf("unknown severity: %q", str)
	}
	return nil
}

// Analyzer defines a single lint check.
type Analyzer struct {
	// Name is a short identifier for this check (e.g. "block-balance").
	Name string

	// Doc is a human-readable description. The first line is a short summary.
	Doc string

	// Severity is the default severity for diagnostics from this analyzer.
	Severity Severity

	// Run executes the check. It should call pass.Report() for each finding.
	Run func(pass *Pass) error
}

// Pass provides context to a running analyzer.
type Pass struct {
	// Analyzer is the currently running check.
	Analyzer *Analyzer

	// Filename is the source file being analyzed.
	Filename string

	// Lines are the source lines without terminators.
	Lines []string

	// Directives are the lines naming a registered directive, in order.
	Directives []*Directive

	// Registry decides which lines are directives.
	Registry *preprocessor.Registry

	// Comments holds the comments of the file.
	Comments *comments.Table

	// diagnostics collects reported findings.
	diagnostics []Diagnostic
}

// Report records a diagnostic finding.
func (p *Pass) Report(d Diagnostic) {
	d.Analyzer = p.Analyzer.Name
	if d.Severity == severityUnset {
		d.Severity = p.Analyzer.Severity
	}
	p.diagnostics = append(p.diagnostics, d)
}

// ReportWithNotes records a diagnostic with additional hint text.
func (p *Pass) ReportWithNotes(d Diagnostic, notes ...string) {
	d.Notes = append(d.Notes, notes...)
	p.Report(d)
}

// Reportf is a convenience for reporting a diagnostic at a line and column.
func (p *Pass) Reportf(line, col int, format string, args ...interface{}) {
	p.Report(Diagnostic{
		Pos:     Position{File: p.Filename, Line: line, Col: col},
		Message: fmt.Sprintf(format, args...),
	})
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	// Pos is the source location of the problem.
	Pos Position `json:"pos"`

	// Len is the width of the offending text, zero when unknown.
	Len int `json:"len,omitempty"`

	// Message is a human-readable description of the problem.
	Message string `json:"message"`

	// Analyzer is the name of the check that found this problem.
	Analyzer string `json:"analyzer"`

	// Severity is the severity level of the diagnostic.
	Severity Severity `json:"severity"`

	// Notes are optional hint text lines for the user.
	Notes []string `json:"notes,omitempty"`
}

// Position identifies a location in source code.
type Position struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col,omitempty"`
}

// String returns the position in file:line format.
func (p Position) String() string {
	if p.Line == 0 {
		return p.File
	}
	if p.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// String returns the diagnostic in go vet style: file:line: message (analyzer)
// with optional note lines appended.
func (d Diagnostic) String() string {
	s := fmt.Sprintf("%s: %s (%s)", d.Pos, d.Message, d.Analyzer)
	for _, n := range d.Notes {
		s += "\n  = note: " + n
	}
	return s
}

// Diagnostic converts d for the renderer.
func (d Diagnostic) Diagnostic() diagnostic.Diagnostic {
	sev := diagnostic.SeverityWarning
	if d.Severity == SeverityError {
		sev = diagnostic.SeverityError
	}
	return diagnostic.Diagnostic{
		Severity: sev,
		Code:     d.Analyzer,
		Message:  d.Message,
		Spans: []diagnostic.Span{{
			File:   d.Pos.File,
			Line:   d.Pos.Line,
			Col:    d.Pos.Col,
			EndCol: endCol(d),
		}},
		Notes: d.Notes,
	}
}

func endCol(d Diagnostic) int {
	if d.Len == 0 || d.Pos.Col == 0 {
		return 0
	}
	return d.Pos.Col + d.Len - 1
}

// Linter runs a set of analyzers over source files.
type Linter struct {
	Analyzers []*Analyzer

	// Registry decides which lines are directives. Nil means every built-in
	// directive.
	Registry *preprocessor.Registry
}

// LintFile analyzes a single source file and returns all diagnostics.
func (l *Linter) LintFile(source []byte, filename string) ([]Diagnostic, error) {
	reg := l.Registry
	if reg == nil {
		log := logrus.New()
		log.SetOutput(io.Discard)
		reg = preprocessor.DefaultRegistry(log)
	}
	lines := splitLines(string(source))
	table := comments.Scan(lines)
	directives := scanDirectives(lines, reg)

	var all []Diagnostic
	for _, analyzer := range l.Analyzers {
		pass := &Pass{
			Analyzer:   analyzer,
			Filename:   filename,
			Lines:      lines,
			Directives: directives,
			Registry:   reg,
			Comments:   table,
		}
		if err := analyzer.Run(pass); err != nil {
			return nil, fmt.Errorf("%s: analyzer %s: %w", filename, analyzer.Name, err)
		}
		// Set file on diagnostics that don't have one
		for i := range pass.diagnostics {
			if pass.diagnostics[i].Pos.File == "" {
				pass.diagnostics[i].Pos.File = filename
			}
		}
		all = append(all, pass.diagnostics...)
	}

	// Filter suppressed diagnostics (# nolint comments)
	all = filterSuppressed(all, table)

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Pos.File != all[j].Pos.File {
			return all[i].Pos.File < all[j].Pos.File
		}
		if all[i].Pos.Line != all[j].Pos.Line {
			return all[i].Pos.Line < all[j].Pos.Line
		}
		return all[i].Pos.Col < all[j].Pos.Col
	})

	return all, nil
}

func splitLines(src string) []string {
	if src == "" {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(src, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

// filterSuppressed removes diagnostics on lines with # nolint comments.
func filterSuppressed(diags []Diagnostic, table *comments.Table) []Diagnostic {
	var filtered []Diagnostic
	for _, d := range diags {
		c, ok := table.OnLine(d.Pos.Line)
		if !ok {
			filtered = append(filtered, d)
			continue
		}
		names, isNolint := nolint(c.Text())
		if !isNolint {
			filtered = append(filtered, d)
			continue
		}
		// No names = suppress all
		if len(names) == 0 {
			continue
		}
		suppressed := false
		for _, name := range names {
			if name == d.Analyzer {
				suppressed = true
				break
			}
		}
		if !suppressed {
			filtered = append(filtered, d)
		}
	}
	return filtered
}

// nolint parses "nolint" or "nolint:a,b".
func nolint(text string) ([]string, bool) {
	if !strings.HasPrefix(text, "nolint") {
		return nil, false
	}
	rest := strings.TrimPrefix(text, "nolint")
	if rest == "" || rest[0] == ' ' {
		return nil, true
	}
	if rest[0] != ':' {
		return nil, false
	}
	fields := strings.Fields(rest[1:])
	if len(fields) == 0 {
		return nil, true
	}
	var names []string
	for _, name := range strings.Split(fields[0], ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names, true
}

// FormatText writes diagnostics in go vet text format.
func FormatText(w io.Writer, diags []Diagnostic) {
	for _, d := range diags {
		fmt.Fprintln(w, d.String()) //nolint:errcheck // best-effort output to writer
	}
}

// FormatJSON writes diagnostics as JSON.
func FormatJSON(w io.Writer, diags []Diagnostic) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(diags)
}

// DefaultAnalyzers returns the built-in set of lint checks.
func DefaultAnalyzers() []*Analyzer {
	return []*Analyzer{
		AnalyzerBlockBalance,
		AnalyzerDefineSyntax,
		AnalyzerRedefine,
		AnalyzerUnusedMacro,
		AnalyzerMacroArity,
		AnalyzerIncludeName,
		AnalyzerRepeatCount,
		AnalyzerUnknownDirective,
	}
}

// AnalyzerByName returns the default analyzer called name, or nil.
func AnalyzerByName(name string) *Analyzer {
	for _, a := range DefaultAnalyzers() {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// AnalyzerNames returns the sorted names of the default analyzers.
func AnalyzerNames() []string {
	analyzers := DefaultAnalyzers()
	names := make([]string, len(analyzers))
	for i, a := range analyzers {
		names[i] = a.Name
	}
	sort.Strings(names)
	return names
}

// AnalyzerDoc returns a formatted documentation string for all analyzers.
func AnalyzerDoc() string {
	var b strings.Builder
	for _, a := range DefaultAnalyzers() {
		fmt.Fprintf(&b, "  %s\n", a.Name)
		lines := strings.Split(a.Doc, "\n")
		fmt.Fprintf(&b, "    %s\n\n", lines[0])
	}
	return b.String()
}
