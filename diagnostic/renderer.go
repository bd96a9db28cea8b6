// Copyright © 2024 The ELPS authors

package diagnostic

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// tabWidth is the number of columns a tab occupies in rendered snippets.
const tabWidth = 4

// Renderer formats diagnostics as annotated source snippets. The first span
// of a diagnostic is primary and underlined with ^; later spans point at
// related lines, such as the include directive that pulled a file in, and
// are underlined with -.
//
// A Renderer caches the files it reads and must not be shared between
// goroutines.
type Renderer struct {
	// Color controls ANSI color output. Default is ColorAuto.
	Color ColorMode

	// SourceReader reads source file contents. If nil, os.ReadFile is used
	// and pseudo files such as <stdin> are never read.
	SourceReader func(string) ([]byte, error)

	lines map[string][]string
}

// Render writes a single diagnostic to w.
func (r *Renderer) Render(w io.Writer, d Diagnostic) error {
	p := choosePalette(r.Color, fileFromWriter(w))
	bw := bufio.NewWriter(w)
	ew := &errWriter{w: bw}

	r.writeHeader(ew, d, p)

	gutter := gutterWidth(d.Spans)
	for i, span := range d.Spans {
		r.writeSpan(ew, span, gutter, i == 0, p)
	}
	pad := strings.Repeat(" ", gutter)
	for _, note := range d.Notes {
		ew.printf(" %s %s=%s note: %s\n", pad, p.boldCyan, p.reset, note)
	}

	if ew.err != nil {
		return ew.err
	}
	return bw.Flush()
}

// RenderAll writes all diagnostics to w separated by blank lines.
func (r *Renderer) RenderAll(w io.Writer, diags []Diagnostic) error {
	for i, d := range diags {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := r.Render(w, d); err != nil {
			return err
		}
	}
	return nil
}

// errWriter captures the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, a ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, a...)
}

func (r *Renderer) writeHeader(ew *errWriter, d Diagnostic, p palette) {
	sevColor := p.boldRed
	switch d.Severity {
	case SeverityWarning:
		sevColor = p.yellow
	case SeverityNote:
		sevColor = p.boldCyan
	}
	sevText := d.Severity.String()
	if d.Code != "" {
		sevText += "[" + d.Code + "]"
	}
	ew.printf("%s%s%s%s: %s%s%s\n", sevColor, p.bold, sevText, p.reset, p.bold, d.Message, p.reset)
}

// gutterWidth returns the width of the widest line number among spans so
// that the snippets of one diagnostic share a gutter.
func gutterWidth(spans []Span) int {
	w := 1
	for _, s := range spans {
		if n := len(strconv.Itoa(s.Line)); n > w {
			w = n
		}
	}
	return w
}

func (r *Renderer) writeSpan(ew *errWriter, span Span, gutter int, primary bool, p palette) {
	pad := strings.Repeat(" ", gutter)
	ew.printf("%s%s-->%s %s\n", pad, p.boldBlue, p.reset, spanLocation(span))

	source, ok := r.sourceLine(span.File, span.Line)
	if !ok {
		ew.printf("%s %s|%s\n", pad, p.boldBlue, p.reset)
		return
	}

	mark, markColor := "^", p.boldRed
	if !primary {
		mark, markColor = "-", p.boldBlue
	}

	col := span.Col
	if col <= 0 {
		col = 1
	}
	endCol := span.EndCol
	if endCol <= 0 {
		endCol = detectEndCol(source, col)
	}
	if endCol < col {
		endCol = col
	}
	prefix := ""
	if col-1 <= len(source) {
		prefix = source[:col-1]
	}

	ew.printf("%s %s|%s\n", pad, p.boldBlue, p.reset)
	ew.printf("%s%*d |%s  %s\n", p.boldBlue, gutter, span.Line, p.reset, expandTabs(source))
	ew.printf("%s %s|%s  %s%s%s%s", pad, p.boldBlue, p.reset,
		strings.Repeat(" ", displayWidth(prefix)), markColor, strings.Repeat(mark, endCol-col+1), p.reset)
	if span.Label != "" {
		ew.printf(" %s%s%s", markColor, span.Label, p.reset)
	}
	ew.printf("\n%s %s|%s\n", pad, p.boldBlue, p.reset)
}

func spanLocation(span Span) string {
	switch {
	case span.Line <= 0:
		return span.File
	case span.Col <= 0:
		return fmt.Sprintf("%s:%d", span.File, span.Line)
	default:
		return fmt.Sprintf("%s:%d:%d", span.File, span.Line, span.Col)
	}
}

// sourceLine returns line n of file. Files are read once per Renderer.
func (r *Renderer) sourceLine(file string, n int) (string, bool) {
	if n <= 0 || file == "" {
		return "", false
	}
	lines, ok := r.lines[file]
	if !ok {
		lines = r.readLines(file)
		if r.lines == nil {
			r.lines = make(map[string][]string)
		}
		r.lines[file] = lines
	}
	if n > len(lines) {
		return "", false
	}
	return lines[n-1], true
}

func (r *Renderer) readLines(file string) []string {
	reader := r.SourceReader
	if reader == nil {
		if strings.HasPrefix(file, "<") {
			return nil
		}
		reader = func(name string) ([]byte, error) {
			return os.ReadFile(name) //nolint:gosec // reads the user's own source files for display
		}
	}
	data, err := reader(file)
	if err != nil {
		return nil
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// detectEndCol returns the last column of the word starting at col. A
// directive sigil is kept with the name that follows it.
func detectEndCol(source string, col int) int {
	if col <= 0 || col > len(source) {
		return col
	}
	end := col - 1
	for end < len(source) {
		ch, size := utf8.DecodeRuneInString(source[end:])
		if !isTokenRune(ch) && !(ch == '@' && end == col-1) {
			break
		}
		end += size
	}
	if end == col-1 {
		return col
	}
	return end
}

func isTokenRune(ch rune) bool {
	return ch == '_' || ch == '.' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", strings.Repeat(" ", tabWidth))
}

// displayWidth returns the rendered width of s.
func displayWidth(s string) int {
	w := 0
	for _, ch := range s {
		if ch == '\t' {
			w += tabWidth
		} else {
			w++
		}
	}
	return w
}

// fileFromWriter returns the *os.File behind w, or nil.
func fileFromWriter(w io.Writer) *os.File {
	if f, ok := w.(*os.File); ok {
		return f
	}
	return nil
}
