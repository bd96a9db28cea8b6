// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"slices"
	"strings"
)

// Origin records where a line came from. Lines keep their origin while
// they move through includes and expansion.
type Origin struct {
	File string
	Line int // 1-based
}

// Pos returns the position of column col on the origin line.
func (o Origin) Pos(col, n int) Pos {
	return Pos{File: o.File, Line: o.Line, Col: col, Len: n}
}

// Line is a single line of the buffer without its terminator.
type Line struct {
	Text   string
	Origin Origin
}

// Buffer is the ordered, zero-indexed sequence of lines being rewritten.
type Buffer struct {
	lines []Line
	gen   int
}

// NewBuffer splits src into lines attributed to file. A trailing newline
// does not produce an empty final line.
func NewBuffer(file, src string) *Buffer {
	return &Buffer{lines: SplitLines(file, src)}
}

// NewBufferLines returns a buffer holding a copy of lines.
func NewBufferLines(lines []Line) *Buffer {
	return &Buffer{lines: slices.Clone(lines)}
}

// SplitLines splits src into origin-tagged lines. Carriage returns before a
// newline are dropped.
func SplitLines(file, src string) []Line {
	if src == "" {
		return nil
	}
	src = strings.TrimSuffix(src, "\n")
	texts := strings.Split(src, "\n")
	lines := make([]Line, len(texts))
	for i, t := range texts {
		lines[i] = Line{
			Text:   strings.TrimSuffix(t, "\r"),
			Origin: Origin{File: file, Line: i + 1},
		}
	}
	return lines
}

// Len returns the number of lines.
func (b *Buffer) Len() int { return len(b.lines) }

// Line returns line i.
func (b *Buffer) Line(i int) Line { return b.lines[i] }

// Text returns the text of line i.
func (b *Buffer) Text(i int) string { return b.lines[i].Text }

// Lines returns a copy of every line.
func (b *Buffer) Lines() []Line { return slices.Clone(b.lines) }

// Slice returns a copy of lines [start, end).
func (b *Buffer) Slice(start, end int) []Line {
	return slices.Clone(b.lines[start:end])
}

// Set replaces the text of line i, keeping its origin.
func (b *Buffer) Set(i int, text string) {
	if b.lines[i].Text == text {
		return
	}
	b.lines[i].Text = text
	b.gen++
}

// Splice replaces lines [start, end) with repl. Like slices.Replace it
// panics when the range is out of bounds.
func (b *Buffer) Splice(start, end int, repl ...Line) {
	b.lines = slices.Replace(b.lines, start, end, repl...)
	b.gen++
}

// Generation changes every time the buffer is mutated.
func (b *Buffer) Generation() int { return b.gen }

// String joins the lines, terminating each with a newline.
func (b *Buffer) String() string {
	return JoinLines(b.lines)
}

// JoinLines renders lines as text, terminating each with a newline.
func JoinLines(lines []Line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(l.Text)
		sb.WriteByte('\n')
	}
	return sb.String()
}
