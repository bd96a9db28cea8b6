// Copyright © 2024 The ELPS authors

// Package comments locates Python comments in source lines. String
// literals, including triple-quoted strings spanning several lines, are
// skipped so that a # inside a literal is never taken for a comment.
package comments

import (
	"regexp"
	"strings"
)

// Comment is a single # comment.
type Comment struct {
	Line int    // 1-based line number
	Col  int    // 1-based byte column of the #
	Raw  string // comment text including the #
	Own  bool   // nothing but whitespace precedes the comment
}

// Text returns the comment with the # and surrounding space removed.
func (c Comment) Text() string {
	return strings.TrimSpace(strings.TrimPrefix(c.Raw, "#"))
}

// Table holds the comments of a source in line order.
type Table struct {
	comments []Comment
	byLine   map[int]int
	inString map[int]bool // lines whose line break belongs to a string literal
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{byLine: make(map[int]int), inString: make(map[int]bool)}
}

// Add appends c. A line holds at most one comment; a later Add for the same
// line replaces the earlier comment.
func (t *Table) Add(c Comment) {
	if i, ok := t.byLine[c.Line]; ok {
		t.comments[i] = c
		return
	}
	t.byLine[c.Line] = len(t.comments)
	t.comments = append(t.comments, c)
}

// Len returns the number of comments.
func (t *Table) Len() int { return len(t.comments) }

// At returns the i-th comment.
func (t *Table) At(i int) Comment { return t.comments[i] }

// Comments returns the comments in line order.
func (t *Table) Comments() []Comment {
	out := make([]Comment, len(t.comments))
	copy(out, t.comments)
	return out
}

// OnLine returns the comment on the 1-based line, if any.
func (t *Table) OnLine(line int) (Comment, bool) {
	i, ok := t.byLine[line]
	if !ok {
		return Comment{}, false
	}
	return t.comments[i], true
}

// EndsInString reports whether the 1-based line ends inside a
// triple-quoted string, so that its trailing text is part of the literal.
func (t *Table) EndsInString(line int) bool {
	return t.inString[line]
}

// Scan builds the comment table of lines.
func Scan(lines []string) *Table {
	t := NewTable()
	var open string // closing quote of a triple-quoted string in progress
	for n, line := range lines {
		i := 0
		if open != "" {
			end := strings.Index(line, open)
			if end < 0 {
				t.inString[n+1] = true
				continue
			}
			i = end + len(open)
			open = ""
		}
		for i < len(line) {
			switch c := line[i]; c {
			case '#':
				t.Add(Comment{
					Line: n + 1,
					Col:  i + 1,
					Raw:  line[i:],
					Own:  strings.TrimSpace(line[:i]) == "",
				})
				i = len(line)
			case '"', '\'':
				q := string(c)
				if strings.HasPrefix(line[i:], q+q+q) {
					triple := q + q + q
					end := strings.Index(line[i+3:], triple)
					if end < 0 {
						open = triple
						i = len(line)
						continue
					}
					i += 3 + end + 3
					continue
				}
				i = skipQuoted(line, i)
			default:
				i++
			}
		}
		if open != "" {
			t.inString[n+1] = true
		}
	}
	return t
}

// skipQuoted returns the index after the single-quoted literal starting at
// i, or len(s) when it is not closed on this line.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return len(s)
}

var codingRegexp = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*[-\w.]+`)

// Significant reports whether c must survive comment stripping: an
// interpreter line on line 1 or an encoding declaration on line 1 or 2.
func (c Comment) Significant() bool {
	if !c.Own {
		return false
	}
	if c.Line == 1 && strings.HasPrefix(c.Raw, "#!") && c.Col == 1 {
		return true
	}
	return c.Line <= 2 && codingRegexp.MatchString(c.Raw)
}

// Strip removes comments from lines. Lines holding only a comment are
// dropped; code lines lose the comment and the space before it.
// Interpreter and encoding lines are kept.
func Strip(lines []string) []string {
	t := Scan(lines)
	if t.Len() == 0 {
		return lines
	}
	out := make([]string, 0, len(lines))
	for n, line := range lines {
		c, ok := t.OnLine(n + 1)
		switch {
		case !ok || c.Significant():
			out = append(out, line)
		case c.Own:
		default:
			out = append(out, strings.TrimRight(line[:c.Col-1], " \t"))
		}
	}
	return out
}
