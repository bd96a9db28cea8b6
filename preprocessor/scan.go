// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// span is a half-open byte range.
type span struct {
	start, end int
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

// IsIdent reports whether s is a single identifier token.
func IsIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 && !isIdentStart(r) || !isIdentRune(r) {
			return false
		}
	}
	return true
}

// identSpans returns the identifier tokens of s that lie outside string
// literals and comments. Numeric literals are skipped whole so the x in
// 0xFF is never reported.
func identSpans(s string) []span {
	var out []span
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '#':
			i = skipComment(s, i)
		case c == '"' || c == '\'':
			i = skipString(s, i)
		case c >= '0' && c <= '9':
			i = skipWord(s, i)
		default:
			r, size := utf8.DecodeRuneInString(s[i:])
			if !isIdentStart(r) {
				i += size
				continue
			}
			j := skipWord(s, i)
			out = append(out, span{i, j})
			i = j
		}
	}
	return out
}

func skipWord(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !isIdentRune(r) {
			break
		}
		i += size
	}
	return i
}

func skipComment(s string, i int) int {
	if n := strings.IndexByte(s[i:], '\n'); n >= 0 {
		return i + n
	}
	return len(s)
}

// skipString returns the index just past the string literal opening at i.
// Single-quoted literals stop at a newline; triple-quoted ones may span
// lines. An unterminated literal runs to the end of s.
func skipString(s string, i int) int {
	q := s[i]
	triple := strings.Repeat(string(q), 3)
	if strings.HasPrefix(s[i:], triple) {
		if n := strings.Index(s[i+3:], triple); n >= 0 {
			return i + 3 + n + 3
		}
		return len(s)
	}
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(s)
}

// scanArgs parses the bracketed argument list opening at s[open] == '['.
// Arguments are split on commas outside nested brackets and string
// literals, then trimmed. It returns the index just past the closing
// bracket, or ok == false if the list is unterminated.
func scanArgs(s string, open int) (args []string, end int, ok bool) {
	depth := 0
	start := open + 1
	for i := open + 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"', '\'':
			i = skipString(s, i) - 1
		case '(', '[', '{':
			depth++
		case ')', '}':
			depth--
		case ']':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				if len(args) == 1 && args[0] == "" {
					args = nil
				}
				return args, i + 1, true
			}
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return nil, len(s), false
}

// replaceIdents substitutes identifier tokens of s found in repl. All
// replacements are made in one left-to-right pass so a replacement is never
// itself rescanned.
func replaceIdents(s string, repl map[string]string) string {
	var b strings.Builder
	last := 0
	for _, sp := range identSpans(s) {
		v, ok := repl[s[sp.start:sp.end]]
		if !ok {
			continue
		}
		b.WriteString(s[last:sp.start])
		b.WriteString(v)
		last = sp.end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}
