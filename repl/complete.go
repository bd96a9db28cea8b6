// Copyright © 2018 The ELPS authors

package repl

import (
	"sort"
	"strings"
	"unicode"

	"github.com/luthersystems/pyplus/preprocessor"
)

// symbolCompleter implements readline.AutoCompleter by enumerating the
// directives and macros known to a session.
type symbolCompleter struct {
	session *Session
}

func (c *symbolCompleter) Do(line []rune, pos int) ([][]rune, int) {
	// Extract the word being typed (backwards from cursor to a non-identifier rune).
	start := pos
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	if start > 0 && line[start-1] == '@' {
		start--
	}
	prefix := string(line[start:pos])
	if prefix == "" {
		return nil, 0
	}

	candidates := c.collectSymbols(prefix)
	if len(candidates) == 0 {
		return nil, 0
	}

	// Build completions: each entry is the suffix to append.
	result := make([][]rune, 0, len(candidates))
	for _, sym := range candidates {
		suffix := sym[len(prefix):]
		result = append(result, []rune(suffix))
	}
	return result, len([]rune(prefix))
}

func (c *symbolCompleter) collectSymbols(prefix string) []string {
	var result []string

	// Directives only complete at the sigil.
	if strings.HasPrefix(prefix, preprocessor.Sigil) {
		for _, name := range c.session.Directives() {
			if strings.HasPrefix(name, prefix) {
				result = append(result, name)
			}
		}
		return result
	}

	seen := make(map[string]bool)
	for _, m := range c.session.Macros() {
		if strings.HasPrefix(m.Name, prefix) && !seen[m.Name] {
			seen[m.Name] = true
			result = append(result, m.Name)
		}
	}

	sort.Strings(result)
	return result
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
