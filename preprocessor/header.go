// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"slices"
	"strconv"
	"strings"

	parsec "github.com/prataprc/goparsec"
)

// Directive headers are parsed with parsec combinators. Terminal parsers
// skip leading whitespace, so adjacency rules such as NAME( are checked
// against the scanner cursor.
var (
	directiveTok = parsec.Token(`@[\pL_][\pL\pN_]*`, "DIRECTIVE")
	identTok     = parsec.Token(`[\pL_][\pL\pN_]*`, "IDENT")
	countTok     = parsec.Token(`[+-]?[0-9]+`, "COUNT")
	paramList    = parsec.And(nil,
		parsec.Atom("(", "OPENP"),
		parsec.Kleene(nil, identTok, parsec.Atom(",", "COMMA")),
		parsec.Atom(")", "CLOSEP"),
	)
	filenameP = parsec.OrdChoice(nil,
		parsec.Token(`"[^"]*"`, "DQNAME"),
		parsec.Token(`'[^']*'`, "SQNAME"),
		parsec.Token(`\S+`, "BARENAME"),
	)
)

type defineHeader struct {
	Name    string
	NameCol int
	Params  []string // nil for a plain macro
	Body    string   // empty for the block form
}

// syntaxErr reports a malformed header at byte offset off of the line.
func syntaxErr(off, n int, format string, v ...interface{}) *Error {
	return newError(KindDirectiveSyntax, Pos{Col: off + 1, Len: n}, format, v...)
}

// scanDirective consumes the directive token of line.
func scanDirective(line string) (string, parsec.Scanner) {
	s := parsec.NewScanner([]byte(line))
	node, next := directiveTok(s)
	if node == nil {
		return "", s
	}
	return terminalValue(node), next
}

// DirectiveArgs returns the text following the directive token of line and
// its byte offset.
func DirectiveArgs(line string) (string, int) {
	_, s := scanDirective(line)
	_, s = s.SkipWS()
	off := s.GetCursor()
	return strings.TrimRight(line[off:], " \t"), off
}

func parseDefine(line string) (*defineHeader, *Error) {
	directive, s := scanDirective(line)
	node, next := identTok(s)
	if node == nil {
		_, s = s.SkipWS()
		return nil, syntaxErr(s.GetCursor(), 0, "expected macro name after %s", directive)
	}
	name := terminalValue(node)
	cur := next.GetCursor()
	h := &defineHeader{Name: name, NameCol: cur - len(name) + 1}
	if cur < len(line) && line[cur] == '(' {
		plist, after := paramList(next)
		if plist == nil {
			return nil, syntaxErr(cur, 0, "malformed parameter list for macro %s", name)
		}
		h.Params = make([]string, 0, 4)
		for _, t := range terminals(plist) {
			if t.Name != "IDENT" {
				continue
			}
			if slices.Contains(h.Params, t.Value) {
				return nil, syntaxErr(cur, after.GetCursor()-cur, "duplicate parameter %s in macro %s", t.Value, name)
			}
			h.Params = append(h.Params, t.Value)
		}
		cur = after.GetCursor()
	}
	if cur < len(line) && line[cur] != ' ' && line[cur] != '\t' {
		return nil, syntaxErr(cur, 1, "unexpected %q after macro name %s", line[cur], name)
	}
	h.Body = strings.TrimSpace(line[cur:])
	return h, nil
}

// parseInclude returns the file name of an include directive and its byte
// offset. Quotes around the name are removed.
func parseInclude(line string) (string, int, *Error) {
	directive, s := scanDirective(line)
	node, next := filenameP(s)
	if node == nil {
		_, s = s.SkipWS()
		return "", 0, syntaxErr(s.GetCursor(), 0, "expected file name after %s", directive)
	}
	t := firstTerminal(node)
	off := next.GetCursor() - len(t.Value)
	name := t.Value
	if t.Name == "DQNAME" || t.Name == "SQNAME" {
		name = name[1 : len(name)-1]
	}
	if _, rest := next.SkipWS(); !rest.Endof() {
		return "", 0, syntaxErr(rest.GetCursor(), 0, "unexpected text after file name in %s", directive)
	}
	return name, off, nil
}

// parseUndef returns the macro name of an undef directive.
func parseUndef(line string) (string, int, *Error) {
	directive, s := scanDirective(line)
	node, next := identTok(s)
	if node == nil {
		_, s = s.SkipWS()
		return "", 0, syntaxErr(s.GetCursor(), 0, "expected macro name after %s", directive)
	}
	name := terminalValue(node)
	if _, rest := next.SkipWS(); !rest.Endof() {
		return "", 0, syntaxErr(rest.GetCursor(), 0, "unexpected text after macro name in %s", directive)
	}
	return name, next.GetCursor() - len(name), nil
}

// parseCount parses a non-negative repetition count.
func parseCount(text string) (int, *Error) {
	s := parsec.NewScanner([]byte(text))
	node, next := countTok(s)
	if node == nil {
		return 0, syntaxErr(0, 0, "expected a repetition count, got %q", text)
	}
	if _, rest := next.SkipWS(); !rest.Endof() {
		return 0, syntaxErr(0, 0, "expected a repetition count, got %q", text)
	}
	n, err := strconv.Atoi(terminalValue(node))
	if err != nil || n < 0 {
		return 0, syntaxErr(0, 0, "repetition count must be a non-negative integer, got %q", text)
	}
	return n, nil
}

func terminalValue(node parsec.ParsecNode) string {
	if t := firstTerminal(node); t != nil {
		return t.Value
	}
	return ""
}

func firstTerminal(node parsec.ParsecNode) *parsec.Terminal {
	ts := terminals(node)
	if len(ts) == 0 {
		return nil
	}
	return ts[0]
}

// terminals flattens the node lists produced by combinators without a
// callback.
func terminals(node parsec.ParsecNode) []*parsec.Terminal {
	switch n := node.(type) {
	case *parsec.Terminal:
		return []*parsec.Terminal{n}
	case []parsec.ParsecNode:
		var ts []*parsec.Terminal
		for _, c := range n {
			ts = append(ts, terminals(c)...)
		}
		return ts
	}
	return nil
}
