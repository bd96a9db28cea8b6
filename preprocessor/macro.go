// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"slices"
	"strings"
)

// Macro is a named text substitution rule. A macro with non-nil Params is
// parameterized and only expands when invoked as NAME[args].
type Macro struct {
	Name   string
	Body   string
	Params []string
	Const  bool
	Origin Origin

	// Value, when set, computes the replacement for each occurrence instead
	// of Body. It receives the origin of the line being expanded.
	Value func(at Origin) string
}

// Parameterized reports whether m takes an argument list.
func (m *Macro) Parameterized() bool {
	return m.Params != nil
}

// Signature renders the macro header as it would be written in source.
func (m *Macro) Signature() string {
	if !m.Parameterized() {
		return m.Name
	}
	return m.Name + "(" + strings.Join(m.Params, ", ") + ")"
}

// MacroTable holds macros in definition order. Expansion applies them in
// that order, so text produced by one macro can be matched by a later one
// in the same traversal but never by an earlier one.
type MacroTable struct {
	macros []*Macro
}

// NewMacroTable returns a table holding ms in order.
func NewMacroTable(ms ...*Macro) *MacroTable {
	t := &MacroTable{}
	for _, m := range ms {
		t.Define(m)
	}
	return t
}

// Define appends m to the table. An existing macro with the same name is
// removed first and returned so the caller can report the redefinition.
func (t *MacroTable) Define(m *Macro) (old *Macro) {
	old = t.Undefine(m.Name)
	t.macros = append(t.macros, m)
	return old
}

// Undefine removes the macro called name and returns it, or nil.
func (t *MacroTable) Undefine(name string) *Macro {
	i := t.index(name)
	if i < 0 {
		return nil
	}
	m := t.macros[i]
	t.macros = slices.Delete(t.macros, i, i+1)
	return m
}

// Lookup returns the macro called name.
func (t *MacroTable) Lookup(name string) (*Macro, bool) {
	i := t.index(name)
	if i < 0 {
		return nil, false
	}
	return t.macros[i], true
}

// Macros returns the macros in table order.
func (t *MacroTable) Macros() []*Macro {
	return slices.Clone(t.macros)
}

// Len returns the number of defined macros.
func (t *MacroTable) Len() int {
	return len(t.macros)
}

func (t *MacroTable) index(name string) int {
	return slices.IndexFunc(t.macros, func(m *Macro) bool { return m.Name == name })
}

// Expand applies every macro to text once, in table order. at locates the
// line for dynamic macros and error positions; columns in errors refer to
// text as it stood when the failing macro was applied.
func (t *MacroTable) Expand(text string, at Origin) (string, error) {
	var err error
	for _, m := range t.macros {
		if !strings.Contains(text, m.Name) {
			continue
		}
		if m.Parameterized() {
			text, err = expandCall(m, text, at)
			if err != nil {
				return "", err
			}
			continue
		}
		text = expandPlain(m, text, at)
	}
	return text, nil
}

func (m *Macro) replacement(at Origin) string {
	if m.Value != nil {
		return m.Value(at)
	}
	return m.Body
}

func expandPlain(m *Macro, text string, at Origin) string {
	var b strings.Builder
	last := 0
	for _, sp := range identSpans(text) {
		if text[sp.start:sp.end] != m.Name {
			continue
		}
		b.WriteString(text[last:sp.start])
		b.WriteString(m.replacement(at))
		last = sp.end
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func expandCall(m *Macro, text string, at Origin) (string, error) {
	var b strings.Builder
	last := 0
	for _, sp := range identSpans(text) {
		if sp.start < last || text[sp.start:sp.end] != m.Name {
			continue
		}
		if sp.end >= len(text) || text[sp.end] != '[' {
			continue
		}
		args, end, ok := scanArgs(text, sp.end)
		if !ok {
			e := newError(KindDirectiveSyntax, at.Pos(sp.start+1, sp.end-sp.start),
				"unterminated argument list for macro %s", m.Name)
			e.Ident = m.Name
			return "", e
		}
		if len(args) != len(m.Params) {
			e := newError(KindArgumentMismatch, at.Pos(sp.start+1, end-sp.start),
				"macro %s expects %d arguments, got %d", m.Name, len(m.Params), len(args))
			e.Ident = m.Name
			return "", e
		}
		bind := make(map[string]string, len(args))
		for i, p := range m.Params {
			bind[p] = args[i]
		}
		b.WriteString(text[last:sp.start])
		b.WriteString(replaceIdents(m.replacement(at), bind))
		last = end
	}
	if last == 0 {
		return text, nil
	}
	b.WriteString(text[last:])
	return b.String(), nil
}
