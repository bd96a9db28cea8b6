// Copyright © 2024 The ELPS authors

package lint

import (
	"strings"

	"github.com/luthersystems/pyplus/preprocessor"
)

// Directive is a source line naming a registered directive.
type Directive struct {
	Line    int    // 1-based line number
	Col     int    // 1-based column of the directive token
	Name    string // normalized name, e.g. "@define"
	Text    string // the whole line
	Args    string // text after the directive token, trimmed
	ArgsCol int    // 1-based column of Args
}

func scanDirectives(lines []string, reg *preprocessor.Registry) []*Directive {
	var out []*Directive
	for i, line := range lines {
		name, ok := preprocessor.DirectiveName(line)
		if !ok {
			continue
		}
		if _, ok := reg.Lookup(name); !ok {
			continue
		}
		args, off := preprocessor.DirectiveArgs(line)
		out = append(out, &Directive{
			Line:    i + 1,
			Col:     len(line) - len(strings.TrimLeft(line, " \t")) + 1,
			Name:    name,
			Text:    line,
			Args:    args,
			ArgsCol: off + 1,
		})
	}
	return out
}

// Is reports whether d is the directive called name, with or without
// the sigil.
func (d *Directive) Is(name string) bool {
	return d.Name == preprocessor.NormalizeName(name)
}

// Use is an occurrence of an identifier that macro expansion would see.
type Use struct {
	Name string
	Line int
	Col  int

	// Call is set when the identifier is immediately followed by [.
	Call bool
	// Args are the call arguments; Closed is false when the list never
	// closes on the line.
	Args   []string
	Closed bool
}

// Uses returns the identifier occurrences of the file in order. Define
// headers contribute only their one-line body; undef and include lines
// contribute nothing.
func (p *Pass) Uses() []Use {
	directives := make(map[int]*Directive, len(p.Directives))
	for _, d := range p.Directives {
		directives[d.Line] = d
	}
	var out []Use
	for i, line := range p.Lines {
		text, base := line, 0
		if d, ok := directives[i+1]; ok {
			switch {
			case d.Is("define"):
				def, err := preprocessor.ParseDefine(line)
				if err != nil || def.Block() {
					continue
				}
				base = len(strings.TrimRight(line, " \t")) - len(def.Body)
				text = def.Body
			case d.Is("undef"), d.Is("include"):
				continue
			default:
				base = d.ArgsCol - 1
				text = d.Args
			}
		}
		for _, id := range preprocessor.Idents(text) {
			u := Use{Name: id.Name, Line: i + 1, Col: base + id.Off + 1}
			end := id.Off + len(id.Name)
			if end < len(text) && text[end] == '[' {
				u.Call = true
				u.Args, _, u.Closed = preprocessor.CallArgs(text, end)
			}
			out = append(out, u)
		}
	}
	return out
}

// Definition is a define directive together with its parsed header.
type Definition struct {
	*preprocessor.Definition
	Directive *Directive
}

// Definitions returns the well-formed define directives of the file.
func (p *Pass) Definitions() []Definition {
	var out []Definition
	for _, d := range p.Directives {
		if !d.Is("define") {
			continue
		}
		def, err := preprocessor.ParseDefine(d.Text)
		if err != nil {
			continue
		}
		out = append(out, Definition{Definition: def, Directive: d})
	}
	return out
}
