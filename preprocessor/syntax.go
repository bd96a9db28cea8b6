// Copyright © 2024 The ELPS authors

package preprocessor

// Ident is an identifier token found outside string literals and
// comments.
type Ident struct {
	Name string
	Off  int // byte offset in the line
}

// Idents returns the identifier tokens of line that expansion would
// consider.
func Idents(line string) []Ident {
	spans := identSpans(line)
	out := make([]Ident, len(spans))
	for i, sp := range spans {
		out[i] = Ident{Name: line[sp.start:sp.end], Off: sp.start}
	}
	return out
}

// CallArgs splits the bracketed argument list opening at s[open]. It
// returns the arguments, the offset after the closing bracket and false
// when the list is not closed.
func CallArgs(s string, open int) ([]string, int, bool) {
	return scanArgs(s, open)
}

// Definition is a parsed define header.
type Definition struct {
	Name   string
	Col    int      // 1-based column of the name
	Params []string // nil for a plain macro
	Body   string   // empty for the block form
}

// Block reports whether the definition takes its body from the following
// lines.
func (d *Definition) Block() bool { return d.Body == "" }

// ParseDefine parses a define directive line.
func ParseDefine(line string) (*Definition, error) {
	h, err := parseDefine(line)
	if err != nil {
		return nil, err
	}
	return &Definition{Name: h.Name, Col: h.NameCol, Params: h.Params, Body: h.Body}, nil
}

// ParseInclude returns the target of an include directive line and its
// 1-based column.
func ParseInclude(line string) (string, int, error) {
	name, off, err := parseInclude(line)
	if err != nil {
		return "", 0, err
	}
	return name, off + 1, nil
}

// ParseUndef returns the macro named by an undef directive line and its
// 1-based column.
func ParseUndef(line string) (string, int, error) {
	name, off, err := parseUndef(line)
	if err != nil {
		return "", 0, err
	}
	return name, off + 1, nil
}

// ParseCount parses a repetition count.
func ParseCount(text string) (int, error) {
	n, err := parseCount(text)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CheckFilename returns an InvalidFilename error when name cannot be an
// include target.
func CheckFilename(name string) error {
	if why := checkFilename(name); why != "" {
		e := newError(KindInvalidFilename, Pos{}, "invalid include file name %q: %s", name, why)
		e.Filename = name
		return e
	}
	return nil
}
