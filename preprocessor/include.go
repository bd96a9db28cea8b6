// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"errors"
	"io/fs"
	"slices"
	"strings"
	"unicode"
)

// reservedFilenameChars may not appear in an include target. Targets are
// flat names looked up in each include root.
const reservedFilenameChars = `<>:"/\|?*`

// includer flattens include directives by reading files from an ordered
// list of roots.
type includer struct {
	roots []fs.FS
}

// checkFilename returns why name is unusable as an include target, or "".
func checkFilename(name string) string {
	switch name {
	case "":
		return "empty name"
	case ".", "..":
		return "not a file"
	}
	if i := strings.IndexAny(name, reservedFilenameChars); i >= 0 {
		return "contains reserved character " + string(name[i])
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return "contains a control character"
	}
	return ""
}

// read returns the contents of name from the first root that has it. The
// file is closed before read returns.
func (inc *includer) read(name string) ([]byte, error) {
	for _, root := range inc.roots {
		data, err := fs.ReadFile(root, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// resolve returns the lines of name with every nested include replaced by
// the lines it names. chain holds the files currently being resolved,
// outermost first; at locates the directive naming the file.
func (inc *includer) resolve(ctx *Context, name string, at Pos, chain []string) ([]Line, error) {
	if why := checkFilename(name); why != "" {
		e := newError(KindInvalidFilename, at, "invalid include file name %q: %s", name, why)
		e.Filename = name
		return nil, e
	}
	if slices.Contains(chain, name) {
		e := newError(KindCyclicInclude, at, "cyclic include of %s", name)
		e.Filename = name
		e.Chain = append(slices.Clone(chain), name)
		return nil, e
	}
	data, err := inc.read(name)
	if err != nil {
		kind := KindIO
		if errors.Is(err, fs.ErrNotExist) {
			kind = KindFileNotFound
		}
		e := newError(kind, at, "cannot include %q", name)
		e.Filename = name
		e.Chain = slices.Clone(chain)
		e.Err = err
		return nil, e
	}
	src := string(data)
	ctx.Sources[name] = src
	ctx.Log.WithField("file", name).Debug("included file")

	chain = append(chain, name)
	lines := SplitLines(name, src)
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if !ctx.Registry.IsDirective(l.Text, includeDirective) {
			out = append(out, l)
			continue
		}
		sub, off, perr := parseInclude(l.Text)
		if perr != nil {
			perr.Pos.File, perr.Pos.Line = l.Origin.File, l.Origin.Line
			perr.Chain = slices.Clone(chain)
			return nil, perr
		}
		nested, err := inc.resolve(ctx, sub, l.Origin.Pos(off+1, len(sub)), chain)
		if err != nil {
			return nil, err
		}
		out = append(out, nested...)
	}
	return out, nil
}
