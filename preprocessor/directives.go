// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"path"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

// Built-in directive names.
const (
	defineDirective    = "@define"
	undefDirective     = "@undef"
	endDirective       = "@end"
	includeDirective   = "@include"
	repeatDirective    = "@repeat"
	invisibleDirective = "@invisible"
	mirrorDirective    = "@mirror"
	randomDirective    = "@random"
	debugDirective     = "@debug"
	infoDirective      = "@info"
	warningDirective   = "@warning"
	errorDirective     = "@error"
)

// directive is the Handler behind every built-in.
type directive struct {
	doc   string
	opens func(line string) bool
	run   HandlerFunc
}

func (d *directive) Handle(buf *Buffer, index int, ctx *Context) (int, error) {
	return d.run(buf, index, ctx)
}

func (d *directive) OpensBlock(line string) bool {
	return d.opens != nil && d.opens(line)
}

func (d *directive) Doc() string {
	return d.doc
}

func always(string) bool { return true }

// CoreDirectives returns the handlers for define, undef, end and include.
func CoreDirectives() map[string]Handler {
	return map[string]Handler{
		defineDirective: &directive{
			doc:   "define a plain or parameterized macro, on one line or as a block",
			opens: defineOpensBlock,
			run:   handleDefine,
		},
		undefDirective: &directive{
			doc: "remove a macro",
			run: handleUndef,
		},
		endDirective: &directive{
			doc: "close the innermost open block",
			run: handleEnd,
		},
		includeDirective: &directive{
			doc: "splice in the contents of another file",
			run: handleInclude,
		},
	}
}

// BlockDirectives returns the handlers for repeat, invisible, mirror and
// random.
func BlockDirectives() map[string]Handler {
	return map[string]Handler{
		repeatDirective: &directive{
			doc:   "emit the block body N times",
			opens: always,
			run:   handleRepeat,
		},
		invisibleDirective: &directive{
			doc:   "drop the block body",
			opens: always,
			run:   blockHandler(func([]Line, *Context) []Line { return nil }),
		},
		mirrorDirective: &directive{
			doc:   "emit the block body with its lines in reverse order",
			opens: always,
			run: blockHandler(func(body []Line, _ *Context) []Line {
				slices.Reverse(body)
				return body
			}),
		},
		randomDirective: &directive{
			doc:   "keep one randomly chosen line of the block body",
			opens: always,
			run: blockHandler(func(body []Line, ctx *Context) []Line {
				if len(body) == 0 {
					return nil
				}
				k := ctx.Rand().IntN(len(body))
				return body[k : k+1]
			}),
		},
	}
}

// DiagnosticDirectives returns the handlers for debug, info, warning and
// error.
func DiagnosticDirectives() map[string]Handler {
	return map[string]Handler{
		debugDirective:   &directive{doc: "log a message at debug level", run: logHandler(logrus.DebugLevel)},
		infoDirective:    &directive{doc: "log a message at info level", run: logHandler(logrus.InfoLevel)},
		warningDirective: &directive{doc: "record a warning", run: logHandler(logrus.WarnLevel)},
		errorDirective:   &directive{doc: "fail preprocessing with a message", run: handleError},
	}
}

// RegisterAll registers every handler of ds with r.
func RegisterAll(r *Registry, ds map[string]Handler, overwrite bool) {
	for name, h := range ds {
		r.Register(name, h, overwrite)
	}
}

// DefaultRegistry returns a registry holding every built-in directive.
func DefaultRegistry(log logrus.FieldLogger) *Registry {
	r := NewRegistry(log)
	RegisterAll(r, CoreDirectives(), false)
	RegisterAll(r, BlockDirectives(), false)
	RegisterAll(r, DiagnosticDirectives(), false)
	return r
}

func defineOpensBlock(line string) bool {
	h, err := parseDefine(line)
	return err == nil && h.Body == ""
}

func handleDefine(buf *Buffer, i int, ctx *Context) (int, error) {
	line := buf.Line(i)
	h, err := parseDefine(line.Text)
	if err != nil {
		return 0, err
	}
	m := &Macro{
		Name:   h.Name,
		Params: h.Params,
		Body:   h.Body,
		Origin: line.Origin,
	}
	if h.Body != "" {
		buf.Splice(i, i+1)
		ctx.Define(m)
		return i, nil
	}
	body, end, berr := ctx.block(buf, i)
	if berr != nil {
		return 0, berr
	}
	texts := make([]string, len(body))
	for k, l := range body {
		texts[k] = l.Text
	}
	m.Body = strings.Join(texts, "\n")
	buf.Splice(i, end+1)
	ctx.Define(m)
	return i, nil
}

func handleUndef(buf *Buffer, i int, ctx *Context) (int, error) {
	name, _, err := parseUndef(buf.Text(i))
	if err != nil {
		return 0, err
	}
	buf.Splice(i, i+1)
	switch m := ctx.Macros.Undefine(name); {
	case m == nil:
		ctx.Warn(WarnUndefined, name, "macro %s is not defined", name)
	case m.Const:
		ctx.Warn(WarnRedefinition, name, "constant macro %s undefined", name)
	}
	return i, nil
}

func handleEnd(buf *Buffer, i int, ctx *Context) (int, error) {
	if ctx.State != StateWaitingEndOfBlock {
		e := ctx.Errorf(KindUnexpectedEnd, "%s without an open block", endDirective)
		e.Ident = endDirective
		return 0, e
	}
	buf.Splice(i, i+1)
	ctx.State = StatePreprocessing
	return i, nil
}

func handleInclude(buf *Buffer, i int, ctx *Context) (int, error) {
	line := buf.Line(i)
	name, off, err := parseInclude(line.Text)
	if err != nil {
		return 0, err
	}
	chain := []string{path.Base(line.Origin.File)}
	lines, ierr := ctx.includer.resolve(ctx, name, line.Origin.Pos(off+1, len(name)), chain)
	if ierr != nil {
		return 0, ierr
	}
	buf.Splice(i, i+1, lines...)
	return i, nil
}

func handleRepeat(buf *Buffer, i int, ctx *Context) (int, error) {
	line := buf.Line(i)
	args, off := DirectiveArgs(line.Text)
	expanded, err := ctx.Macros.Expand(args, line.Origin)
	if err != nil {
		return 0, err
	}
	n, perr := parseCount(expanded)
	if perr != nil {
		perr.Pos.Col, perr.Pos.Len = off+1, len(args)
		return 0, perr
	}
	body, end, err := ctx.block(buf, i)
	if err != nil {
		return 0, err
	}
	if len(body) == 0 || n == 0 {
		buf.Splice(i, end+1)
		return i, nil
	}
	if n > MaxLines/len(body) {
		e := ctx.Errorf(KindExpansionLimit, "repeating %d lines %d times exceeds %d lines", len(body), n, MaxLines)
		e.Pos.Col, e.Pos.Len = off+1, len(args)
		return 0, e
	}
	out := make([]Line, 0, n*len(body))
	for k := 0; k < n; k++ {
		out = append(out, body...)
	}
	buf.Splice(i, end+1, out...)
	return i, nil
}

// blockHandler returns a handler replacing a whole block with the lines
// produced by fn from its body.
func blockHandler(fn func(body []Line, ctx *Context) []Line) HandlerFunc {
	return func(buf *Buffer, i int, ctx *Context) (int, error) {
		if args, off := DirectiveArgs(buf.Text(i)); args != "" {
			name, _ := DirectiveName(buf.Text(i))
			return 0, syntaxErr(off, len(args), "%s takes no arguments", name)
		}
		body, end, err := ctx.block(buf, i)
		if err != nil {
			return 0, err
		}
		buf.Splice(i, end+1, fn(body, ctx)...)
		return i, nil
	}
}

func directiveMessage(buf *Buffer, i int, ctx *Context) (string, error) {
	line := buf.Line(i)
	args, _ := DirectiveArgs(line.Text)
	return ctx.Macros.Expand(args, line.Origin)
}

func logHandler(level logrus.Level) HandlerFunc {
	return func(buf *Buffer, i int, ctx *Context) (int, error) {
		msg, err := directiveMessage(buf, i, ctx)
		if err != nil {
			return 0, err
		}
		if level == logrus.WarnLevel {
			ctx.Warn(WarnUser, "", "%s", msg)
		} else {
			ctx.Log.WithFields(logrus.Fields{
				"file": ctx.File,
				"line": ctx.Line,
			}).Log(level, msg)
		}
		buf.Splice(i, i+1)
		return i, nil
	}
}

func handleError(buf *Buffer, i int, ctx *Context) (int, error) {
	msg, err := directiveMessage(buf, i, ctx)
	if err != nil {
		return 0, err
	}
	if msg == "" {
		msg = errorDirective + " directive"
	}
	return 0, ctx.Errorf(KindUserError, "%s", msg)
}
