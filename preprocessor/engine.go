// Copyright © 2024 The ELPS authors

// Package preprocessor rewrites line-oriented source text by dispatching
// directive lines to handlers and expanding macros until the buffer stops
// changing.
package preprocessor

import (
	"context"
	"errors"
	"io/fs"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/luthersystems/pyplus/buildvars"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultMaxPasses bounds the number of directive and expansion passes
	// in one run.
	DefaultMaxPasses = 64
	// DefaultMaxSteps bounds the number of handler invocations in a single
	// directive pass.
	DefaultMaxSteps = 1 << 16
	// MaxLineLength bounds the length of a line produced by expansion.
	MaxLineLength = 1 << 20
	// MaxLines bounds the number of lines a single block directive may
	// produce.
	MaxLines = 1 << 22
)

// EventKind identifies what a profiler span covers.
type EventKind int

const (
	EventRun EventKind = iota
	EventPass
	EventDirective
	EventExpansion
)

func (k EventKind) String() string {
	switch k {
	case EventRun:
		return "run"
	case EventPass:
		return "pass"
	case EventDirective:
		return "directive"
	case EventExpansion:
		return "expansion"
	default:
		return "unknown"
	}
}

// Event describes a unit of work reported to a Profiler.
type Event struct {
	Kind   EventKind
	Name   string // directive name or input file
	Pass   int
	Origin Origin
}

// Profiler observes a run. Start is called when a unit of work begins and
// the returned function when it ends.
type Profiler interface {
	Start(ctx context.Context, ev Event) (context.Context, func())
}

type nopProfiler struct{}

func (nopProfiler) Start(ctx context.Context, _ Event) (context.Context, func()) {
	return ctx, func() {}
}

// Engine drives preprocessing runs. An Engine may be reused for several
// runs but is not safe for concurrent use.
type Engine struct {
	registry  *Registry
	log       logrus.FieldLogger
	roots     []fs.FS
	vars      []buildvars.Option
	defines   []*Macro
	maxPasses int
	maxSteps  int
	rand      *rand.Rand
	profiler  Profiler
	plugins   []plugin
}

type plugin struct {
	name string
	h    Handler
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for warnings and per-directive tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// WithRegistry replaces the default registry of built-in directives.
func WithRegistry(r *Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithDirective registers h under name, replacing any existing handler.
func WithDirective(name string, h Handler) Option {
	return func(e *Engine) { e.plugins = append(e.plugins, plugin{name, h}) }
}

// WithIncludeFS sets the roots searched, in order, for include targets.
func WithIncludeFS(roots ...fs.FS) Option {
	return func(e *Engine) { e.roots = roots }
}

// WithBuildVars configures the built-in macros seeded into each run.
func WithBuildVars(opts ...buildvars.Option) Option {
	return func(e *Engine) { e.vars = append(e.vars, opts...) }
}

// WithMacros predefines ms after the built-in macros.
func WithMacros(ms ...*Macro) Option {
	return func(e *Engine) { e.defines = append(e.defines, ms...) }
}

// WithMaxPasses bounds the number of passes in a run.
func WithMaxPasses(n int) Option {
	return func(e *Engine) { e.maxPasses = n }
}

// WithMaxSteps bounds the number of handler invocations per pass.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithRand sets the random source used by @random.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithProfiler reports runs, passes and directives to p.
func WithProfiler(p Profiler) Option {
	return func(e *Engine) { e.profiler = p }
}

// New returns an Engine. Without options it knows every built-in
// directive, seeds the built-in macros and cannot resolve includes.
func New(opts ...Option) *Engine {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	e := &Engine{
		log:       log,
		maxPasses: DefaultMaxPasses,
		maxSteps:  DefaultMaxSteps,
		profiler:  nopProfiler{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.registry == nil {
		e.registry = DefaultRegistry(e.log)
	}
	for _, p := range e.plugins {
		e.registry.Register(p.name, p.h, true)
	}
	if e.rand == nil {
		seed := uint64(time.Now().UnixNano())
		e.rand = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return e
}

// Registry returns the engine's directive registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// NewContext returns a fresh context for preprocessing file. Its macro
// table holds the built-in variables followed by predefined macros.
func (e *Engine) NewContext(file string) *Context {
	macros := NewMacroTable()
	for _, v := range buildvars.Table(e.vars...) {
		m := &Macro{Name: v.Name, Body: v.Value, Const: v.Const}
		if v.Dynamic != nil {
			dyn := v.Dynamic
			m.Value = func(at Origin) string { return dyn(at.File) }
		}
		macros.Define(m)
	}
	for _, m := range e.defines {
		macros.Define(m)
	}
	return &Context{
		File:     file,
		State:    StateInit,
		Macros:   macros,
		Registry: e.registry,
		Log:      e.log,
		Sources:  make(map[string]string),
		includer: &includer{roots: e.roots},
		rand:     e.rand,
	}
}

// Result is the outcome of a run. On failure only Sources and Warnings are
// meaningful.
type Result struct {
	Lines    []Line
	Warnings []Warning
	Passes   int
	Sources  map[string]string
}

// Text returns the output with every line newline-terminated.
func (r *Result) Text() string {
	return JoinLines(r.Lines)
}

// Run preprocesses src, the contents of file.
func (e *Engine) Run(ctx context.Context, file, src string) (*Result, error) {
	pctx := e.NewContext(file)
	pctx.Sources[file] = src
	return e.RunContext(ctx, pctx, NewBuffer(file, src))
}

// RunContext preprocesses buf using a caller-owned context. Macros defined
// by the run remain in pctx afterward.
func (e *Engine) RunContext(ctx context.Context, pctx *Context, buf *Buffer) (*Result, error) {
	res := &Result{Sources: pctx.Sources}
	ctx, end := e.profiler.Start(ctx, Event{Kind: EventRun, Name: pctx.File})
	defer end()

	pctx.State = StatePreprocessing
	for pass := 1; ; pass++ {
		res.Passes = pass
		if err := ctx.Err(); err != nil {
			res.Warnings = pctx.Warnings()
			return res, err
		}
		if pass > e.maxPasses {
			res.Warnings = pctx.Warnings()
			return res, newError(KindExpansionLimit, Pos{File: pctx.File},
				"no fixed point after %d passes; a macro may expand to itself", e.maxPasses)
		}
		changed, err := e.pass(ctx, pctx, buf, pass)
		if err != nil {
			res.Warnings = pctx.Warnings()
			return res, err
		}
		if !changed {
			break
		}
	}
	pctx.State = StateFinished
	res.Lines = buf.Lines()
	res.Warnings = pctx.Warnings()
	return res, nil
}

// pass runs one directive scan followed by one expansion of every line and
// reports whether either changed the buffer.
func (e *Engine) pass(ctx context.Context, pctx *Context, buf *Buffer, pass int) (bool, error) {
	ctx, end := e.profiler.Start(ctx, Event{Kind: EventPass, Name: pctx.File, Pass: pass})
	defer end()

	gen := buf.Generation()
	if err := e.directivePass(ctx, pctx, buf, pass); err != nil {
		return false, err
	}
	if err := e.expansionPass(ctx, pctx, buf, pass); err != nil {
		return false, err
	}
	return buf.Generation() != gen, nil
}

func (e *Engine) directivePass(ctx context.Context, pctx *Context, buf *Buffer, pass int) error {
	steps := 0
	for i := 0; i < buf.Len(); {
		line := buf.Line(i)
		if !pctx.Registry.IsDirective(line.Text) {
			i++
			continue
		}
		steps++
		if steps > e.maxSteps {
			return newError(KindExpansionLimit, line.Origin.Pos(0, 0),
				"more than %d directives handled in one pass", e.maxSteps)
		}
		next, err := e.dispatch(ctx, pctx, buf, i, pass)
		if err != nil {
			return err
		}
		i = next
	}
	if pctx.State == StateWaitingEndOfBlock {
		pctx.State = StatePreprocessing
		return pctx.Errorf(KindMissedEndOfBlock, "block opened here is never closed by %s", endDirective)
	}
	return nil
}

func (e *Engine) dispatch(ctx context.Context, pctx *Context, buf *Buffer, i, pass int) (int, error) {
	line := buf.Line(i)
	pctx.File = line.Origin.File
	pctx.Line = line.Origin.Line
	pctx.Col = len(line.Text) - len(strings.TrimLeft(line.Text, " \t")) + 1

	name, h, err := pctx.Registry.Resolve(line.Text)
	if err != nil {
		return 0, bindError(err, line, name)
	}
	e.log.WithFields(logrus.Fields{
		"file":      line.Origin.File,
		"line":      line.Origin.Line,
		"directive": name,
		"pass":      pass,
	}).Debug("processing directive")

	_, end := e.profiler.Start(ctx, Event{Kind: EventDirective, Name: name, Pass: pass, Origin: line.Origin})
	next, err := h.Handle(buf, i, pctx)
	end()
	if err != nil {
		return 0, bindError(err, line, name)
	}
	if next < 0 || next > buf.Len() {
		ce := newError(KindInvalidHandlerCursor, line.Origin.Pos(pctx.Col, len(name)),
			"handler for %s returned cursor %d outside the buffer [0, %d]", name, next, buf.Len())
		ce.Handler = name
		return 0, ce
	}
	return next, nil
}

// bindError locates err at line unless it already carries a position, and
// records the directive being handled.
func bindError(err error, line Line, directive string) error {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = &Error{Kind: KindHandler, Msg: "directive handler failed", Err: err}
	}
	if pe.Pos.Line == 0 {
		pe.Pos.File = line.Origin.File
		pe.Pos.Line = line.Origin.Line
		if pe.Pos.Col == 0 {
			pe.Pos.Col = len(line.Text) - len(strings.TrimLeft(line.Text, " \t")) + 1
			pe.Pos.Len = len(directive)
		}
	}
	if pe.Handler == "" {
		pe.Handler = directive
	}
	return pe
}

func (e *Engine) expansionPass(ctx context.Context, pctx *Context, buf *Buffer, pass int) error {
	_, end := e.profiler.Start(ctx, Event{Kind: EventExpansion, Name: pctx.File, Pass: pass})
	defer end()

	for i := 0; i < buf.Len(); i++ {
		line := buf.Line(i)
		out, err := pctx.Macros.Expand(line.Text, line.Origin)
		if err != nil {
			return bindError(err, line, "")
		}
		if out == line.Text {
			continue
		}
		if len(out) > MaxLineLength {
			return newError(KindExpansionLimit, line.Origin.Pos(0, 0),
				"expansion produced a line longer than %d bytes", MaxLineLength)
		}
		if !strings.Contains(out, "\n") {
			buf.Set(i, out)
			continue
		}
		parts := strings.Split(out, "\n")
		repl := make([]Line, len(parts))
		for k, p := range parts {
			repl[k] = Line{Text: p, Origin: line.Origin}
		}
		buf.Splice(i, i+1, repl...)
		i += len(repl) - 1
	}
	return nil
}
