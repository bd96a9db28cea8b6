// Copyright © 2024 The ELPS authors

package preprocessor

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// Sigil prefixes every directive name.
const Sigil = "@"

// Handler processes the directive on line index of buf. It may splice the
// buffer and must return the cursor at which scanning resumes, a valid index
// into the mutated buffer or its length.
type Handler interface {
	Handle(buf *Buffer, index int, ctx *Context) (int, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(buf *Buffer, index int, ctx *Context) (int, error)

// Handle calls f.
func (f HandlerFunc) Handle(buf *Buffer, index int, ctx *Context) (int, error) {
	return f(buf, index, ctx)
}

// BlockOpener is implemented by handlers whose directive line may open a
// block closed by @end. The depth-counted terminator search consults it.
type BlockOpener interface {
	OpensBlock(line string) bool
}

// Documented is implemented by handlers carrying a one-line summary.
type Documented interface {
	Doc() string
}

// Registry maps directive names to handlers. It is owned by an Engine and
// never shared between concurrent runs.
type Registry struct {
	handlers map[string]Handler
	log      logrus.FieldLogger
}

// NewRegistry returns an empty registry. Registration notices go to log,
// or to the standard logrus logger when log is nil.
func NewRegistry(log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// NormalizeName adds the sigil to name if it is missing.
func NormalizeName(name string) string {
	if strings.HasPrefix(name, Sigil) {
		return name
	}
	return Sigil + name
}

// Register binds name to h. When name is already bound and overwrite is
// false the registry is left unchanged. Register reports whether h was
// installed.
func (r *Registry) Register(name string, h Handler, overwrite bool) bool {
	name = NormalizeName(name)
	if _, ok := r.handlers[name]; ok && !overwrite {
		r.log.WithField("directive", name).Info("directive already registered; keeping existing handler")
		return false
	}
	r.handlers[name] = h
	return true
}

// Unregister removes the handler bound to name.
func (r *Registry) Unregister(name string) error {
	name = NormalizeName(name)
	if _, ok := r.handlers[name]; !ok {
		e := newError(KindNotRegistered, Pos{}, "directive %s is not registered", name)
		e.Ident = name
		return e
	}
	delete(r.handlers, name)
	return nil
}

// Lookup returns the handler bound to name.
func (r *Registry) Lookup(name string) (Handler, bool) {
	h, ok := r.handlers[NormalizeName(name)]
	return h, ok
}

// Names returns the registered directive names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Doc returns the summary of the directive bound to name, if it has one.
func (r *Registry) Doc(name string) string {
	if d, ok := r.handlers[NormalizeName(name)].(Documented); ok {
		return d.Doc()
	}
	return ""
}

// DirectiveName extracts the leading directive token of line, sigil
// included. The token must be followed by whitespace or the end of the
// line, so a decorator call such as @name(...) is not a directive token.
func DirectiveName(line string) (string, bool) {
	t := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(t, Sigil) {
		return "", false
	}
	end := len(Sigil)
	for end < len(t) {
		r, size := utf8.DecodeRuneInString(t[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	if end == len(Sigil) {
		return "", false
	}
	if end < len(t) && t[end] != ' ' && t[end] != '\t' {
		return "", false
	}
	return t[:end], true
}

// IsDirective reports whether line is a registered directive, or one of the
// named directives when names are given.
func (r *Registry) IsDirective(line string, names ...string) bool {
	name, ok := DirectiveName(line)
	if !ok {
		return false
	}
	if _, ok := r.handlers[name]; !ok {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if NormalizeName(n) == name {
			return true
		}
	}
	return false
}

// Resolve returns the directive name and handler for line.
func (r *Registry) Resolve(line string) (string, Handler, error) {
	name, ok := DirectiveName(line)
	if ok {
		if h, ok := r.handlers[name]; ok {
			return name, h, nil
		}
	}
	if name == "" {
		name = strings.TrimSpace(line)
	}
	e := newError(KindUnknownDirective, Pos{}, "unknown directive %s", name)
	e.Ident = name
	return "", nil, e
}

// OpensBlock reports whether line is a directive whose handler opens a
// block.
func (r *Registry) OpensBlock(line string) bool {
	name, ok := DirectiveName(line)
	if !ok {
		return false
	}
	b, ok := r.handlers[name].(BlockOpener)
	return ok && b.OpensBlock(line)
}
