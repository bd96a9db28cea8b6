// Copyright © 2024 The ELPS authors

// Package extension groups directives and output passes into named units
// that can be switched on and off from the command line.
package extension

import (
	"fmt"
	"sort"
	"strings"

	"github.com/luthersystems/pyplus/comments"
	"github.com/luthersystems/pyplus/preprocessor"
	"github.com/sirupsen/logrus"
)

// Pass rewrites the preprocessed output before it is written.
type Pass func(lines []string) []string

// Extension is a named group of directives and an optional output pass.
type Extension struct {
	Name       string
	Doc        string
	Directives func() map[string]preprocessor.Handler
	Pass       Pass
	Default    bool // enabled unless disabled explicitly
	Required   bool // cannot be disabled
}

// Built-in extension names.
const (
	Core              = "core"
	Blocks            = "blocks"
	Diagnostics       = "diagnostics"
	StripComments     = "strip-comments"
	TrimTrailingSpace = "trim-trailing-space"
)

// Builtins returns the extensions shipped with pyplus in the order their
// passes run.
func Builtins() []*Extension {
	return []*Extension{
		{
			Name:       Core,
			Doc:        "macro definitions and file inclusion",
			Directives: preprocessor.CoreDirectives,
			Default:    true,
			Required:   true,
		},
		{
			Name:       Blocks,
			Doc:        "repeat, invisible, mirror and random blocks",
			Directives: preprocessor.BlockDirectives,
			Default:    true,
		},
		{
			Name:       Diagnostics,
			Doc:        "debug, info, warning and error messages",
			Directives: preprocessor.DiagnosticDirectives,
			Default:    true,
		},
		{
			Name: StripComments,
			Doc:  "remove comments from the output",
			Pass: comments.Strip,
		},
		{
			Name:    TrimTrailingSpace,
			Doc:     "remove trailing whitespace from output lines",
			Pass:    trimTrailingSpace,
			Default: true,
		},
	}
}

// trimTrailingSpace trims every line except those ending inside a
// triple-quoted string, where the whitespace is part of the literal.
func trimTrailingSpace(lines []string) []string {
	t := comments.Scan(lines)
	out := make([]string, len(lines))
	for i, line := range lines {
		if t.EndsInString(i + 1) {
			out[i] = line
			continue
		}
		out[i] = strings.TrimRight(line, " \t")
	}
	return out
}

// Set is an ordered collection of extensions with their enabled state.
type Set struct {
	exts    []*Extension
	enabled map[string]bool
}

// NewSet returns a set of exts with the defaults enabled. With no
// arguments it holds the built-in extensions.
func NewSet(exts ...*Extension) *Set {
	if len(exts) == 0 {
		exts = Builtins()
	}
	s := &Set{exts: exts, enabled: make(map[string]bool)}
	for _, ext := range exts {
		s.enabled[ext.Name] = ext.Default || ext.Required
	}
	return s
}

// UnknownError reports extension names that do not exist.
type UnknownError struct {
	Names []string
	Known []string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown extension %s (known: %s)",
		strings.Join(e.Names, ", "), strings.Join(e.Known, ", "))
}

// Configure applies enable and then disable. Names are matched after
// trimming space and empty names are ignored. Disabling a required
// extension is an error.
func (s *Set) Configure(enable, disable []string) error {
	var unknown []string
	for _, name := range names(enable) {
		if _, ok := s.enabled[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		s.enabled[name] = true
	}
	for _, name := range names(disable) {
		ext := s.Lookup(name)
		if ext == nil {
			unknown = append(unknown, name)
			continue
		}
		if ext.Required {
			return fmt.Errorf("extension %s cannot be disabled", name)
		}
		s.enabled[name] = false
	}
	if len(unknown) > 0 {
		return &UnknownError{Names: unknown, Known: s.Names()}
	}
	return nil
}

// ParseList splits a comma-separated flag value. Repeated flags may be
// passed as several values.
func ParseList(values ...string) []string {
	var out []string
	for _, v := range values {
		out = append(out, strings.Split(v, ",")...)
	}
	return names(out)
}

func names(list []string) []string {
	var out []string
	for _, n := range list {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Lookup returns the extension called name, or nil.
func (s *Set) Lookup(name string) *Extension {
	for _, ext := range s.exts {
		if ext.Name == name {
			return ext
		}
	}
	return nil
}

// Enabled reports whether the named extension is on.
func (s *Set) Enabled(name string) bool {
	return s.enabled[name]
}

// Names returns every extension name, sorted.
func (s *Set) Names() []string {
	out := make([]string, 0, len(s.exts))
	for _, ext := range s.exts {
		out = append(out, ext.Name)
	}
	sort.Strings(out)
	return out
}

// Extensions returns the extensions in order.
func (s *Set) Extensions() []*Extension {
	return s.exts
}

// Registry returns a registry holding the directives of every enabled
// extension.
func (s *Set) Registry(log logrus.FieldLogger) *preprocessor.Registry {
	r := preprocessor.NewRegistry(log)
	for _, ext := range s.exts {
		if s.enabled[ext.Name] && ext.Directives != nil {
			preprocessor.RegisterAll(r, ext.Directives(), false)
		}
	}
	return r
}

// Apply runs the output passes of the enabled extensions in order.
func (s *Set) Apply(lines []string) []string {
	for _, ext := range s.exts {
		if s.enabled[ext.Name] && ext.Pass != nil {
			lines = ext.Pass(lines)
		}
	}
	return lines
}
