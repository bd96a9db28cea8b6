// Copyright © 2024 The ELPS authors

// Package profiler reports preprocessing runs to tracing backends. Each
// annotator implements preprocessor.Profiler and is installed with
// preprocessor.WithProfiler.
package profiler

import (
	"fmt"
	"regexp"

	"github.com/luthersystems/pyplus/preprocessor"
)

// SkipFilter reports whether ev should not be traced.
type SkipFilter func(ev preprocessor.Event) bool

// Labeler provides an alternative span name for ev. An empty result keeps
// the default label.
type Labeler func(ev preprocessor.Event) string

// Option configures an annotator.
type Option func(*profiler)

// WithSkipFilter sets a filter for events that are not traced.
func WithSkipFilter(f SkipFilter) Option {
	return func(p *profiler) { p.skipFilter = f }
}

// WithLabeler sets the labeler for tracing spans.
func WithLabeler(l Labeler) Option {
	return func(p *profiler) { p.labeler = l }
}

// WithDirectivesOnly traces runs and directives but not individual passes
// or expansions.
func WithDirectivesOnly() Option {
	return WithSkipFilter(func(ev preprocessor.Event) bool {
		return ev.Kind == preprocessor.EventPass || ev.Kind == preprocessor.EventExpansion
	})
}

// profiler holds the configuration shared by the annotators.
type profiler struct {
	skipFilter SkipFilter
	labeler    Labeler
}

func (p *profiler) applyConfigs(opts ...Option) {
	for _, opt := range opts {
		opt(p)
	}
}

func (p *profiler) skipTrace(ev preprocessor.Event) bool {
	return p.skipFilter != nil && p.skipFilter(ev)
}

var labelSanitizer = regexp.MustCompile(`\s+`)

// label returns a span name for ev: "run main.pyp", "pass 2",
// "@repeat" and so on.
func (p *profiler) label(ev preprocessor.Event) string {
	if p.labeler != nil {
		if l := p.labeler(ev); l != "" {
			return labelSanitizer.ReplaceAllString(l, "_")
		}
	}
	switch ev.Kind {
	case preprocessor.EventDirective:
		return ev.Name
	case preprocessor.EventPass, preprocessor.EventExpansion:
		return fmt.Sprintf("%s %d", ev.Kind, ev.Pass)
	default:
		return fmt.Sprintf("%s %s", ev.Kind, ev.Name)
	}
}
