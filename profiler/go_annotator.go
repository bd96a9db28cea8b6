// Copyright © 2024 The ELPS authors

package profiler

import (
	"context"
	"runtime/pprof"

	"github.com/luthersystems/pyplus/preprocessor"
)

var _ preprocessor.Profiler = &PprofAnnotator{}

// PprofAnnotator labels the running goroutine with the current event so
// that CPU profiles taken during a run can be split by directive. It does
// not start profiling.
type PprofAnnotator struct {
	profiler
}

// NewPprofAnnotator returns a pprof label annotator.
func NewPprofAnnotator(opts ...Option) *PprofAnnotator {
	p := &PprofAnnotator{}
	p.profiler.applyConfigs(opts...)
	return p
}

// Start implements preprocessor.Profiler.
func (p *PprofAnnotator) Start(ctx context.Context, ev preprocessor.Event) (context.Context, func()) {
	if p.skipTrace(ev) {
		return ctx, func() {}
	}
	prev := ctx
	ctx = pprof.WithLabels(ctx, pprof.Labels("event", ev.Kind.String(), "label", p.label(ev)))
	pprof.SetGoroutineLabels(ctx)
	return ctx, func() { pprof.SetGoroutineLabels(prev) }
}
