// Copyright © 2024 The ELPS authors

package profiler

import (
	"context"

	"github.com/golang-collections/collections/stack"
	"github.com/luthersystems/pyplus/preprocessor"
	"go.opencensus.io/trace"
)

var _ preprocessor.Profiler = &OpenCensusAnnotator{}

// OpenCensusAnnotator records an OpenCensus span for each event. Open
// spans are kept on a stack so that each span is annotated with its source
// location when it ends.
type OpenCensusAnnotator struct {
	profiler
	spans *stack.Stack
}

// NewOpenCensusAnnotator returns an annotator exporting through the
// registered OpenCensus exporters.
func NewOpenCensusAnnotator(opts ...Option) *OpenCensusAnnotator {
	p := &OpenCensusAnnotator{spans: stack.New()}
	p.profiler.applyConfigs(opts...)
	return p
}

// Depth returns the number of spans currently open.
func (p *OpenCensusAnnotator) Depth() int {
	return p.spans.Len()
}

// Start implements preprocessor.Profiler.
func (p *OpenCensusAnnotator) Start(ctx context.Context, ev preprocessor.Event) (context.Context, func()) {
	if p.skipTrace(ev) {
		return ctx, func() {}
	}
	ctx, span := trace.StartSpan(ctx, p.label(ev))
	p.spans.Push(span)
	return ctx, func() {
		top := p.spans.Pop().(*trace.Span)
		if ev.Origin.File != "" {
			top.Annotate([]trace.Attribute{
				trace.StringAttribute("file", ev.Origin.File),
				trace.Int64Attribute("line", int64(ev.Origin.Line)),
			}, "source")
		}
		top.End()
	}
}
