// Copyright © 2024 The ELPS authors

package profiler

import (
	"context"

	"github.com/luthersystems/pyplus/preprocessor"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

// ContextOpenTelemetryTracerKey looks up a tracer name from a context key.
const ContextOpenTelemetryTracerKey contextKey = "otelParentTracer"

var _ preprocessor.Profiler = &OpenTelemetryAnnotator{}

// OpenTelemetryAnnotator opens an OpenTelemetry span for each event, nested
// under the span carried by the context passed to the engine.
type OpenTelemetryAnnotator struct {
	profiler
}

// NewOpenTelemetryAnnotator returns an annotator using the global tracer
// provider.
func NewOpenTelemetryAnnotator(opts ...Option) *OpenTelemetryAnnotator {
	p := &OpenTelemetryAnnotator{}
	p.profiler.applyConfigs(opts...)
	return p
}

func contextTracer(ctx context.Context) trace.Tracer {
	tracerName, ok := ctx.Value(ContextOpenTelemetryTracerKey).(string)
	if !ok {
		tracerName = "pyplus"
	}
	return otel.GetTracerProvider().Tracer(tracerName)
}

// Start implements preprocessor.Profiler.
func (p *OpenTelemetryAnnotator) Start(ctx context.Context, ev preprocessor.Event) (context.Context, func()) {
	if p.skipTrace(ev) {
		return ctx, func() {}
	}
	ctx, span := contextTracer(ctx).Start(ctx, p.label(ev))
	span.SetAttributes(eventAttributes(ev)...)
	return ctx, func() { span.End() }
}

func eventAttributes(ev preprocessor.Event) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("pyplus.event", ev.Kind.String()),
	}
	if ev.Pass > 0 {
		attrs = append(attrs, attribute.Int("pyplus.pass", ev.Pass))
	}
	if ev.Kind == preprocessor.EventDirective {
		attrs = append(attrs, semconv.CodeFunction(ev.Name))
	}
	if ev.Origin.File != "" {
		attrs = append(attrs,
			semconv.CodeFilepath(ev.Origin.File),
			semconv.CodeLineNumber(ev.Origin.Line),
		)
	}
	return attrs
}
