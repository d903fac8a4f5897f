package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys recorded on run spans.
const (
	AttrBenchmark  = attribute.Key("collbench.benchmark")
	AttrElements   = attribute.Key("collbench.elements")
	AttrRank       = attribute.Key("collbench.rank")
	AttrSize       = attribute.Key("collbench.size")
	AttrPrefix     = attribute.Key("collbench.prefix")
	AttrIterations = attribute.Key("collbench.iterations")
	AttrSamples    = attribute.Key("collbench.samples")
)

// StartRunSpan starts the span covering one run of a benchmark at one
// element count.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, benchmark string, elements, rank, size int) (context.Context, trace.Span) {
	name := "run"
	if benchmark != "" {
		name = benchmark + " run"
	}
	ctx, span := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		AttrElements.Int(elements),
		AttrRank.Int(rank),
		AttrSize.Int(size),
	)
	if benchmark != "" {
		span.SetAttributes(AttrBenchmark.String(benchmark))
	}
	return ctx, span
}

// StartPhaseSpan starts a child span for one phase of a run, such as
// connecting the group or the warmup.
func StartPhaseSpan(ctx context.Context, tracer trace.Tracer, phase string) (context.Context, trace.Span) {
	return tracer.Start(ctx, phase)
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
