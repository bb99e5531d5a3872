package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentstation/operation"
)

const tracerName = "github.com/agentstation/operation"

type otelTracer struct {
	tracer trace.Tracer
}

// Tracer adapts an OpenTelemetry tracer provider to operation.Tracer. A nil
// provider uses the global one.
func Tracer(tp trace.TracerProvider) operation.Tracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &otelTracer{tracer: tp.Tracer(tracerName)}
}

func (t *otelTracer) StartSpan(ctx context.Context, name string) (context.Context, func(operation.RoundResult)) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, func(r operation.RoundResult) {
		span.SetAttributes(
			attribute.String("node.mode", r.Mode.String()),
			attribute.String("node.status", string(r.Status)),
			attribute.Bool("node.success", r.Success),
			attribute.Int64("node.delay_ms", r.Delay.Milliseconds()),
		)
		if r.Mode == operation.ModeFail {
			span.SetStatus(codes.Error, string(r.Status))
		}
		span.End()
	}
}
