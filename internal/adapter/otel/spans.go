package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fraudwatch"

// StartAnalysisSpan starts a span for one specialist analysis of an alert.
func StartAnalysisSpan(ctx context.Context, alertID, specialist string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analysis",
		trace.WithAttributes(
			attribute.String("alert.id", alertID),
			attribute.String("analysis.specialist", specialist),
		),
	)
}

// StartToolCallSpan starts a span for a CRM tool call within an analysis.
func StartToolCallSpan(ctx context.Context, alertID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("alert.id", alertID),
			attribute.String("toolcall.tool", tool),
		),
	)
}

// StartActionSpan starts a span for a fraud action execution.
func StartActionSpan(ctx context.Context, alertID, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "action",
		trace.WithAttributes(
			attribute.String("alert.id", alertID),
			attribute.String("action.name", action),
		),
	)
}
