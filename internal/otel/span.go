// Package otel provides tracing helpers shared by the event pipeline.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on spans across the bot
const (
	AttrEventID   = attribute.Key("event.id")
	AttrEventKind = attribute.Key("event.kind")
	AttrGuildID   = attribute.Key("guild.id")
	AttrUserID    = attribute.Key("user.id")
	AttrMutations = attribute.Key("reconcile.mutations")
)

// StartSpan starts a span on tracer, or returns the span already in ctx when
// tracer is nil so callers never branch on whether tracing is configured.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError marks span as failed. The status text stays generic; the
// error itself is attached as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
