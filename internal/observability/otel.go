package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"appletcore/internal/core"
	"appletcore/pkg/domain"
)

const instrumentationName = "appletcore/core"

// OTelTracer opens one OpenTelemetry span per service operation.
type OTelTracer struct {
	tracer trace.Tracer
}

var _ core.Tracer = OTelTracer{}

// NewOTelTracer uses tp, or the global provider when tp is nil.
func NewOTelTracer(tp trace.TracerProvider) OTelTracer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return OTelTracer{tracer: tp.Tracer(instrumentationName)}
}

// Start implements core.Tracer.
func (t OTelTracer) Start(ctx context.Context, operation string) (context.Context, core.TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "applet."+operation,
		trace.WithAttributes(attribute.String("applet.operation", operation)),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	defer s.span.End()
	if err == nil {
		s.span.SetStatus(codes.Ok, "")
		return
	}
	s.span.SetAttributes(attribute.String("applet.error_kind", errorKind(err)))
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func errorKind(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsConflict(err):
		return "conflict"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsTimeout(err):
		return "timeout"
	case domain.IsIntegrity(err):
		return "integrity"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "other"
	}
}
