package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/paysim/internal/payload"
)

const paymentSpanName = "payment submit"

// StartPaymentSpan starts a client span for one payment dispatch.
func StartPaymentSpan(ctx context.Context, tracer trace.Tracer, seq int, p payload.Payment) (context.Context, trace.Span) {
	return tracer.Start(ctx, paymentSpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("paysim.seq", seq),
			attribute.String("payment.currency", string(p.Currency)),
			attribute.String("payment.type", string(p.Type)),
			attribute.Float64("payment.amount", p.Amount),
			attribute.String("payment.customer_id", p.CustomerID),
		),
	)
}

// EndPaymentSpan records the classified status and finishes the span.
func EndPaymentSpan(span trace.Span, status string, settled float64, err error) {
	span.SetAttributes(attribute.String("paysim.status", status))
	if err == nil {
		span.SetAttributes(attribute.Float64("payment.settled_amount", settled))
	}
	EndSpan(span, err)
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

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
