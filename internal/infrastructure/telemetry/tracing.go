package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of billing spans
const TracerName = "hospital-billing"

// Attribute keys put on billing spans and metrics.
var (
	AttrInvoiceID      = attribute.Key("billing.invoice_id")
	AttrInvoiceNumber  = attribute.Key("billing.invoice_number")
	AttrPaymentMethod  = attribute.Key("payment_method")
	AttrCorrectionKind = attribute.Key("correction_kind")
	AttrCurrency       = attribute.Key("currency")
	AttrJob            = attribute.Key("job")
	AttrOutcome        = attribute.Key("outcome")
	AttrDBPoolState    = attribute.Key("db.pool.state")
)

// StartSpan starts an internal span on the global tracer. The caller ends it.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// EndSpan marks span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// TraceID returns the trace id carried by ctx, or "" without a valid span
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
