package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NewInstrumentedHTTPClient creates an HTTP client whose requests are
// traced and carry the W3C trace headers.
func NewInstrumentedHTTPClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(
			http.DefaultTransport,
			otelhttp.WithSpanOptions(
				trace.WithSpanKind(trace.SpanKindClient),
			),
		),
	}
}

// TraceExternalCall creates a client span for a call to an external
// service (expo, twilio, ses, s3, elasticsearch)
func TraceExternalCall(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	tracer := otel.Tracer("external-api")

	return tracer.Start(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("external.service", service),
			attribute.String("external.operation", operation),
		),
	)
}

// RecordExternalCallResult records the outcome of an external call
func RecordExternalCallResult(span trace.Span, statusCode int, err error) {
	if statusCode > 0 {
		span.SetAttributes(attribute.Int("http.status_code", statusCode))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		if statusCode >= 500 || statusCode == 408 || statusCode == 429 {
			span.SetAttributes(attribute.Bool("external.error.retryable", true))
		}
		return
	}
	span.SetStatus(codes.Ok, "")
}
