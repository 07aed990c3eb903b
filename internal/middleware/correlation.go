package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/trace"
)

const (
	// CorrelationIDKey is the gin context key holding the correlation id
	CorrelationIDKey = "correlation_id"

	// CorrelationHeader carries the correlation id between services
	CorrelationHeader = "X-Correlation-ID"
)

// CorrelationMiddleware ties together the requests of one conversation
// across the relay and the API. It runs after RequestIDMiddleware: an
// incoming X-Correlation-ID is kept, otherwise the request id is used. The
// id is stored in the gin context, echoed in the response, set on the
// current span and put in the request context's baggage so outbound calls
// can forward it.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationHeader)
		if correlationID == "" {
			correlationID = c.GetString(RequestIDKey)
		}
		if correlationID == "" {
			c.Next()
			return
		}

		c.Set(CorrelationIDKey, correlationID)
		c.Header(CorrelationHeader, correlationID)

		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			span.SetAttributes(attribute.String("trace.correlation_id", correlationID))
		}

		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), correlationID))
		c.Next()
	}
}

// WithCorrelationID returns ctx with id in its baggage. Ids that are not
// valid baggage values leave ctx unchanged.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	member, err := baggage.NewMember(CorrelationIDKey, id)
	if err != nil {
		return ctx
	}
	b, err := baggage.FromContext(ctx).SetMember(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, b)
}

// GetCorrelationIDFromContext extracts correlation ID from context
func GetCorrelationIDFromContext(ctx context.Context) string {
	return baggage.FromContext(ctx).Member(CorrelationIDKey).Value()
}
