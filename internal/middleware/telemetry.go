package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/util"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware returns otelgin followed by a handler that adds Mist
// attributes to the request span. The second handler runs inside the span,
// so attributes are set before otelgin ends it.
func TracingMiddleware(serviceName string) []gin.HandlerFunc {
	return []gin.HandlerFunc{otelgin.Middleware(serviceName), spanAttributes()}
}

func spanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if userID := c.GetString(util.ContextUserIDKey); userID != "" {
			span.SetAttributes(attribute.String("user.id", userID))
		}
		if order := c.Query("order"); order != "" {
			span.SetAttributes(attribute.String("posts.order", order))
		}
		if c.Query("latitude") != "" && c.Query("longitude") != "" {
			span.SetAttributes(attribute.Bool("query.nearby", true))
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, ginErr.Error())
			}
		}
	}
}
