package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"go.uber.org/zap"
)

// ResponseStore holds cached response bodies. cache.RedisClient implements it.
type ResponseStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ResponseCacheMiddleware caches successful GET responses for ttl, keyed by
// path and query string. Only use it on routes whose body does not depend
// on the requester. A nil store disables caching.
// Adds X-Cache: HIT/MISS header for debugging
func ResponseCacheMiddleware(store ResponseStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := ResponseCacheKey(c.Request.URL.Path, c.Request.URL.RawQuery)
		ctx := c.Request.Context()
		cacheControl := fmt.Sprintf("private, max-age=%d", int(ttl.Seconds()))

		if cached, err := store.Get(ctx, key); err == nil {
			metrics.Get().ResponseCacheTotal.WithLabelValues("hit").Inc()
			c.Header("X-Cache", "HIT")
			c.Header("Cache-Control", cacheControl)
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}
		metrics.Get().ResponseCacheTotal.WithLabelValues("miss").Inc()

		writer := &cachedResponseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Header("X-Cache", "MISS")
		c.Header("Cache-Control", cacheControl)

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 || writer.body.Len() == 0 {
			return
		}
		if err := store.SetEx(ctx, key, writer.body.String(), ttl); err != nil {
			logger.Log.Debug("Failed to write response to cache", zap.String("key", key), zap.Error(err))
		}
	}
}

// ResponseCacheKey is the store key of a cached GET response
func ResponseCacheKey(path, query string) string {
	if query == "" {
		return "response:" + path
	}
	return "response:" + path + ":" + query
}

// cachedResponseWriter intercepts response writes to capture the response body
type cachedResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachedResponseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *cachedResponseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
