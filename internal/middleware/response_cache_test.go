package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *memoryStore) SetEx(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.(string)
	return nil
}

func TestResponseCacheMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &memoryStore{data: map[string]string{}}
	calls := 0

	r := gin.New()
	r.GET("/words", ResponseCacheMiddleware(store, time.Minute), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", ResponseCacheMiddleware(store, time.Minute), func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	w := doRequest(r, "/words?search=co", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())

	w = doRequest(r, "/words?search=co", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, w.Body.String())
	assert.Equal(t, 1, calls)

	// The query string is part of the key
	w = doRequest(r, "/words?search=ba", "")
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())

	doRequest(r, "/broken", "")
	w = doRequest(r, "/broken", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	_, cached := store.data[ResponseCacheKey("/broken", "")]
	assert.False(t, cached)
}

func TestResponseCacheMiddlewareDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	calls := 0

	r := gin.New()
	r.GET("/words", ResponseCacheMiddleware(nil, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})
	r.POST("/words", ResponseCacheMiddleware(&memoryStore{data: map[string]string{}}, time.Minute), func(c *gin.Context) {
		calls++
		c.Status(http.StatusCreated)
	})

	doRequest(r, "/words", "")
	doRequest(r, "/words", "")
	assert.Equal(t, 2, calls)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/words", nil))
		assert.Equal(t, http.StatusCreated, w.Code)
	}
	assert.Equal(t, 4, calls)
}
