package loadtest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI implements just enough of the API for the runner
type fakeAPI struct {
	mu        sync.Mutex
	validated map[string]bool
	users     int
	posts     int
}

func (f *fakeAPI) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	r.POST("/api/v1/auth/email-codes", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{})
	})
	r.POST("/api/v1/auth/email-codes/validate", func(c *gin.Context) {
		var req struct{ Email, Code string }
		_ = c.ShouldBindJSON(&req)
		if req.Code != "123456" {
			c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_CODE"})
			return
		}
		f.mu.Lock()
		f.validated[req.Email] = true
		f.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"validated": true})
	})
	r.POST("/api/v1/auth/register", func(c *gin.Context) {
		var req struct{ Email, Username string }
		_ = c.ShouldBindJSON(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.validated[req.Email] {
			c.JSON(http.StatusBadRequest, gin.H{"code": "EMAIL_NOT_VALIDATED"})
			return
		}
		f.users++
		id := fmt.Sprintf("user-%d", f.users)
		c.JSON(http.StatusCreated, gin.H{"token": "token-" + id, "user": gin.H{"id": id, "username": req.Username}})
	})

	authed := r.Group("/api/v1", func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED"})
		}
	})
	authed.GET("/posts", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	authed.GET("/posts/nearby", func(c *gin.Context) { c.JSON(http.StatusOK, []gin.H{}) })
	authed.POST("/posts", func(c *gin.Context) {
		f.mu.Lock()
		f.posts++
		id := fmt.Sprintf("post-%d", f.posts)
		f.mu.Unlock()
		c.JSON(http.StatusCreated, gin.H{"id": id})
	})
	authed.POST("/votes", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{}) })
	authed.POST("/comments", func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{}) })
	return r
}

func newFakeServer(t *testing.T) (*httptest.Server, *fakeAPI) {
	api := &fakeAPI{validated: make(map[string]bool)}
	srv := httptest.NewServer(api.router())
	t.Cleanup(srv.Close)
	return srv, api
}

func TestRegister(t *testing.T) {
	srv, api := newFakeServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Users = 3

	sessions, err := New(cfg).Register(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, 3, api.users)
	for _, s := range sessions {
		assert.NotEmpty(t, s.Token)
		assert.NotEmpty(t, s.UserID)
	}
}

func TestRegisterWrongCode(t *testing.T) {
	srv, _ := newFakeServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Users = 2
	cfg.Code = "000000"

	runner := New(cfg)
	_, err := runner.Register(context.Background())
	assert.Error(t, err)

	validate, ok := runner.Stats().Report(time.Second).Endpoint("auth.validate")
	require.True(t, ok)
	assert.Equal(t, 2, validate.Failures)
}

func TestRun(t *testing.T) {
	srv, _ := newFakeServer(t)
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Users = 2
	cfg.Workers = 3
	cfg.Duration = 300 * time.Millisecond

	report, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	register, ok := report.Endpoint("auth.register")
	require.True(t, ok)
	assert.Equal(t, 2, register.Requests)
	assert.Greater(t, report.Requests(), 6)
	for _, e := range report.Endpoints {
		assert.Zero(t, e.Failures, e.Endpoint)
		assert.LessOrEqual(t, e.P50, e.P99)
		assert.LessOrEqual(t, e.P99, e.Max)
	}

	var buf bytes.Buffer
	report.Print(&buf)
	assert.Contains(t, buf.String(), "auth.register")
	assert.Contains(t, buf.String(), "P99")
}

func TestPercentile(t *testing.T) {
	var sorted []time.Duration
	for i := 1; i <= 100; i++ {
		sorted = append(sorted, time.Duration(i)*time.Millisecond)
	}
	assert.Equal(t, 50*time.Millisecond, percentile(sorted, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(sorted, 99))
	assert.Equal(t, time.Millisecond, percentile(sorted[:1], 90))
	assert.Zero(t, percentile(nil, 50))
}
