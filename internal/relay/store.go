package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/middleware"
	"github.com/mistapp/backend/internal/models"
	"github.com/mistapp/backend/internal/telemetry"
	"go.uber.org/zap"
)

// MessageStore persists a relayed message on behalf of the token's user
type MessageStore interface {
	CreateMessage(ctx context.Context, token, sender, receiver, body string) (*models.Message, error)
}

// APIStore persists messages through the main API, so blocks, validation
// and push notifications apply to relayed messages too
type APIStore struct {
	http *resty.Client
}

// NewAPIStore creates a store posting to the API at baseURL
func NewAPIStore(baseURL string) *APIStore {
	client := resty.NewWithClient(telemetry.NewInstrumentedHTTPClient(10 * time.Second))
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetHeader("Content-Type", "application/json")
	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Log.Debug("Relay persist response",
			zap.Int("status", resp.StatusCode()),
			zap.Duration("latency", resp.Time()),
		)
		return nil
	})
	return &APIStore{http: client}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *APIStore) CreateMessage(ctx context.Context, token, sender, receiver, body string) (*models.Message, error) {
	var msg models.Message
	var apiErr apiError
	req := s.http.R()
	if id := middleware.GetCorrelationIDFromContext(ctx); id != "" {
		req.SetHeader(middleware.CorrelationHeader, id)
	}
	resp, err := req.
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]string{"sender": sender, "receiver": receiver, "body": body}).
		SetResult(&msg).
		SetError(&apiErr).
		Post("/api/v1/messages")
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	if resp.IsError() {
		if apiErr.Message != "" {
			return nil, fmt.Errorf("persist message: %s", apiErr.Message)
		}
		return nil, fmt.Errorf("persist message: status %d", resp.StatusCode())
	}
	return &msg, nil
}
