// Package push delivers notifications to devices through the Expo push
// service.
package push

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/metrics"
	"github.com/mistapp/backend/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultURL is Expo's push send endpoint
const DefaultURL = "https://exp.host/--/api/v2/push/send"

// Message is one Expo push message
type Message struct {
	To    string                 `json:"to"`
	Title string                 `json:"title,omitempty"`
	Body  string                 `json:"body"`
	Data  map[string]interface{} `json:"data,omitempty"`
	Sound string                 `json:"sound,omitempty"`
	Badge *int                   `json:"badge,omitempty"`
}

type ticket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

// Sender sends push messages
type Sender interface {
	Send(ctx context.Context, messages ...Message) error
}

// Client is the Expo push client
type Client struct {
	http *resty.Client
	url  string
}

// NewClient creates an Expo push client. An empty url uses DefaultURL.
func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}

	httpClient := resty.NewWithClient(telemetry.NewInstrumentedHTTPClient(10 * time.Second))
	httpClient.SetHeader("Accept", "application/json")
	httpClient.SetHeader("Content-Type", "application/json")
	httpClient.SetRetryCount(2)
	httpClient.SetRetryWaitTime(200 * time.Millisecond)

	httpClient.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Log.Debug("Push response",
			zap.Int("status", resp.StatusCode()),
			zap.Duration("latency", resp.Time()),
		)
		return nil
	})

	return &Client{http: httpClient, url: url}
}

// IsExpoToken reports whether token looks like an Expo push token
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// Send delivers messages, skipping those without a valid token. Per-ticket
// errors are logged; only transport failures are returned.
func (c *Client) Send(ctx context.Context, messages ...Message) error {
	valid := make([]Message, 0, len(messages))
	for _, m := range messages {
		if IsExpoToken(m.To) {
			if m.Sound == "" {
				m.Sound = "default"
			}
			valid = append(valid, m)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "expo", "push.send")
	defer span.End()

	var out sendResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(valid).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		telemetry.RecordExternalCallResult(span, 0, err)
		return fmt.Errorf("push request failed: %w", err)
	}
	if resp.IsError() {
		err := fmt.Errorf("push service returned %d", resp.StatusCode())
		telemetry.RecordExternalCallResult(span, resp.StatusCode(), err)
		return err
	}
	telemetry.RecordExternalCallResult(span, resp.StatusCode(), nil)

	for i, t := range out.Data {
		if t.Status == "error" && i < len(valid) {
			logger.Log.Warn("Push ticket error",
				zap.String("token", valid[i].To),
				zap.String("message", t.Message),
			)
		}
	}
	return nil
}

// SendAsync sends in the background with its own timeout so the caller's
// request is never delayed or failed by push delivery.
func SendAsync(sender Sender, messages ...Message) {
	if sender == nil || len(messages) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := sender.Send(ctx, messages...)
		metrics.Get().PushNotificationsTotal.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			logger.WarnWithFields("Failed to send push notification", err)
		}
	}()
}
