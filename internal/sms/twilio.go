// Package sms sends verification codes by text message through Twilio's
// REST API.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mistapp/backend/internal/logger"
	"github.com/mistapp/backend/internal/telemetry"
	"go.uber.org/zap"
)

// DefaultBaseURL is Twilio's REST API root
const DefaultBaseURL = "https://api.twilio.com/2010-04-01"

// Config holds Twilio credentials
type Config struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
}

// TwilioClient sends SMS via Twilio
type TwilioClient struct {
	http *resty.Client
	cfg  Config
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewTwilioClient creates a Twilio client
func NewTwilioClient(cfg Config) *TwilioClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	httpClient := resty.NewWithClient(telemetry.NewInstrumentedHTTPClient(10 * time.Second))
	httpClient.SetBaseURL(cfg.BaseURL)
	httpClient.SetBasicAuth(cfg.AccountSID, cfg.AuthToken)

	return &TwilioClient{http: httpClient, cfg: cfg}
}

// SendCode texts a verification code to phoneNumber
func (t *TwilioClient) SendCode(ctx context.Context, phoneNumber, code string) error {
	return t.Send(ctx, phoneNumber, fmt.Sprintf("Your Mist verification code is %s", code))
}

// Send texts body to phoneNumber
func (t *TwilioClient) Send(ctx context.Context, phoneNumber, body string) error {
	ctx, span := telemetry.TraceExternalCall(ctx, "twilio", "messages.create")
	defer span.End()

	var apiErr twilioError
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   phoneNumber,
			"From": t.cfg.FromNumber,
			"Body": body,
		}).
		SetError(&apiErr).
		Post(fmt.Sprintf("/Accounts/%s/Messages.json", t.cfg.AccountSID))
	if err != nil {
		telemetry.RecordExternalCallResult(span, 0, err)
		return fmt.Errorf("sms request failed: %w", err)
	}
	if resp.IsError() {
		err := fmt.Errorf("twilio returned %d: %s", resp.StatusCode(), apiErr.Message)
		telemetry.RecordExternalCallResult(span, resp.StatusCode(), err)
		return err
	}

	telemetry.RecordExternalCallResult(span, resp.StatusCode(), nil)
	logger.Log.Debug("SMS sent", zap.String("to", phoneNumber))
	return nil
}
