package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/mistapp/backend/internal/logger"
	"go.uber.org/zap"
)

// sesAPI is the subset of the SES client used here
type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// EmailService handles sending emails via AWS SES
type EmailService struct {
	client    sesAPI
	fromEmail string
	fromName  string
}

// NewEmailService creates a new email service using AWS SES
func NewEmailService(region, fromEmail, fromName string) (*EmailService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &EmailService{
		client:    ses.NewFromConfig(cfg),
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendVerificationCode sends the registration code
func (e *EmailService) SendVerificationCode(ctx context.Context, toEmail, code string) error {
	subject := "Your Mist verification code"
	text := fmt.Sprintf("Welcome to Mist!\n\nYour verification code is %s. It expires in 10 minutes.\n", code)
	return e.send(ctx, toEmail, subject, text, codeHTML("Verify your email", "Your verification code is", code))
}

// SendPasswordResetCode sends a password reset code
func (e *EmailService) SendPasswordResetCode(ctx context.Context, toEmail, code string) error {
	subject := "Reset your Mist password"
	text := fmt.Sprintf("Your password reset code is %s. It expires in 10 minutes.\n\nIf you didn't request this, you can ignore this email.\n", code)
	return e.send(ctx, toEmail, subject, text, codeHTML("Reset your password", "Your password reset code is", code))
}

func codeHTML(title, lead, code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; color: #333;">
	<h1>%s</h1>
	<p>%s</p>
	<p style="font-size: 32px; letter-spacing: 6px;"><b>%s</b></p>
	<p style="color: #999; font-size: 12px;">This code expires in 10 minutes.</p>
</body>
</html>`, title, lead, code)
}

func (e *EmailService) buildInput(toEmail, subject, text, html string) *ses.SendEmailInput {
	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	return &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(html),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(text),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
}

func (e *EmailService) send(ctx context.Context, toEmail, subject, text, html string) error {
	if _, err := e.client.SendEmail(ctx, e.buildInput(toEmail, subject, text, html)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	logger.Log.Debug("Email sent", zap.String("to", toEmail), zap.String("subject", subject))
	return nil
}
