package email

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	return &ses.SendEmailOutput{}, f.err
}

func TestSendVerificationCode(t *testing.T) {
	fake := &fakeSES{}
	svc := &EmailService{client: fake, fromEmail: "noreply@mist.app", fromName: "Mist"}

	require.NoError(t, svc.SendVerificationCode(context.Background(), "kai@example.com", "123456"))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "Mist <noreply@mist.app>", aws.ToString(in.Source))
	assert.Equal(t, []string{"kai@example.com"}, in.Destination.ToAddresses)
	assert.Contains(t, aws.ToString(in.Message.Body.Text.Data), "123456")
	assert.Contains(t, aws.ToString(in.Message.Body.Html.Data), "123456")
}

func TestSendPasswordResetCodeWrapsErrors(t *testing.T) {
	fake := &fakeSES{err: errors.New("throttled")}
	svc := &EmailService{client: fake, fromEmail: "noreply@mist.app"}

	err := svc.SendPasswordResetCode(context.Background(), "kai@example.com", "654321")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	assert.Equal(t, "noreply@mist.app", aws.ToString(fake.inputs[0].Source))
}
