package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "ventas@europa.mx"}, nil)
	assert.Nil(t, sender)
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "ventas@europa.mx"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Fraccionamiento Europa", sender.fromName)
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "a@b.mx", Subject: "x", Body: "y"})
	assert.Error(t, err)
}

type fakeSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "bot@europa.mx"}, logging.Discard())
	require.NotNil(t, sender)

	err := sender.Send(context.Background(), EmailMessage{To: "ventas@europa.mx", Subject: "Solicitud", Body: "hola"})
	require.NoError(t, err)
	assert.Equal(t, `"Fraccionamiento Europa" <bot@europa.mx>`, aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"ventas@europa.mx"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "hola", aws.ToString(client.input.Content.Simple.Body.Text.Data))
	assert.Nil(t, client.input.Content.Simple.Body.Html)
	assert.Empty(t, client.input.EmailTags)
	assert.Empty(t, client.input.ReplyToAddresses)
}

func TestSESSender_SendTagsAndReplyTo(t *testing.T) {
	client := &fakeSES{}
	sender := NewSESSender(client, SESConfig{FromEmail: "bot@europa.mx", FromName: "Bot"}, logging.Discard())

	err := sender.Send(context.Background(), EmailMessage{
		To:       "ventas@europa.mx",
		ReplyTo:  "gerencia@europa.mx",
		Subject:  "Solicitud",
		Body:     "hola",
		HTML:     "<p>hola</p>",
		Category: CategoryAdvisorHandoff,
	})
	require.NoError(t, err)
	assert.Equal(t, "\"Bot\" <bot@europa.mx>", aws.ToString(client.input.FromEmailAddress))
	assert.Equal(t, []string{"gerencia@europa.mx"}, client.input.ReplyToAddresses)
	require.Len(t, client.input.EmailTags, 1)
	assert.Equal(t, "advisor_handoff", aws.ToString(client.input.EmailTags[0].Value))
	assert.Equal(t, "<p>hola</p>", aws.ToString(client.input.Content.Simple.Body.Html.Data))
}

func TestBuildSendGridMail(t *testing.T) {
	from := mail.NewEmail("Fraccionamiento Europa", "bot@europa.mx")
	m := buildSendGridMail(from, EmailMessage{
		To:       "ventas@europa.mx",
		ToName:   "Laura",
		Subject:  "Solicitud",
		Body:     "hola",
		HTML:     "<p>hola</p>",
		ReplyTo:  "gerencia@europa.mx",
		Category: CategoryAdvisorHandoff,
	})

	assert.Equal(t, "Solicitud", m.Subject)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "ventas@europa.mx", m.Personalizations[0].To[0].Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "text/html", m.Content[1].Type)
	assert.Equal(t, "gerencia@europa.mx", m.ReplyTo.Address)
	assert.Equal(t, []string{"advisor_handoff"}, m.Categories)
}

func TestSESSender_SendError(t *testing.T) {
	sender := NewSESSender(&fakeSES{err: errors.New("throttled")}, SESConfig{FromEmail: "bot@europa.mx"}, logging.Discard())
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "x@y.mx"}))
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestStubEmailSender_RecordsMessages(t *testing.T) {
	sender := NewStubEmailSender(nil)
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "ventas@europa.mx", Subject: "s"}))
	assert.Len(t, sender.Sent, 1)
}

func TestNewEmailSender(t *testing.T) {
	log := logging.Discard()

	_, isStub := NewEmailSender(Config{Provider: "sendgrid"}, nil, log).(*StubEmailSender)
	assert.True(t, isStub, "sendgrid without key falls back to stub")

	_, isSendGrid := NewEmailSender(Config{Provider: "SendGrid", SendGrid: SendGridConfig{APIKey: "k"}}, nil, log).(*SendGridSender)
	assert.True(t, isSendGrid)

	_, isSES := NewEmailSender(Config{Provider: "ses"}, &fakeSES{}, log).(*SESSender)
	assert.True(t, isSES)

	_, isStub = NewEmailSender(Config{Provider: "ses"}, nil, log).(*StubEmailSender)
	assert.True(t, isStub)

	_, isStub = NewEmailSender(Config{}, nil, log).(*StubEmailSender)
	assert.True(t, isStub)
}
