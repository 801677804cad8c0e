package support

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-leadbot/internal/appointment"
	"github.com/wolfman30/whatsapp-leadbot/internal/notify"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

type memoryStore struct {
	created []NewRequest
	err     error
}

func (s *memoryStore) Create(_ context.Context, req NewRequest) (*AdvisorRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, req)
	return &AdvisorRequest{
		ID:                   uuid.New(),
		Phone:                req.Phone,
		Name:                 req.Name,
		Reason:               ReasonFallbackLimit,
		LastUserMessage:      req.LastUserMessage,
		LeadScore:            req.LeadScore,
		CheckpointsCompleted: req.CheckpointsCompleted,
		Status:               StatusPending,
	}, nil
}

type staticAgents struct {
	agent appointment.AgentConfig
	err   error
}

func (a staticAgents) DefaultAgent(context.Context) (appointment.AgentConfig, error) {
	return a.agent, a.err
}

type recordingTexts struct {
	to   []string
	body []string
	err  error
}

func (r *recordingTexts) SendText(_ context.Context, to, message string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.to = append(r.to, to)
	r.body = append(r.body, message)
	return "wamid.x", nil
}

func TestEscalateNotifiesAdvisorPhoneAndEmail(t *testing.T) {
	store := &memoryStore{}
	texts := &recordingTexts{}
	email := notify.NewStubEmailSender(logging.Discard())
	agent := appointment.DefaultAgent()
	agent.AdvisorPhone = "+525599998888"
	agent.AdvisorEmail = "ventas@europa.mx"

	esc := NewEscalator(store, staticAgents{agent: agent}, texts, email, logging.Discard())
	got, err := esc.Escalate(context.Background(), NewRequest{
		Phone:           "+52 1 5511112222",
		Name:            "Ana López",
		LastUserMessage: "Ana López",
		LeadScore:       45,
		LeadStatus:      "warm",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	require.Len(t, texts.to, 1)
	assert.Equal(t, "+525599998888", texts.to[0])
	assert.Contains(t, texts.body[0], "*Ana López*")
	assert.Contains(t, texts.body[0], "https://wa.me/5215511112222")
	assert.Contains(t, texts.body[0], "45 (warm)")

	require.Len(t, email.Sent, 1)
	assert.Equal(t, "ventas@europa.mx", email.Sent[0].To)
	assert.Equal(t, "Solicitud de asesor: Ana López", email.Sent[0].Subject)
	assert.Equal(t, notify.CategoryAdvisorHandoff, email.Sent[0].Category)
}

func TestEscalateFallsBackToAgentPhone(t *testing.T) {
	texts := &recordingTexts{}
	esc := NewEscalator(&memoryStore{}, staticAgents{agent: appointment.DefaultAgent()}, texts, nil, logging.Discard())

	_, err := esc.Escalate(context.Background(), NewRequest{Phone: "521", Name: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, []string{"+525512345678"}, texts.to)
}

func TestEscalateIgnoresNotificationFailures(t *testing.T) {
	texts := &recordingTexts{err: errors.New("graph down")}
	esc := NewEscalator(&memoryStore{}, staticAgents{err: errors.New("db down")}, texts, nil, logging.Discard())

	got, err := esc.Escalate(context.Background(), NewRequest{Phone: "521", Name: "Ana"})
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, esc.BusinessHours(context.Background()))
}

func TestEscalateStoreFailure(t *testing.T) {
	esc := NewEscalator(&memoryStore{err: errors.New("insert failed")}, nil, nil, nil, logging.Discard())

	_, err := esc.Escalate(context.Background(), NewRequest{Phone: "521"})
	assert.Error(t, err)
}

func TestBusinessHours(t *testing.T) {
	esc := NewEscalator(nil, staticAgents{agent: appointment.DefaultAgent()}, nil, nil, nil)
	assert.Equal(t, "lunes a viernes 9:00 AM - 6:00 PM", esc.BusinessHours(context.Background()))

	var nilEsc *Escalator
	assert.Empty(t, nilEsc.BusinessHours(context.Background()))
}
