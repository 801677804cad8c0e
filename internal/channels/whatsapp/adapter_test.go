package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

type fakeSender struct {
	read       []string
	texts      []string
	fragmented []content.Fragmented
	textErr    error
}

func (f *fakeSender) SendText(_ context.Context, _ string, body string) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	f.texts = append(f.texts, body)
	return "wamid.out", nil
}

func (f *fakeSender) SendFragmented(_ context.Context, _ string, msg content.Fragmented) ([]string, error) {
	f.fragmented = append(f.fragmented, msg)
	return []string{"wamid.f"}, nil
}

func (f *fakeSender) MarkAsRead(_ context.Context, id string) error {
	f.read = append(f.read, id)
	return nil
}

type fixedProcessor struct {
	got    []conversation.InboundMessage
	result *conversation.Result
}

func (p *fixedProcessor) ProcessMessage(_ context.Context, msg conversation.InboundMessage) *conversation.Result {
	p.got = append(p.got, msg)
	return p.result
}

type sendCounter map[string]int

func (c sendCounter) ObserveSend(kind, status string) { c[kind+":"+status]++ }

func TestAdapterSendsResponsesInOrder(t *testing.T) {
	sender := &fakeSender{}
	proc := &fixedProcessor{result: &conversation.Result{
		ShouldSend: true,
		Responses: []content.Response{
			content.Text{Body: "Con gusto te la comparto nuevamente 😊"},
			content.Fragmented{Fragments: []content.Fragment{content.TextFragment{Content: "Lotes"}}},
			content.Text{Body: "¿Algo más?"},
		},
	}}
	counter := sendCounter{}
	a := NewAdapter(sender, proc, "tok", "", counter, logging.Discard())

	w := httptest.NewRecorder()
	a.HandleWebhook(w, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewReader([]byte(textPayload))))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"wamid.IN1"}, sender.read)
	require.Len(t, proc.got, 1)
	assert.Equal(t, "Ana", proc.got[0].Name)
	assert.Equal(t, []string{"Con gusto te la comparto nuevamente 😊", "¿Algo más?"}, sender.texts)
	assert.Len(t, sender.fragmented, 1)
	assert.Equal(t, 2, counter["text:ok"])
	assert.Equal(t, 1, counter["fragmented:ok"])
}

func TestAdapterSkipsWhenNothingToSend(t *testing.T) {
	sender := &fakeSender{}
	a := NewAdapter(sender, &fixedProcessor{result: &conversation.Result{}}, "tok", "", nil, logging.Discard())

	a.HandleMessage(context.Background(), InboundMessage{From: "521", MessageID: "m1", Text: "hola"})
	assert.Empty(t, sender.texts)
	assert.Equal(t, []string{"m1"}, sender.read)
}

func TestAdapterStopsAfterSendFailure(t *testing.T) {
	sender := &fakeSender{textErr: errors.New("graph down")}
	counter := sendCounter{}
	proc := &fixedProcessor{result: &conversation.Result{
		ShouldSend: true,
		Responses:  content.Texts("uno", "dos"),
	}}
	a := NewAdapter(sender, proc, "tok", "", counter, logging.Discard())

	a.HandleMessage(context.Background(), InboundMessage{From: "521", MessageID: "m1", Text: "hola"})
	assert.Equal(t, 1, counter["text:error"])
	assert.Empty(t, sender.fragmented)
}

func TestAdapterVerification(t *testing.T) {
	a := NewAdapter(&fakeSender{}, &fixedProcessor{}, "tok", "", nil, logging.Discard())
	w := httptest.NewRecorder()
	a.HandleVerification(w, httptest.NewRequest(http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())
}
