package whatsapp

import (
	"context"
	"net/http"

	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// Sender is the outbound half of the Cloud API client.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendFragmented(ctx context.Context, to string, msg content.Fragmented) ([]string, error)
	MarkAsRead(ctx context.Context, messageID string) error
}

// Processor produces the bot's answer to an inbound message.
type Processor interface {
	ProcessMessage(ctx context.Context, msg conversation.InboundMessage) *conversation.Result
}

// SendObserver records outbound delivery outcomes.
type SendObserver interface {
	ObserveSend(kind, status string)
}

// Adapter connects the WhatsApp webhook to the conversation engine and
// delivers its replies.
type Adapter struct {
	sender    Sender
	processor Processor
	webhook   *WebhookHandler
	observer  SendObserver
	logger    *logging.Logger
}

// NewAdapter creates the WhatsApp channel adapter.
func NewAdapter(sender Sender, processor Processor, verifyToken, appSecret string, observer SendObserver, logger *logging.Logger) *Adapter {
	if logger == nil {
		logger = logging.Default()
	}
	a := &Adapter{
		sender:    sender,
		processor: processor,
		observer:  observer,
		logger:    logger,
	}
	a.webhook = NewWebhookHandler(verifyToken, appSecret, a.HandleMessage)
	return a
}

// HandleVerification handles GET /webhooks/whatsapp.
func (a *Adapter) HandleVerification(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleVerification(w, r)
}

// HandleWebhook handles POST /webhooks/whatsapp.
func (a *Adapter) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	a.webhook.HandleInbound(w, r)
}

// HandleMessage runs one inbound message through the processor and sends
// every response in order. Delivery errors are logged; the remaining
// responses are skipped.
func (a *Adapter) HandleMessage(ctx context.Context, msg InboundMessage) {
	a.logger.Info("whatsapp: inbound message", "from", msg.From, "message_id", msg.MessageID)

	if err := a.sender.MarkAsRead(ctx, msg.MessageID); err != nil {
		a.logger.Warn("whatsapp: mark as read failed", "message_id", msg.MessageID, "error", err)
	}

	res := a.processor.ProcessMessage(ctx, conversation.InboundMessage{
		From:      msg.From,
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Name:      msg.Name,
	})
	if res == nil || !res.ShouldSend {
		return
	}

	for _, resp := range res.Responses {
		if err := a.deliver(ctx, msg.From, resp); err != nil {
			a.logger.Error("whatsapp: failed to send response",
				"to", msg.From,
				"response", content.Summary(resp),
				"error", err,
			)
			return
		}
	}
	a.logger.Info("whatsapp: responses sent",
		"to", msg.From,
		"count", len(res.Responses),
		"intent", res.Intent,
		"fallback", res.IsFallback,
	)
}

func (a *Adapter) deliver(ctx context.Context, to string, resp content.Response) error {
	var kind string
	var err error
	switch r := resp.(type) {
	case content.Text:
		kind = "text"
		_, err = a.sender.SendText(ctx, to, r.Body)
	case content.Fragmented:
		kind = "fragmented"
		_, err = a.sender.SendFragmented(ctx, to, r)
	default:
		return nil
	}

	if a.observer != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		a.observer.ObserveSend(kind, status)
	}
	return err
}
