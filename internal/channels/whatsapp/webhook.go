package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const businessAccountObject = "whatsapp_business_account"

// WebhookHandler handles Meta webhook verification and inbound messages.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	onMessage   func(ctx context.Context, msg InboundMessage)
}

// NewWebhookHandler creates a webhook handler. Signature checks are skipped
// when appSecret is empty.
func NewWebhookHandler(verifyToken, appSecret string, onMessage func(context.Context, InboundMessage)) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		onMessage:   onMessage,
	}
}

// HandleVerification answers the GET subscription challenge.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if h.verifyToken == "" || token != h.verifyToken {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// HandleInbound acknowledges the event and hands the first text message to
// onMessage. Anything that is not a WhatsApp text message is ignored with 200.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	msg, ok := ExtractMessage(event)
	if !ok {
		writeStatus(w, "ignored")
		return
	}

	// Meta retries unless it gets a quick 200.
	writeStatus(w, "received")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if h.onMessage != nil {
		// Meta may hang up once it has the 200.
		h.onMessage(context.WithoutCancel(r.Context()), msg)
	}
}

// ExtractMessage returns the first text message of a WhatsApp Business event.
func ExtractMessage(event WebhookEvent) (InboundMessage, bool) {
	if event.Object != businessAccountObject || len(event.Entry) == 0 || len(event.Entry[0].Changes) == 0 {
		return InboundMessage{}, false
	}
	value := event.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return InboundMessage{}, false
	}
	m := value.Messages[0]
	if m.Type != "text" || m.Text == nil {
		return InboundMessage{}, false
	}

	msg := InboundMessage{From: m.From, MessageID: m.ID, Text: m.Text.Body}
	if len(value.Contacts) > 0 {
		msg.Name = value.Contacts[0].Profile.Name
	}
	if secs, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		msg.Timestamp = time.Unix(secs, 0)
	}
	return msg, true
}

// VerifySignature verifies the X-Hub-Signature-256 header.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) || signature[:len(prefix)] != prefix {
		return false
	}
	sigHex := signature[len(prefix):]

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(sigHex))
}

func writeStatus(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
