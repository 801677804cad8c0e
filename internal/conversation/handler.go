package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/whatsapp-leadbot/internal/content"
	"github.com/wolfman30/whatsapp-leadbot/pkg/logging"
)

// MessageProcessor is satisfied by *Processor.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg InboundMessage) *Result
}

// Handler exposes the processor over HTTP without sending anything to WhatsApp.
type Handler struct {
	processor MessageProcessor
	logger    *logging.Logger
}

func NewHandler(processor MessageProcessor, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{processor: processor, logger: logger}
}

// TestMessageRequest is the body of POST /api/test/process-message.
type TestMessageRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
	MessageID   string `json:"messageId,omitempty"`
	Name        string `json:"name,omitempty"`
}

// TestMessageResponse mirrors Result for API clients.
type TestMessageResponse struct {
	Responses     []json.RawMessage `json:"responses"`
	ShouldSend    bool              `json:"shouldSend"`
	WasDetected   bool              `json:"wasDetected"`
	IsFallback    bool              `json:"isFallback"`
	Intent        string            `json:"intent,omitempty"`
	Confidence    float64           `json:"confidence,omitempty"`
	FallbackLevel int               `json:"fallbackLevel,omitempty"`
}

// ProcessTestMessage handles POST /api/test/process-message.
func (h *Handler) ProcessTestMessage(w http.ResponseWriter, r *http.Request) {
	var req TestMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode test message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "phoneNumber and message are required", http.StatusBadRequest)
		return
	}
	if req.MessageID == "" {
		req.MessageID = "test-" + uuid.NewString()
	}

	res := h.processor.ProcessMessage(r.Context(), InboundMessage{
		From:      req.PhoneNumber,
		MessageID: req.MessageID,
		Text:      req.Message,
		Name:      req.Name,
	})

	out := TestMessageResponse{
		Responses:     make([]json.RawMessage, 0, len(res.Responses)),
		ShouldSend:    res.ShouldSend,
		WasDetected:   res.WasDetected,
		IsFallback:    res.IsFallback,
		Intent:        res.Intent,
		Confidence:    res.Confidence,
		FallbackLevel: res.FallbackLevel,
	}
	for _, resp := range res.Responses {
		raw, err := encodeResponse(resp)
		if err != nil {
			h.logger.Error("failed to encode response", "error", err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		out.Responses = append(out.Responses, raw)
	}
	h.writeJSON(w, http.StatusOK, out)
}

func encodeResponse(r content.Response) (json.RawMessage, error) {
	switch v := r.(type) {
	case content.Fragmented:
		return content.MarshalFragmented(v)
	default:
		return json.Marshal(content.Summary(r))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
