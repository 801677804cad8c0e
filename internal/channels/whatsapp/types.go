package whatsapp

import "time"

// WebhookEvent is the top-level structure Meta posts for WhatsApp Business.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one business account entry.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries the messages and statuses for one phone number.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue is the payload of a change.
type ChangeValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Contacts         []Contact         `json:"contacts,omitempty"`
	Messages         []IncomingMessage `json:"messages,omitempty"`
}

// Contact is the sender profile.
type Contact struct {
	WaID    string         `json:"wa_id"`
	Profile ContactProfile `json:"profile"`
}

// ContactProfile holds the WhatsApp display name.
type ContactProfile struct {
	Name string `json:"name"`
}

// IncomingMessage is a single inbound WhatsApp message.
type IncomingMessage struct {
	From      string    `json:"from"`
	ID        string    `json:"id"`
	Timestamp string    `json:"timestamp"`
	Type      string    `json:"type"`
	Text      *TextBody `json:"text,omitempty"`
}

// TextBody is the body of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// InboundMessage is a parsed text message ready for the conversation engine.
type InboundMessage struct {
	From      string
	MessageID string
	Text      string
	Name      string
	Timestamp time.Time
}

// SendRequest is the Cloud API body for POST /{phone-number-id}/messages.
type SendRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type,omitempty"`
	To               string        `json:"to,omitempty"`
	Type             string        `json:"type,omitempty"`
	Text             *OutgoingText `json:"text,omitempty"`
	Image            *Media        `json:"image,omitempty"`
	Video            *Media        `json:"video,omitempty"`
	Audio            *Media        `json:"audio,omitempty"`
	Document         *Media        `json:"document,omitempty"`
	Location         *Location     `json:"location,omitempty"`
	Contacts         []ContactCard `json:"contacts,omitempty"`
	Status           string        `json:"status,omitempty"`
	MessageID        string        `json:"message_id,omitempty"`
}

// OutgoingText is a text message body.
type OutgoingText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

// Media references a hosted file by link.
type Media struct {
	Link     string `json:"link"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// Location is a map pin.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// ContactCard is a shared vCard.
type ContactCard struct {
	Name   ContactName    `json:"name"`
	Phones []ContactPhone `json:"phones"`
	Org    *ContactOrg    `json:"org,omitempty"`
}

type ContactName struct {
	FormattedName string `json:"formatted_name"`
	FirstName     string `json:"first_name,omitempty"`
	LastName      string `json:"last_name,omitempty"`
}

type ContactPhone struct {
	Phone string `json:"phone"`
	Type  string `json:"type"`
}

type ContactOrg struct {
	Company string `json:"company"`
}

// SendResponse is the Cloud API reply.
type SendResponse struct {
	MessagingProduct string        `json:"messaging_product,omitempty"`
	Messages         []SentMessage `json:"messages,omitempty"`
	Success          bool          `json:"success,omitempty"`
	Error            *APIError     `json:"error,omitempty"`
}

// SentMessage carries the id WhatsApp assigned.
type SentMessage struct {
	ID string `json:"id"`
}

// APIError is the Graph API error envelope.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}
