package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/whatsapp-leadbot/internal/content"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v18.0"
	defaultHTTPTimeout  = 10 * time.Second
)

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	phoneNumberID string
	accessToken   string
	graphAPIBase  string
	httpClient    *http.Client
	tracer        trace.Tracer
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Cloud API client for one business phone number.
func NewClient(phoneNumberID, accessToken string) *Client {
	return &Client{
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		graphAPIBase:  defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: defaultHTTPTimeout},
		tracer:        otel.Tracer("leadbot/whatsapp"),
		sleep:         sleepContext,
	}
}

// SetGraphAPIBase overrides the Graph API base URL (useful for testing).
func (c *Client) SetGraphAPIBase(base string) {
	if base != "" {
		c.graphAPIBase = strings.TrimRight(base, "/")
	}
}

// SendText sends a plain text message with link previews enabled.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.sendMessage(ctx, SendRequest{To: to, Type: "text", Text: &OutgoingText{PreviewURL: true, Body: body}})
}

// SendImage sends an image by URL.
func (c *Client) SendImage(ctx context.Context, to, url, caption string) (string, error) {
	return c.sendMessage(ctx, SendRequest{To: to, Type: "image", Image: &Media{Link: url, Caption: caption}})
}

// SendVideo sends a video by URL.
func (c *Client) SendVideo(ctx context.Context, to, url, caption string) (string, error) {
	return c.sendMessage(ctx, SendRequest{To: to, Type: "video", Video: &Media{Link: url, Caption: caption}})
}

// SendAudio sends an audio file by URL.
func (c *Client) SendAudio(ctx context.Context, to, url string) (string, error) {
	return c.sendMessage(ctx, SendRequest{To: to, Type: "audio", Audio: &Media{Link: url}})
}

// SendDocument sends a document (usually a PDF) by URL.
func (c *Client) SendDocument(ctx context.Context, to, url, filename, caption string) (string, error) {
	return c.sendMessage(ctx, SendRequest{To: to, Type: "document", Document: &Media{Link: url, Filename: filename, Caption: caption}})
}

// SendLocation sends a map pin.
func (c *Client) SendLocation(ctx context.Context, to string, latitude, longitude float64, name, address string) (string, error) {
	return c.sendMessage(ctx, SendRequest{To: to, Type: "location", Location: &Location{
		Latitude:  latitude,
		Longitude: longitude,
		Name:      name,
		Address:   address,
	}})
}

// SendContact shares a contact card. The first word of name becomes the
// first name.
func (c *Client) SendContact(ctx context.Context, to, name, phone, organization string) (string, error) {
	first, last, _ := strings.Cut(strings.TrimSpace(name), " ")
	card := ContactCard{
		Name:   ContactName{FormattedName: name, FirstName: first, LastName: strings.TrimSpace(last)},
		Phones: []ContactPhone{{Phone: phone, Type: "MOBILE"}},
	}
	if organization != "" {
		card.Org = &ContactOrg{Company: organization}
	}
	return c.sendMessage(ctx, SendRequest{To: to, Type: "contacts", Contacts: []ContactCard{card}})
}

// MarkAsRead shows the blue ticks for an inbound message.
func (c *Client) MarkAsRead(ctx context.Context, messageID string) error {
	_, err := c.send(ctx, "read", SendRequest{MessagingProduct: "whatsapp", Status: "read", MessageID: messageID})
	return err
}

// SendFragmented sends each fragment in order, waiting its delay first. It
// stops at the first failure and returns the ids already delivered.
func (c *Client) SendFragmented(ctx context.Context, to string, msg content.Fragmented) ([]string, error) {
	ids := make([]string, 0, len(msg.Fragments))
	for i, frag := range msg.Fragments {
		if err := c.sleep(ctx, frag.Delay()); err != nil {
			return ids, fmt.Errorf("whatsapp: fragment %d: %w", i, err)
		}

		var id string
		var err error
		switch f := frag.(type) {
		case content.TextFragment:
			id, err = c.SendText(ctx, to, f.Content)
		case content.ImageFragment:
			id, err = c.SendImage(ctx, to, f.URL, f.Caption)
		case content.VideoFragment:
			id, err = c.SendVideo(ctx, to, f.URL, f.Caption)
		case content.AudioFragment:
			id, err = c.SendAudio(ctx, to, f.URL)
		case content.DocumentFragment:
			id, err = c.SendDocument(ctx, to, f.URL, f.Filename, f.Caption)
		case content.LocationFragment:
			id, err = c.SendLocation(ctx, to, f.Latitude, f.Longitude, f.Name, f.Address)
		case content.ContactFragment:
			id, err = c.SendContact(ctx, to, f.Name, f.Phone, f.Organization)
		default:
			err = fmt.Errorf("unsupported fragment %T", frag)
		}
		if err != nil {
			return ids, fmt.Errorf("whatsapp: fragment %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *Client) sendMessage(ctx context.Context, req SendRequest) (string, error) {
	req.MessagingProduct = "whatsapp"
	req.RecipientType = "individual"
	resp, err := c.send(ctx, req.Type, req)
	if err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", fmt.Errorf("whatsapp: response without message id")
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) send(ctx context.Context, kind string, req SendRequest) (*SendResponse, error) {
	ctx, span := c.tracer.Start(ctx, "whatsapp.send")
	defer span.End()
	span.SetAttributes(attribute.String("whatsapp.kind", kind))

	resp, err := c.do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.graphAPIBase, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whatsapp: read response: %w", err)
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil {
		return nil, fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	if sendResp.Error != nil {
		return &sendResp, fmt.Errorf("whatsapp: API error %d: %s", sendResp.Error.Code, sendResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return &sendResp, fmt.Errorf("whatsapp: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return &sendResp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
