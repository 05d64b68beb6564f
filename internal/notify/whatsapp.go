package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const graphAPIBase = "https://graph.facebook.com/v20.0"

// WhatsApp sends messages through the Meta Cloud API using a permanent
// access token and a registered phone number id.
type WhatsApp struct {
	token   string
	phoneID string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewWhatsApp(token, phoneID string, log zerolog.Logger) *WhatsApp {
	return &WhatsApp{
		token:   token,
		phoneID: phoneID,
		baseURL: graphAPIBase,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log.With().Str("component", "whatsapp").Logger(),
	}
}

type waMessage struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             *waText     `json:"text,omitempty"`
	Document         *waDocument `json:"document,omitempty"`
}

type waText struct {
	Body string `json:"body"`
}

type waDocument struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

// SendText delivers a plain text message.
func (w *WhatsApp) SendText(ctx context.Context, phone, text string) error {
	return w.post(ctx, waMessage{
		MessagingProduct: "whatsapp",
		To:               normalizePhone(phone),
		Type:             "text",
		Text:             &waText{Body: text},
	})
}

// SendDocument delivers a document by public URL, typically the invoice PDF.
func (w *WhatsApp) SendDocument(ctx context.Context, phone, url, caption string) error {
	return w.post(ctx, waMessage{
		MessagingProduct: "whatsapp",
		To:               normalizePhone(phone),
		Type:             "document",
		Document:         &waDocument{Link: url, Caption: caption},
	})
}

func (w *WhatsApp) post(ctx context.Context, msg waMessage) error {
	if w.token == "" || w.phoneID == "" {
		return fmt.Errorf("whatsapp is not configured")
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode whatsapp message: %w", err)
	}
	url := fmt.Sprintf("%s/%s/messages", w.baseURL, w.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp api returned %d: %s", resp.StatusCode, string(detail))
	}
	w.log.Info().Str("to", msg.To).Str("type", msg.Type).Msg("whatsapp message sent")
	return nil
}

// normalizePhone strips separators and applies the default country code to
// bare 10-digit Indian numbers.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 10 {
		return "91" + digits
	}
	return digits
}
