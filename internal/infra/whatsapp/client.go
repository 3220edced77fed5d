// internal/infra/whatsapp/client.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"homework_reminder_bot/internal/domain/delivery"
)

const graphAPIBase = "https://graph.facebook.com/v19.0"

// Sender implements delivery.Sender over the WhatsApp Cloud API. Unlike
// Telegram, every delivered message has a per-message cost which is recorded
// on the message log.
type Sender struct {
	token      string
	phoneID    string
	costPerMsg float64
	httpClient *http.Client
}

func NewSender(token, phoneID string, costPerMsg float64) *Sender {
	return &Sender{
		token:      token,
		phoneID:    phoneID,
		costPerMsg: costPerMsg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Sender) Channel() delivery.Channel { return delivery.ChannelWhatsApp }

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Deliver sends a text message to the given phone number (E.164, digits
// only).
func (s *Sender) Deliver(ctx context.Context, recipient, content string) (delivery.Receipt, error) {
	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               recipient,
		Type:             "text",
		Text:             textBody{Body: content},
	})
	if err != nil {
		return delivery.Receipt{}, fmt.Errorf("failed to encode WhatsApp request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", graphAPIBase, s.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return delivery.Receipt{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return delivery.Receipt{}, fmt.Errorf("WhatsApp send failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return delivery.Receipt{}, fmt.Errorf("failed to read WhatsApp response: %w", err)
	}

	parsed := sendResponse{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return delivery.Receipt{}, fmt.Errorf("failed to decode WhatsApp response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return delivery.Receipt{}, fmt.Errorf("WhatsApp error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK || len(parsed.Messages) == 0 {
		return delivery.Receipt{}, fmt.Errorf("WhatsApp returned status %d without a message id", resp.StatusCode)
	}

	return delivery.Receipt{ExternalID: parsed.Messages[0].ID, CostUSD: s.costPerMsg}, nil
}
