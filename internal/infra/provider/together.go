// internal/infra/provider/together.go
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/provider"
)

const togetherEndpoint = "https://api.together.xyz/v1/chat/completions"

// TogetherVision reads a homework photo through Together's OpenAI-compatible
// chat completions API, sending the image as a base64 data URL.
type TogetherVision struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewTogetherVision(apiKey, model string) *TogetherVision {
	return &TogetherVision{
		apiKey: apiKey,
		model:  model,
		// The ensemble enforces its own per-call deadline; this is a
		// safety net for calls made outside it.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (v *TogetherVision) Label() string { return "together-vision" }

type togetherRequest struct {
	Model     string            `json:"model"`
	Messages  []togetherMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
}

type togetherMessage struct {
	Role    string         `json:"role"`
	Content []togetherPart `json:"content"`
}

type togetherPart struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	ImageURL *togetherImageURL `json:"image_url,omitempty"`
}

type togetherImageURL struct {
	URL string `json:"url"`
}

type togetherResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (v *TogetherVision) Extract(ctx context.Context, img provider.Image) (provider.Extraction, error) {
	start := time.Now()
	dataURL := fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))

	body, err := json.Marshal(togetherRequest{
		Model: v.model,
		Messages: []togetherMessage{{
			Role: "user",
			Content: []togetherPart{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &togetherImageURL{URL: dataURL}},
			},
		}},
		MaxTokens: 2048,
	})
	if err != nil {
		return provider.Extraction{}, fmt.Errorf("failed to encode Together request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, togetherEndpoint, bytes.NewReader(body))
	if err != nil {
		return provider.Extraction{}, err
	}
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return provider.Extraction{}, fmt.Errorf("Together vision call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return provider.Extraction{}, fmt.Errorf("failed to read Together response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return provider.Extraction{}, fmt.Errorf("Together returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	parsed := togetherResponse{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return provider.Extraction{}, fmt.Errorf("failed to decode Together response: %w", err)
	}
	if parsed.Error != nil {
		return provider.Extraction{}, fmt.Errorf("Together error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return provider.Extraction{}, fmt.Errorf("Together returned no choices")
	}

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	confidence := 0.7
	if len(text) > 10 {
		confidence = 0.9
	}
	return provider.Extraction{
		Text:       text,
		Confidence: confidence,
		Latency:    time.Since(start),
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
