// internal/infra/provider/gemini.go
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/provider"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient owns the shared genai connection both Gemini adapters run on.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Vision returns the client wrapped as an OCR extractor.
func (g *GeminiClient) Vision() *GeminiVision { return &GeminiVision{client: g} }

// Structurer returns the client wrapped as a text structurer.
func (g *GeminiClient) Structurer() *GeminiStructurer { return &GeminiStructurer{client: g} }

const visionPrompt = `Extract ALL text from this homework photo exactly as written.
Preserve line breaks. Include handwritten and printed text. The text may mix
English, Malay and Chinese. Return only the extracted text, nothing else.`

// GeminiVision reads a homework photo through the Gemini multimodal API.
type GeminiVision struct {
	client *GeminiClient
}

func (v *GeminiVision) Label() string { return "gemini-vision" }

func (v *GeminiVision) Extract(ctx context.Context, img provider.Image) (provider.Extraction, error) {
	start := time.Now()
	model := v.client.client.GenerativeModel(v.client.model)
	resp, err := model.GenerateContent(ctx,
		genai.Text(visionPrompt),
		&genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
	)
	if err != nil {
		return provider.Extraction{}, fmt.Errorf("Gemini vision call failed: %w", err)
	}
	text, err := firstText(resp)
	if err != nil {
		return provider.Extraction{}, err
	}

	// The API exposes no confidence; long responses are almost always real
	// readings, one-liners are often refusals or noise.
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

const structurePromptTemplate = `You are a homework extraction assistant for parents in Malaysia and Singapore.
Extract homework information from OCR text and respond with a JSON object:
- subject: the subject or course name (e.g. Mathematics, Science, Bahasa Melayu)
- title: a brief title for the homework
- description: full description of what needs to be done
- due_date: due date in YYYY-MM-DD format if found, otherwise null
- priority: priority from 1-5 (5 being highest urgency)
- keywords: list of key terms from the homework
- summary: one short sentence a parent can read at a glance
Today's date is %s. The text language is %q.%s

OCR text:
%s`

// draftPayload mirrors the JSON schema the prompt asks for.
type draftPayload struct {
	Subject     string   `json:"subject"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	DueDate     *string  `json:"due_date"`
	Priority    int      `json:"priority"`
	Keywords    []string `json:"keywords"`
	Summary     string   `json:"summary"`
	Confidence  float64  `json:"confidence,omitempty"`
}

// GeminiStructurer turns merged OCR text into a structured homework draft
// using JSON-mode generation.
type GeminiStructurer struct {
	client *GeminiClient
}

func (s *GeminiStructurer) Label() string { return "gemini" }

func (s *GeminiStructurer) Structure(ctx context.Context, req provider.StructureRequest) (provider.Draft, error) {
	model := s.client.client.GenerativeModel(s.client.model)
	model.ResponseMIMEType = "application/json"

	correction := ""
	if req.Correction != "" {
		correction = fmt.Sprintf("\nYour previous response was rejected: %s. Return only the JSON object described above.", req.Correction)
	}
	prompt := fmt.Sprintf(structurePromptTemplate,
		req.Now.Format("2006-01-02"), req.Language, correction, req.Text)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return provider.Draft{}, fmt.Errorf("Gemini structuring call failed: %w", err)
	}
	raw, err := firstText(resp)
	if err != nil {
		return provider.Draft{}, err
	}
	return parseDraft(raw, req.Location)
}

// parseDraft decodes the provider's JSON into a Draft. Any schema mismatch
// comes back as a MalformedDraft so the agent can quote it on the retry.
func parseDraft(raw string, loc *time.Location) (provider.Draft, error) {
	payload := draftPayload{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return provider.Draft{}, provider.MalformedDraft(err)
	}
	draft := provider.Draft{
		Subject:     payload.Subject,
		Title:       payload.Title,
		Description: payload.Description,
		Priority:    payload.Priority,
		Keywords:    payload.Keywords,
		Summary:     payload.Summary,
		Confidence:  payload.Confidence,
	}
	if payload.DueDate != nil && *payload.DueDate != "" {
		due, err := time.ParseInLocation("2006-01-02", *payload.DueDate, loc)
		if err != nil {
			return provider.Draft{}, provider.MalformedDraft(fmt.Errorf("due_date %q: %w", *payload.DueDate, err))
		}
		// Due at end of the school day, not midnight.
		due = time.Date(due.Year(), due.Month(), due.Day(), 18, 0, 0, 0, loc)
		draft.DueDate = &due
	}
	return draft, nil
}

func firstText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("Gemini returned an empty response")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("Gemini returned a non-text part")
	}
	return strings.TrimSpace(string(text)), nil
}
