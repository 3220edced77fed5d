// internal/app/structuring_agent_test.go
package app

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"homework_reminder_bot/internal/domain/provider"
)

type fakeStructurer struct {
	responses []func(req provider.StructureRequest) (provider.Draft, error)
	requests  []provider.StructureRequest
}

func (f *fakeStructurer) Label() string { return "gemini" }

func (f *fakeStructurer) Structure(ctx context.Context, req provider.StructureRequest) (provider.Draft, error) {
	f.requests = append(f.requests, req)
	if len(f.requests) > len(f.responses) {
		return provider.Draft{}, errors.New("unexpected extra call")
	}
	return f.responses[len(f.requests)-1](req)
}

func validDraft() provider.Draft {
	due := time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)
	return provider.Draft{
		Subject:     "Mathematics",
		Title:       "Chapter 5 exercises",
		Description: "Complete exercises 1-10",
		DueDate:     &due,
		Priority:    4,
		Keywords:    []string{"algebra"},
		Summary:     "Maths exercises due Saturday",
	}
}

func newTestAgent(s provider.Structurer) *StructuringAgent {
	return NewStructuringAgent(s, NewRuleExtractor(time.UTC), time.UTC, log.New(io.Discard, "", 0))
}

func TestStructuringAgentHappyPath(t *testing.T) {
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){
		func(provider.StructureRequest) (provider.Draft, error) { return validDraft(), nil },
	}}
	agent := newTestAgent(fake)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	draft, err := agent.Structure(context.Background(), "raw text", "en", 0.6, now)
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if !draft.AIEnhanced || draft.Engine != "gemini" {
		t.Fatalf("draft provenance = (%v, %s), want AI-enhanced gemini", draft.AIEnhanced, draft.Engine)
	}
	// Provider exposed no score: default 0.75, capped by the OCR confidence.
	if draft.Confidence != 0.6 {
		t.Fatalf("confidence = %.2f, want the OCR minimum 0.6", draft.Confidence)
	}
	if len(fake.requests) != 1 || fake.requests[0].Correction != "" {
		t.Fatalf("expected a single call without correction, got %d", len(fake.requests))
	}
}

func TestStructuringAgentCorrectiveRetry(t *testing.T) {
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){
		func(provider.StructureRequest) (provider.Draft, error) {
			return provider.Draft{}, provider.MalformedDraft(errors.New("unexpected token"))
		},
		func(provider.StructureRequest) (provider.Draft, error) { return validDraft(), nil },
	}}
	agent := newTestAgent(fake)

	draft, err := agent.Structure(context.Background(), "raw text", "en", 0.9, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if !draft.AIEnhanced {
		t.Fatal("retry success must still be AI-enhanced")
	}
	if len(fake.requests) != 2 {
		t.Fatalf("calls = %d, want exactly 2", len(fake.requests))
	}
	if fake.requests[1].Correction == "" {
		t.Fatal("retry request must quote the parse error")
	}
}

func TestStructuringAgentFallsBackToRules(t *testing.T) {
	malformed := func(provider.StructureRequest) (provider.Draft, error) {
		return provider.Draft{}, provider.MalformedDraft(errors.New("still not json"))
	}
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){malformed, malformed}}
	agent := newTestAgent(fake)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	draft, err := agent.Structure(context.Background(), "Math homework due 2025-03-20", "en", 0.9, now)
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if draft.AIEnhanced || draft.Engine != "rule-fallback" {
		t.Fatalf("provenance = (%v, %s), want rule fallback", draft.AIEnhanced, draft.Engine)
	}
	if draft.Confidence != RuleFallbackConfidence {
		t.Fatalf("confidence = %.2f, want fixed %.2f", draft.Confidence, RuleFallbackConfidence)
	}
	if draft.Subject != "Mathematics" {
		t.Fatalf("subject = %q", draft.Subject)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("calls = %d, want initial plus one retry only", len(fake.requests))
	}
}

func TestStructuringAgentValidationTriggersRetry(t *testing.T) {
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){
		func(provider.StructureRequest) (provider.Draft, error) {
			d := validDraft()
			d.Title = "   "
			return d, nil
		},
		func(provider.StructureRequest) (provider.Draft, error) { return validDraft(), nil },
	}}
	agent := newTestAgent(fake)

	draft, err := agent.Structure(context.Background(), "raw", "en", 0.9, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if draft.Title != "Chapter 5 exercises" {
		t.Fatalf("title = %q", draft.Title)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("calls = %d, want a retry on empty title", len(fake.requests))
	}
}

func TestStructuringAgentDropsPastDueDate(t *testing.T) {
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){
		func(provider.StructureRequest) (provider.Draft, error) {
			d := validDraft()
			past := time.Date(2024, 1, 5, 18, 0, 0, 0, time.UTC)
			d.DueDate = &past
			d.Priority = 9
			return d, nil
		},
	}}
	agent := newTestAgent(fake)

	draft, err := agent.Structure(context.Background(), "raw", "en", 0.9, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if draft.DueDate != nil {
		t.Fatalf("past due date kept: %s", draft.DueDate)
	}
	if draft.Priority != 5 {
		t.Fatalf("priority = %d, want clamped to 5", draft.Priority)
	}
}

func TestStructuringAgentWithoutProvider(t *testing.T) {
	agent := newTestAgent(nil)
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	draft, err := agent.Structure(context.Background(), "Science experiment report", "en", 0.8, now)
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if draft.AIEnhanced || draft.Engine != "rule-fallback" {
		t.Fatalf("provenance = (%v, %s)", draft.AIEnhanced, draft.Engine)
	}
}

// Personal identifiers in the OCR text must be masked before the request
// reaches the external provider.
func TestStructuringAgentRedactsBeforeProvider(t *testing.T) {
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){
		func(provider.StructureRequest) (provider.Draft, error) { return validDraft(), nil },
	}}
	agent := newTestAgent(fake)
	text := "Complete page 12. Contact cikgu at 012-3456789 or tan@school.my"

	if _, err := agent.Structure(context.Background(), text, "en", 0.9, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	sent := fake.requests[0].Text
	if strings.Contains(sent, "012-3456789") || strings.Contains(sent, "tan@school.my") {
		t.Fatalf("identifiers leaked to the provider: %q", sent)
	}
	if !strings.Contains(sent, "[PHONE]") || !strings.Contains(sent, "[EMAIL]") {
		t.Fatalf("placeholders missing from the request: %q", sent)
	}
	if !strings.Contains(sent, "Complete page 12.") {
		t.Fatalf("homework content damaged: %q", sent)
	}
}

func TestStructuringAgentTransportErrorSkipsRetry(t *testing.T) {
	fake := &fakeStructurer{responses: []func(provider.StructureRequest) (provider.Draft, error){
		func(provider.StructureRequest) (provider.Draft, error) {
			return provider.Draft{}, errors.New("connection refused")
		},
	}}
	agent := newTestAgent(fake)

	draft, err := agent.Structure(context.Background(), "some text", "en", 0.9, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if draft.Engine != "rule-fallback" {
		t.Fatalf("engine = %q, want rule fallback after transport error", draft.Engine)
	}
	if len(fake.requests) != 1 {
		t.Fatalf("calls = %d, transport errors must not be retried", len(fake.requests))
	}
}
