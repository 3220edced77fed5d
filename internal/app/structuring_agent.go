// internal/app/structuring_agent.go
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/provider"
)

// DefaultDraftConfidence stands in when a generative provider does not
// expose a confidence score of its own.
const DefaultDraftConfidence = 0.75

// StructuredDraft is the agent's validated output, ready for persistence by
// the orchestrator.
type StructuredDraft struct {
	provider.Draft
	// AIEnhanced is false when the deterministic rule extractor produced
	// the draft.
	AIEnhanced bool
	// Engine labels the strategy that produced the draft.
	Engine string
}

// StructuringAgent turns merged OCR text into a validated draft. Strategies
// are tried in order: one structuring call, one corrective retry quoting the
// parse error, then the rule-based extractor.
type StructuringAgent struct {
	structurer provider.Structurer // nil when no generative provider is configured
	rules      *RuleExtractor
	loc        *time.Location
	logger     *log.Logger
}

func NewStructuringAgent(structurer provider.Structurer, rules *RuleExtractor, loc *time.Location, logger *log.Logger) *StructuringAgent {
	if loc == nil {
		loc = time.UTC
	}
	return &StructuringAgent{structurer: structurer, rules: rules, loc: loc, logger: logger}
}

// Structure produces a validated draft for the given text. ocrConfidence is
// the ensemble's effective confidence; the overall draft confidence is the
// minimum of it and the structuring provider's own score.
func (a *StructuringAgent) Structure(ctx context.Context, text, language string, ocrConfidence float64, now time.Time) (StructuredDraft, error) {
	if a.structurer != nil {
		draft, err := a.structureWithRetry(ctx, text, language, now)
		if err == nil {
			if draft.Confidence <= 0 {
				draft.Confidence = DefaultDraftConfidence
			}
			if ocrConfidence < draft.Confidence {
				draft.Confidence = ocrConfidence
			}
			return StructuredDraft{Draft: draft, AIEnhanced: true, Engine: a.structurer.Label()}, nil
		}
		if ctx.Err() != nil {
			return StructuredDraft{}, ctx.Err()
		}
		a.logger.Printf("WARN: structuring provider %s exhausted (%v), using rule-based fallback", a.structurer.Label(), err)
	}

	draft := a.rules.Extract(text, now)
	a.sanitize(&draft, now)
	return StructuredDraft{Draft: draft, AIEnhanced: false, Engine: "rule-fallback"}, nil
}

// structureWithRetry performs the initial call plus at most one corrective
// follow-up that quotes the validation or parse error back to the provider.
func (a *StructuringAgent) structureWithRetry(ctx context.Context, text, language string, now time.Time) (provider.Draft, error) {
	// Personal identifiers never leave for the external provider.
	redacted := RedactForAI(text)
	if redacted != text {
		a.logger.Printf("INFO: masked personal identifiers before structuring call")
	}
	req := provider.StructureRequest{
		Text:     redacted,
		Language: language,
		Now:      now,
		Location: a.loc,
	}

	draft, err := a.structurer.Structure(ctx, req)
	if err == nil {
		err = a.validate(&draft, now)
	}
	if err == nil {
		return draft, nil
	}
	if ctx.Err() != nil {
		return provider.Draft{}, err
	}
	if !errors.Is(err, provider.ErrMalformedDraft) && !errors.Is(err, errInvalidDraft) {
		return provider.Draft{}, err
	}

	a.logger.Printf("INFO: structuring attempt rejected (%v), sending corrective retry", err)
	req.Correction = err.Error()
	draft, retryErr := a.structurer.Structure(ctx, req)
	if retryErr == nil {
		retryErr = a.validate(&draft, now)
	}
	if retryErr != nil {
		return provider.Draft{}, fmt.Errorf("corrective retry failed: %w", retryErr)
	}
	return draft, nil
}

var errInvalidDraft = errors.New("draft failed validation")

// validate enforces the sanity rules: non-empty title and subject, clamped
// priority, and no silently accepted past due date.
func (a *StructuringAgent) validate(draft *provider.Draft, now time.Time) error {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Subject = strings.TrimSpace(draft.Subject)
	if draft.Title == "" {
		return fmt.Errorf("%w: title is empty", errInvalidDraft)
	}
	if draft.Subject == "" {
		return fmt.Errorf("%w: subject is empty", errInvalidDraft)
	}
	a.sanitize(draft, now)
	return nil
}

// sanitize applies the corrections that are not worth a retry: a due date
// earlier than the extraction time is dropped to null, priority is clamped.
func (a *StructuringAgent) sanitize(draft *provider.Draft, now time.Time) {
	if draft.DueDate != nil && draft.DueDate.Before(now) {
		a.logger.Printf("INFO: dropping past due date %s from draft %q", draft.DueDate.Format("2006-01-02"), draft.Title)
		draft.DueDate = nil
	}
	draft.Priority = homework.ClampPriority(draft.Priority)
}
