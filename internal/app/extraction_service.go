// internal/app/extraction_service.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/provider"

	"github.com/google/uuid"
)

// ErrExtractionFailed is surfaced to the caller when every provider was
// exhausted for every image and no homework could be created. The command
// layer turns this into a "please retake the photo" message.
var ErrExtractionFailed = errors.New("extraction failed: no usable text recovered from the submitted images")

// ImageLoader resolves an image reference into bytes for the providers.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (provider.Image, error)
}

// ExtractionService is the orchestrator: per-image ensemble runs, one
// structuring call over the concatenated text, then an all-or-nothing
// persist of the homework row with its OCR evidence.
type ExtractionService struct {
	ensemble     *OCREnsemble
	agent        *StructuringAgent
	loader       ImageLoader
	homeworkRepo homework.Repository
	logger       *log.Logger
}

func NewExtractionService(
	ensemble *OCREnsemble,
	agent *StructuringAgent,
	loader ImageLoader,
	homeworkRepo homework.Repository,
	logger *log.Logger,
) *ExtractionService {
	return &ExtractionService{
		ensemble:     ensemble,
		agent:        agent,
		loader:       loader,
		homeworkRepo: homeworkRepo,
		logger:       logger,
	}
}

// Submit runs the full pipeline for one homework submission. Images of a
// multi-page assignment are processed independently and concatenated in
// input order before structuring. Resubmission of the same images is a new,
// independent attempt.
func (s *ExtractionService) Submit(ctx context.Context, imageRefs []string, studentID uuid.UUID, teacherID uuid.NullUUID) (*homework.Homework, error) {
	if len(imageRefs) == 0 {
		return nil, fmt.Errorf("%w: no images submitted", ErrExtractionFailed)
	}

	var (
		texts      []string
		audit      []*homework.OCRResult
		confidence = 1.0
		language   string
	)

	for _, ref := range imageRefs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		img, err := s.loader.Load(ctx, ref)
		if err != nil {
			s.logger.Printf("ERROR: could not load image %s: %v", ref, err)
			audit = append(audit, &homework.OCRResult{ImagePath: ref, Engine: "loader"})
			continue
		}
		merged, rows, err := s.ensemble.Run(ctx, img)
		audit = append(audit, rows...)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Printf("WARN: ensemble produced no text for %s: %v", ref, err)
			continue
		}
		texts = append(texts, merged.Text)
		if merged.Confidence < confidence {
			confidence = merged.Confidence
		}
		if language == "" {
			language = merged.Language
		}
	}

	if len(texts) == 0 {
		// Keep the evidence even though no homework row will exist.
		if err := s.homeworkRepo.SaveResults(ctx, audit); err != nil {
			s.logger.Printf("ERROR: could not persist audit OCR results: %v", err)
		}
		return nil, ErrExtractionFailed
	}

	now := time.Now()
	rawText := strings.Join(texts, "\n\n")
	draft, err := s.agent.Structure(ctx, rawText, language, confidence, now)
	if err != nil {
		return nil, err
	}

	hw := &homework.Homework{
		StudentID:   studentID,
		TeacherID:   teacherID,
		Subject:     draft.Subject,
		Title:       draft.Title,
		Description: draft.Description,
		RawText:     rawText,
		Status:      homework.StatusPending,
		Priority:    homework.ClampPriority(draft.Priority),
		ImageURLs:   imageRefs,
		AIEnhanced:  draft.AIEnhanced,
		AIKeywords:  draft.Keywords,
	}
	if draft.DueDate != nil {
		hw.DueDate = sql.NullTime{Time: *draft.DueDate, Valid: true}
	}
	if summary := strings.TrimSpace(draft.Summary); summary != "" {
		hw.AISummary = sql.NullString{String: summary, Valid: true}
	}

	if err := s.homeworkRepo.CreateWithResults(ctx, hw, audit); err != nil {
		return nil, fmt.Errorf("failed to persist homework with OCR evidence: %w", err)
	}
	s.logger.Printf("INFO: homework %s created for student %s (%d images, %d OCR rows, engine draft=%s)",
		hw.ID, studentID, len(imageRefs), len(audit), draft.Engine)
	return hw, nil
}
