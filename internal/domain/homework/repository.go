package homework

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for the Homework aggregate and its OCR
// evidence.
type Repository interface {
	// CreateWithResults persists a homework row together with all of its
	// OCRResult rows in a single transaction: they appear together or not
	// at all.
	CreateWithResults(ctx context.Context, hw *Homework, results []*OCRResult) error

	// SaveResults persists audit OCRResult rows on their own. Used when
	// extraction failed and no homework row will be created.
	SaveResults(ctx context.Context, results []*OCRResult) error

	GetByID(ctx context.Context, id uuid.UUID) (*Homework, error)
	ListByStudent(ctx context.Context, studentID uuid.UUID, status Status) ([]*Homework, error)

	// ListRemindable returns non-completed homework whose due date falls in
	// [from, to], ordered by ascending due date so the most urgent items are
	// handled first.
	ListRemindable(ctx context.Context, from, to time.Time) ([]*Homework, error)

	// MarkCompleted sets status to completed and completed_at atomically.
	// A no-op if the row is already completed.
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) error

	// MarkOverdue moves a pending or in-progress item to overdue.
	MarkOverdue(ctx context.Context, id uuid.UUID) error

	ListResults(ctx context.Context, homeworkID uuid.UUID) ([]*OCRResult, error)
}
