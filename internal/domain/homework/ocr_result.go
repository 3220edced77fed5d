package homework

import (
	"time"

	"github.com/google/uuid"
)

// OCRResult records one engine's attempt at reading one image. Every invoked
// provider leaves exactly one row, failed attempts included (as
// zero-confidence rows), so the full ensemble run can be audited later.
// Rows are immutable once written.
type OCRResult struct {
	ID             uuid.UUID
	HomeworkID     uuid.NullUUID // null when extraction failed before a Homework row existed
	ImagePath      string
	ExtractedText  string
	Confidence     float64 // 0..1, only meaningful per engine
	Language       string
	Engine         string
	ProcessingTime time.Duration
	CreatedAt      time.Time
}
