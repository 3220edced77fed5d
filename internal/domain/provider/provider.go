package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Image is one photograph submitted for extraction.
type Image struct {
	// Ref is the caller's reference for the image (URL or local path),
	// echoed into OCRResult audit rows.
	Ref      string
	Data     []byte
	MIMEType string
}

// Extraction is a single engine's reading of one image.
type Extraction struct {
	Text       string
	Confidence float64 // 0..1
	Language   string
	Latency    time.Duration
}

// TextExtractor is the uniform contract every OCR/vision engine is wrapped
// behind. Implementations hide the vendor-specific calling convention; the
// ensemble depends only on this interface.
type TextExtractor interface {
	// Label identifies the engine in OCRResult audit rows.
	Label() string
	Extract(ctx context.Context, img Image) (Extraction, error)
}

// StructureRequest carries the merged OCR text into a structuring call.
type StructureRequest struct {
	Text     string
	Language string
	// Now anchors relative due-date phrases ("by Friday") and the
	// past-due-date check.
	Now      time.Time
	Location *time.Location
	// Correction quotes the previous parse error on the single corrective
	// retry; empty on the first attempt.
	Correction string
}

// Draft is the unpersisted structured output of a structuring provider,
// prior to validation.
type Draft struct {
	Subject     string
	Title       string
	Description string
	DueDate     *time.Time
	Priority    int
	Keywords    []string
	Summary     string
	Confidence  float64 // 0 when the provider exposes none
}

// Structurer turns raw assignment text into a Draft.
type Structurer interface {
	Label() string
	Structure(ctx context.Context, req StructureRequest) (Draft, error)
}

// ErrMalformedDraft marks a structuring response that could not be parsed
// against the expected schema. The agent retries once with a corrective
// request quoting the wrapped detail.
var ErrMalformedDraft = errors.New("structuring response does not match the expected schema")

// MalformedDraft wraps a parse failure so callers can quote it back to the
// provider.
func MalformedDraft(detail error) error {
	return fmt.Errorf("%w: %v", ErrMalformedDraft, detail)
}
