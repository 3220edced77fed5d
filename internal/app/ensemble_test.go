// internal/app/ensemble_test.go
package app

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"homework_reminder_bot/internal/domain/provider"
)

type fakeExtractor struct {
	label string
	text  string
	conf  float64
	err   error
	calls int
}

func (f *fakeExtractor) Label() string { return f.label }

func (f *fakeExtractor) Extract(ctx context.Context, img provider.Image) (provider.Extraction, error) {
	f.calls++
	if f.err != nil {
		return provider.Extraction{}, f.err
	}
	return provider.Extraction{Text: f.text, Confidence: f.conf, Language: "en"}, nil
}

func testEnsemble(providers []provider.TextExtractor, fallback provider.TextExtractor) *OCREnsemble {
	return NewOCREnsemble(providers, fallback, DefaultEnsembleConfig(), log.New(io.Discard, "", 0))
}

func testImage() provider.Image {
	return provider.Image{Ref: "photo-1.jpg", Data: []byte{0x1}, MIMEType: "image/jpeg"}
}

func TestEnsembleAgreementBoostsConfidence(t *testing.T) {
	a := &fakeExtractor{label: "tesseract", text: "Complete exercises 1-10 page 42", conf: 0.6}
	b := &fakeExtractor{label: "together-vision", text: "Complete exercises 1-10 page 42", conf: 0.7}
	fallback := &fakeExtractor{label: "gemini-vision", text: "should not be called", conf: 0.95}

	merged, audit, err := testEnsemble([]provider.TextExtractor{a, b}, fallback).Run(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if merged.Engine != "together-vision" {
		t.Fatalf("winning engine = %q, want the higher-confidence peer", merged.Engine)
	}
	// 1 - (1-0.7)(1-0.6) = 0.88
	if merged.Confidence < 0.87 || merged.Confidence > 0.89 {
		t.Fatalf("combined confidence = %.3f, want ~0.88", merged.Confidence)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must not run when local engines agree above the floor")
	}
	if len(audit) != 2 {
		t.Fatalf("audit rows = %d, want one per invoked engine", len(audit))
	}
}

func TestEnsembleDisagreementEscalatesToFallback(t *testing.T) {
	a := &fakeExtractor{label: "tesseract", text: "Mathematics chapter 5 exercises", conf: 0.8}
	b := &fakeExtractor{label: "together-vision", text: "Bring art supplies tomorrow morning", conf: 0.75}
	fallback := &fakeExtractor{label: "gemini-vision", text: "Mathematics chapter 5 exercises, due Friday", conf: 0.9}

	merged, audit, err := testEnsemble([]provider.TextExtractor{a, b}, fallback).Run(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if merged.Engine != VisionFallbackEngine {
		t.Fatalf("engine = %q, want %q", merged.Engine, VisionFallbackEngine)
	}
	if merged.Confidence != 0.9 {
		t.Fatalf("confidence = %.2f, want the fallback's own score", merged.Confidence)
	}
	if fallback.calls != 1 {
		t.Fatalf("fallback calls = %d, want 1", fallback.calls)
	}
	if len(audit) != 3 {
		t.Fatalf("audit rows = %d, want locals plus fallback", len(audit))
	}
	if audit[2].Engine != VisionFallbackEngine {
		t.Fatalf("last audit engine = %q, want %q", audit[2].Engine, VisionFallbackEngine)
	}
}

// One engine clearing the floor among disagreeing below-floor peers wins on
// its own score; below-floor noise neither contradicts it nor drags in the
// fallback.
func TestEnsembleAboveFloorWinnerAmongBelowFloorNoise(t *testing.T) {
	a := &fakeExtractor{label: "tesseract", text: "gbl txt frgmnt", conf: 0.2}
	b := &fakeExtractor{label: "together-vision", text: "Science experiment report due Friday", conf: 0.75}
	c := &fakeExtractor{label: "tesseract-msa", text: "entirely unrelated noise", conf: 0.3}
	fallback := &fakeExtractor{label: "gemini-vision", text: "should not be called", conf: 0.95}

	merged, audit, err := testEnsemble([]provider.TextExtractor{a, b, c}, fallback).Run(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if merged.Engine != "together-vision" {
		t.Fatalf("engine = %q, want the only above-floor engine", merged.Engine)
	}
	if merged.Confidence != 0.75 {
		t.Fatalf("confidence = %.2f, want the winner's own 0.75", merged.Confidence)
	}
	if fallback.calls != 0 {
		t.Fatal("fallback must stay idle when an above-floor winner stands alone")
	}
	if len(audit) != 3 {
		t.Fatalf("audit rows = %d, want one per local engine", len(audit))
	}
}

func TestEnsembleBelowFloorAgreementAccepted(t *testing.T) {
	// Individually below the 0.4 floor, combined 1-(0.65*0.65) = 0.5775.
	a := &fakeExtractor{label: "tesseract", text: "Sains experiment report", conf: 0.35}
	b := &fakeExtractor{label: "together-vision", text: "Sains experiment report", conf: 0.35}
	fallback := &fakeExtractor{label: "gemini-vision", text: "unused", conf: 0.9}

	merged, _, err := testEnsemble([]provider.TextExtractor{a, b}, fallback).Run(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if merged.Confidence < 0.57 || merged.Confidence > 0.59 {
		t.Fatalf("confidence = %.4f, want ~0.5775", merged.Confidence)
	}
	if fallback.calls != 0 {
		t.Fatal("agreeing below-floor pair should not escalate")
	}
}

func TestEnsembleBelowFloorWithoutAgreementEscalates(t *testing.T) {
	a := &fakeExtractor{label: "tesseract", text: "garbled text one", conf: 0.2}
	b := &fakeExtractor{label: "together-vision", text: "entirely different garble", conf: 0.3}
	fallback := &fakeExtractor{label: "gemini-vision", text: "Readable homework text", conf: 0.9}

	merged, _, err := testEnsemble([]provider.TextExtractor{a, b}, fallback).Run(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if merged.Engine != VisionFallbackEngine {
		t.Fatalf("engine = %q, want fallback", merged.Engine)
	}
}

func TestEnsembleProviderFailureRecordedAsZeroConfidence(t *testing.T) {
	a := &fakeExtractor{label: "tesseract", err: errors.New("binary missing")}
	b := &fakeExtractor{label: "together-vision", text: "Homework text from the photo", conf: 0.85}

	merged, audit, err := testEnsemble([]provider.TextExtractor{a, b}, nil).Run(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if merged.Engine != "together-vision" {
		t.Fatalf("engine = %q", merged.Engine)
	}
	if len(audit) != 2 {
		t.Fatalf("audit rows = %d, want 2", len(audit))
	}
	var failedRow bool
	for _, row := range audit {
		if row.Engine == "tesseract" {
			failedRow = true
			if row.Confidence != 0 || row.ExtractedText != "" {
				t.Fatalf("failed engine row not zeroed: %+v", row)
			}
		}
	}
	if !failedRow {
		t.Fatal("failed engine missing from audit")
	}
}

func TestEnsembleAllFail(t *testing.T) {
	a := &fakeExtractor{label: "tesseract", err: errors.New("down")}
	fallback := &fakeExtractor{label: "gemini-vision", err: errors.New("also down")}

	_, audit, err := testEnsemble([]provider.TextExtractor{a}, fallback).Run(context.Background(), testImage())
	if !errors.Is(err, ErrNoUsableText) {
		t.Fatalf("error = %v, want ErrNoUsableText", err)
	}
	if len(audit) != 2 {
		t.Fatalf("audit rows = %d, want every attempt recorded", len(audit))
	}
}

func TestEnsembleNoProviders(t *testing.T) {
	_, _, err := testEnsemble(nil, nil).Run(context.Background(), testImage())
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("error = %v, want ErrNoProviders", err)
	}
}
