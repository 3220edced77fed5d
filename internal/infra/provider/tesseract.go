// internal/infra/provider/tesseract.go
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/provider"

	"github.com/otiai10/gosseract/v2"
)

// TesseractExtractor wraps the local tesseract engine. A fresh client is
// created per call; gosseract clients are not safe for concurrent use and
// the ensemble runs extractors in parallel.
type TesseractExtractor struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

func NewTesseractExtractor(languages []string) *TesseractExtractor {
	return &TesseractExtractor{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (e *TesseractExtractor) Label() string { return "tesseract" }

func (e *TesseractExtractor) Extract(ctx context.Context, img provider.Image) (provider.Extraction, error) {
	select {
	case <-ctx.Done():
		return provider.Extraction{}, ctx.Err()
	default:
	}

	start := time.Now()
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(img.Data); err != nil {
		return provider.Extraction{}, fmt.Errorf("set image: %w", err)
	}
	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return provider.Extraction{}, fmt.Errorf("set languages: %w", err)
		}
	}

	text, err := c.Text()
	if err != nil {
		return provider.Extraction{}, fmt.Errorf("recognize text: %w", err)
	}

	return provider.Extraction{
		Text:       strings.TrimSpace(text),
		Confidence: wordConfidence(c),
		Language:   firstLanguage(e.languages),
		Latency:    time.Since(start),
	}, nil
}

// wordConfidence averages tesseract's per-word confidences, scaled to 0..1.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}

func firstLanguage(langs []string) string {
	if len(langs) == 0 {
		return ""
	}
	return langs[0]
}
