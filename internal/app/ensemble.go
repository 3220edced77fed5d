// internal/app/ensemble.go
package app

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"homework_reminder_bot/internal/domain/homework"
	"homework_reminder_bot/internal/domain/provider"
)

// VisionFallbackEngine is the engine label recorded when the vision-capable
// fallback produced the authoritative text.
const VisionFallbackEngine = "vision-fallback"

// ErrNoProviders means the ensemble was built without any text extractor.
var ErrNoProviders = errors.New("no OCR providers configured")

// ErrNoUsableText means every provider, fallback included, failed or
// returned empty text for the image.
var ErrNoUsableText = errors.New("no provider produced usable text")

// EnsembleConfig carries the tunables of the selection algorithm.
type EnsembleConfig struct {
	// ConfidenceFloor is the minimum per-engine confidence for a result to
	// be considered on its own.
	ConfidenceFloor float64
	// SimilarityThreshold is the normalized edit-distance similarity above
	// which two texts are treated as agreeing.
	SimilarityThreshold float64
	// ProviderTimeout bounds each local engine call.
	ProviderTimeout time.Duration
	// FallbackTimeout bounds the vision fallback call, which is slower.
	FallbackTimeout time.Duration
}

func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		ConfidenceFloor:     0.4,
		SimilarityThreshold: 0.8,
		ProviderTimeout:     10 * time.Second,
		FallbackTimeout:     30 * time.Second,
	}
}

// MergedText is the ensemble's verdict for one image.
type MergedText struct {
	Text       string
	Confidence float64
	Engine     string
	Language   string
}

type ocrAttempt struct {
	label string
	ext   provider.Extraction
	err   error
}

func (a ocrAttempt) usable() bool {
	return a.err == nil && strings.TrimSpace(a.ext.Text) != ""
}

// OCREnsemble fans one image out to every configured extraction engine
// concurrently, scores the independent results and merges them into a single
// text, escalating to a vision-capable fallback when the local engines are
// not trustworthy enough.
type OCREnsemble struct {
	providers []provider.TextExtractor
	fallback  provider.TextExtractor // vision-capable, nil when not configured
	cfg       EnsembleConfig
	logger    *log.Logger
}

func NewOCREnsemble(providers []provider.TextExtractor, fallback provider.TextExtractor, cfg EnsembleConfig, logger *log.Logger) *OCREnsemble {
	return &OCREnsemble{providers: providers, fallback: fallback, cfg: cfg, logger: logger}
}

// Run extracts text from one image. It always returns the full set of
// per-engine OCRResult audit rows, one per invoked provider, failures
// included as zero-confidence rows. The error is non-nil only when no
// usable text could be recovered at all.
func (e *OCREnsemble) Run(ctx context.Context, img provider.Image) (MergedText, []*homework.OCRResult, error) {
	if len(e.providers) == 0 && e.fallback == nil {
		return MergedText{}, nil, ErrNoProviders
	}

	attempts := make([]ocrAttempt, len(e.providers))
	var wg sync.WaitGroup
	for i, p := range e.providers {
		wg.Add(1)
		go func(i int, p provider.TextExtractor) {
			defer wg.Done()
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.ProviderTimeout)
			defer cancel()
			started := time.Now()
			ext, err := p.Extract(callCtx, img)
			if err != nil {
				ext = provider.Extraction{Latency: time.Since(started)}
			}
			attempts[i] = ocrAttempt{label: p.Label(), ext: ext, err: err}
		}(i, p)
	}
	wg.Wait()

	audit := make([]*homework.OCRResult, 0, len(attempts)+1)
	for _, a := range attempts {
		if a.err != nil {
			e.logger.Printf("WARN: OCR engine %s failed for %s: %v", a.label, img.Ref, a.err)
		}
		audit = append(audit, &homework.OCRResult{
			ImagePath:      img.Ref,
			ExtractedText:  a.ext.Text,
			Confidence:     a.ext.Confidence,
			Language:       a.ext.Language,
			Engine:         a.label,
			ProcessingTime: a.ext.Latency,
		})
	}

	if merged, ok := e.selectLocal(attempts, img.Ref); ok {
		return merged, audit, nil
	}

	// Vision fallback, authoritative regardless of the local scores.
	if e.fallback != nil {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.FallbackTimeout)
		defer cancel()
		started := time.Now()
		ext, err := e.fallback.Extract(callCtx, img)
		if err != nil {
			ext = provider.Extraction{Latency: time.Since(started)}
			e.logger.Printf("ERROR: vision fallback failed for %s: %v", img.Ref, err)
		}
		audit = append(audit, &homework.OCRResult{
			ImagePath:      img.Ref,
			ExtractedText:  ext.Text,
			Confidence:     ext.Confidence,
			Language:       ext.Language,
			Engine:         VisionFallbackEngine,
			ProcessingTime: ext.Latency,
		})
		if err == nil && strings.TrimSpace(ext.Text) != "" {
			return MergedText{
				Text:       ext.Text,
				Confidence: ext.Confidence,
				Engine:     VisionFallbackEngine,
				Language:   ext.Language,
			}, audit, nil
		}
	}

	return MergedText{}, audit, ErrNoUsableText
}

// selectLocal applies the two local acceptance rules: highest confidence at
// or above the floor with no contradiction among above-floor peers, or
// agreement between two below-floor engines strong enough to clear the floor
// combined.
func (e *OCREnsemble) selectLocal(attempts []ocrAttempt, ref string) (MergedText, bool) {
	bestIdx := -1
	aboveFloor := 0
	for i, a := range attempts {
		if !a.usable() || a.ext.Confidence < e.cfg.ConfidenceFloor {
			continue
		}
		aboveFloor++
		if bestIdx < 0 || a.ext.Confidence > attempts[bestIdx].ext.Confidence {
			bestIdx = i
		}
	}

	if bestIdx >= 0 {
		best := attempts[bestIdx]
		if aboveFloor >= 2 && e.contradicted(bestIdx, attempts) {
			e.logger.Printf("INFO: above-floor OCR results disagree for %s, escalating to vision fallback", ref)
			return MergedText{}, false
		}
		conf := best.ext.Confidence
		for i, a := range attempts {
			if i == bestIdx || !a.usable() {
				continue
			}
			if textSimilarity(best.ext.Text, a.ext.Text) >= e.cfg.SimilarityThreshold {
				conf = combineConfidence(conf, a.ext.Confidence)
			}
		}
		return MergedText{
			Text:       best.ext.Text,
			Confidence: conf,
			Engine:     best.label,
			Language:   best.ext.Language,
		}, true
	}

	// No engine cleared the floor on its own: two independent engines
	// agreeing on the same text is evidence enough, if the combined score
	// clears the floor.
	for x := 0; x < len(attempts); x++ {
		if !attempts[x].usable() {
			continue
		}
		for y := x + 1; y < len(attempts); y++ {
			if !attempts[y].usable() {
				continue
			}
			a, b := attempts[x], attempts[y]
			if textSimilarity(a.ext.Text, b.ext.Text) < e.cfg.SimilarityThreshold {
				continue
			}
			conf := combineConfidence(a.ext.Confidence, b.ext.Confidence)
			if conf < e.cfg.ConfidenceFloor {
				continue
			}
			chosen := a
			if b.ext.Confidence > a.ext.Confidence {
				chosen = b
			}
			e.logger.Printf("INFO: below-floor engines %s and %s agree for %s, accepting %s with combined confidence %.2f",
				a.label, b.label, ref, chosen.label, conf)
			return MergedText{
				Text:       chosen.ext.Text,
				Confidence: conf,
				Engine:     chosen.label,
				Language:   chosen.ext.Language,
			}, true
		}
	}
	return MergedText{}, false
}

// contradicted reports whether the best above-floor result agrees with none
// of its above-floor peers.
func (e *OCREnsemble) contradicted(bestIdx int, attempts []ocrAttempt) bool {
	best := attempts[bestIdx]
	for i, a := range attempts {
		if i == bestIdx || !a.usable() || a.ext.Confidence < e.cfg.ConfidenceFloor {
			continue
		}
		if textSimilarity(best.ext.Text, a.ext.Text) >= e.cfg.SimilarityThreshold {
			return false
		}
	}
	return true
}

// combineConfidence treats two engines' scores as independent estimates of
// the same reading: 1 - (1-a)(1-b).
func combineConfidence(a, b float64) float64 {
	c := 1 - (1-a)*(1-b)
	if c > 1 {
		c = 1
	}
	return c
}
