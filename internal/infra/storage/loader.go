// internal/infra/storage/loader.go
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"homework_reminder_bot/internal/domain/provider"
)

const maxImageBytes = 20 << 20 // Telegram caps photos well below this

// Loader resolves image references into bytes: http(s) URLs are fetched,
// anything else is treated as a local path.
type Loader struct {
	httpClient *http.Client
}

func NewLoader() *Loader {
	return &Loader{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (l *Loader) Load(ctx context.Context, ref string) (provider.Image, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return l.fetch(ctx, ref)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return provider.Image{}, fmt.Errorf("failed to read image file %s: %w", ref, err)
	}
	return provider.Image{Ref: ref, Data: data, MIMEType: mimeForRef(ref)}, nil
}

func (l *Loader) fetch(ctx context.Context, ref string) (provider.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return provider.Image{}, err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return provider.Image{}, fmt.Errorf("failed to fetch image %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return provider.Image{}, fmt.Errorf("image fetch %s returned status %d", ref, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return provider.Image{}, fmt.Errorf("failed to read image body %s: %w", ref, err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimeForRef(ref)
	}
	return provider.Image{Ref: ref, Data: data, MIMEType: mimeType}, nil
}

func mimeForRef(ref string) string {
	switch strings.ToLower(path.Ext(strings.SplitN(ref, "?", 2)[0])) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		// Telegram photo downloads are JPEG
		return "image/jpeg"
	}
}
