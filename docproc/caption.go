package docproc

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aayushanand1411/srsmap/llm"
)

// DefaultCaptionPrompt asks for a caption dense enough to stand in for
// the image in downstream text matching.
const DefaultCaptionPrompt = "Describe this image in 50-150 words with meaningful detail."

const (
	captionAttempts  = 3
	captionBaseDelay = 2 * time.Second
)

// Captioner generates natural-language descriptions for extracted
// images via a vision LLM.
type Captioner struct {
	vision llm.VisionProvider
	prompt string
}

// NewCaptioner creates a captioner. An empty prompt selects
// DefaultCaptionPrompt.
func NewCaptioner(vision llm.VisionProvider, prompt string) *Captioner {
	if prompt == "" {
		prompt = DefaultCaptionPrompt
	}
	return &Captioner{vision: vision, prompt: prompt}
}

// CaptionDir captions every image file in dir, in filename order.
// A persistently failing image is skipped and logged; one bad image
// never aborts the batch.
func (c *Captioner) CaptionDir(ctx context.Context, dir string) ([]ImageDescription, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		slog.Warn("docproc: no images found", "dir", dir)
		return nil, nil
	}

	var descs []ImageDescription
	for _, name := range names {
		desc, err := c.captionOne(ctx, filepath.Join(dir, name))
		if err != nil {
			slog.Error("docproc: captioning failed", "image", name, "error", err)
			continue
		}
		descs = append(descs, ImageDescription{Image: name, Description: desc})
		slog.Info("docproc: captioned image", "image", name)
	}
	return descs, nil
}

// captionOne captions a single image with bounded retries and backoff.
func (c *Captioner) captionOne(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < captionAttempts; attempt++ {
		if attempt > 0 {
			delay := captionBaseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		resp, err := c.vision.Caption(ctx, llm.CaptionRequest{Prompt: c.prompt, Image: data})
		if err != nil {
			lastErr = err
			continue
		}
		desc := strings.TrimSpace(resp.Content)
		if desc == "" {
			lastErr = fmt.Errorf("empty description returned")
			continue
		}
		return desc, nil
	}
	return "", fmt.Errorf("after %d attempts: %w", captionAttempts, lastErr)
}
