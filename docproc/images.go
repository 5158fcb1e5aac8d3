package docproc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ImagePlaceholder is the marker the document converter leaves where an
// image appeared.
const ImagePlaceholder = "<!-- image -->"

// ImageDescription pairs an extracted image file with its generated
// caption.
type ImageDescription struct {
	Image       string `json:"image"`
	Description string `json:"description"`
}

// ReplaceImagePlaceholders substitutes image placeholders with their
// captions, matched by position: the nth placeholder takes the caption
// whose Image field is "<n>.png". A placeholder without a caption is
// kept as-is and logged. Returns the rewritten lines and the number of
// replacements made.
func ReplaceImagePlaceholders(lines []string, descs []ImageDescription) ([]string, int) {
	byName := make(map[string]string, len(descs))
	for _, d := range descs {
		byName[d.Image] = d.Description
	}

	out := make([]string, 0, len(lines))
	counter := 1
	replaced := 0
	for _, line := range lines {
		if !strings.Contains(line, ImagePlaceholder) {
			out = append(out, line)
			continue
		}
		name := fmt.Sprintf("%d.png", counter)
		if desc, ok := byName[name]; ok {
			out = append(out, desc, "")
			counter++
			replaced++
		} else {
			slog.Warn("docproc: no description for image, keeping placeholder", "image", name)
			out = append(out, line)
		}
	}
	return out, replaced
}

// WriteDescriptions saves captions as a JSON file.
func WriteDescriptions(path string, descs []ImageDescription) error {
	data, err := json.MarshalIndent(descs, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadDescriptions reads a captions JSON file.
func LoadDescriptions(path string) ([]ImageDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading descriptions: %w", err)
	}
	var descs []ImageDescription
	if err := json.Unmarshal(data, &descs); err != nil {
		return nil, fmt.Errorf("parsing descriptions: %w", err)
	}
	return descs, nil
}
