package docproc

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// topHeadingRe matches a top-level numbered heading as it appears in
// extracted PDF text: "3 Reference Documents", "4. Product
// Description", "4) Product Description". Sub-level numbering ("3.1
// Scope") is deliberately not matched.
var topHeadingRe = regexp.MustCompile(`^([1-9][0-9]*)[.)]?\s+[A-Z]`)

// ExtractLines extracts plain text from a PDF and annotates top-level
// numbered headings with the markdown level-2 marker, producing the
// line form the section package expects.
func ExtractLines(ctx context.Context, path string) ([]string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	var lines []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract.
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			lines = append(lines, AnnotateHeading(line))
		}
	}
	return lines, nil
}

// AnnotateHeading prefixes a top-level numbered heading line with the
// markdown "## " marker. Non-heading lines and lines already carrying a
// marker pass through unchanged.
func AnnotateHeading(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return line
	}
	// Headings are short; a numbered sentence is not a heading.
	if len(trimmed) >= 100 || strings.HasSuffix(trimmed, ".") {
		return line
	}
	if topHeadingRe.MatchString(trimmed) {
		return "## " + trimmed
	}
	return line
}
