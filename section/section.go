// Package section locates numbered top-level headings in a converted
// document and partitions the text into per-heading content blocks.
package section

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// CoverKey is the reserved key for the leading cover-page block.
const CoverKey = "Cover Page"

// DefaultCoverLimit caps the number of lines captured before the first
// recognized heading.
const DefaultCoverLimit = 50

// headingPattern matches a markdown level-2 numbered heading: the "##"
// marker, optional whitespace, a positive integer, an optional "." or ")"
// separator, whitespace, then the heading title. Numbering is taken
// as-is; no sequence validation happens here (see CheckNumbering).
var headingPattern = regexp.MustCompile(`^##\s*([1-9][0-9]*)[.)]?\s+\S`)

// IsHeading reports whether a line (trailing newline ignored) is a
// numbered top-level heading.
func IsHeading(line string) bool {
	return headingPattern.MatchString(strings.TrimRight(line, "\r\n"))
}

// Headings scans document lines in order and returns every numbered
// top-level heading verbatim, with the trailing newline stripped.
// A document without headings yields an empty slice, not an error.
func Headings(lines []string) []string {
	var headings []string
	for _, line := range lines {
		line = strings.TrimRight(line, "\r\n")
		if headingPattern.MatchString(line) {
			headings = append(headings, line)
		}
	}
	return headings
}

// Document is the result of splitting a line sequence at its headings.
// Keys preserves document order: CoverKey first, then each heading as
// encountered. Sections maps each key to its content block, heading
// line included.
type Document struct {
	Keys     []string
	Sections map[string]string
}

// Split partitions lines into one content block per heading plus the
// cover-page block. The cover page holds at most coverLimit lines taken
// from before the first heading; once a heading is matched, lines belong
// to sections. Duplicate heading text overwrites the earlier block
// (last write wins, logged as a warning). coverLimit <= 0 means
// DefaultCoverLimit.
func Split(lines []string, headings []string, coverLimit int) *Document {
	if coverLimit <= 0 {
		coverLimit = DefaultCoverLimit
	}

	doc := &Document{
		Keys:     []string{CoverKey},
		Sections: map[string]string{CoverKey: ""},
	}

	var cover, buf []string
	var current string
	next := 0 // cursor into headings

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r\n")

		if next < len(headings) && line == headings[next] {
			flush(doc, current, buf)
			current = line
			buf = []string{line}
			next++
			continue
		}

		if current != "" {
			buf = append(buf, line)
		} else if len(cover) < coverLimit {
			cover = append(cover, line)
		}
	}
	flush(doc, current, buf)

	doc.Sections[CoverKey] = joinLines(cover)
	return doc
}

// flush stores the in-progress buffer under its heading key.
func flush(doc *Document, heading string, buf []string) {
	if heading == "" {
		return
	}
	if _, dup := doc.Sections[heading]; dup {
		slog.Warn("section: duplicate heading, last write wins", "heading", heading)
	} else {
		doc.Keys = append(doc.Keys, heading)
	}
	doc.Sections[heading] = joinLines(buf)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// CheckNumbering reports anomalies in the heading number sequence:
// gaps, repeats, and out-of-order numbers. It is a diagnostic layered
// on top of Headings, not part of heading recognition.
func CheckNumbering(headings []string) []string {
	var notes []string
	prev := 0
	for _, h := range headings {
		m := headingPattern.FindStringSubmatch(h)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		switch {
		case n == prev:
			notes = append(notes, fmt.Sprintf("heading number %d repeats", n))
		case n < prev:
			notes = append(notes, fmt.Sprintf("heading number %d follows %d (out of order)", n, prev))
		case n > prev+1:
			notes = append(notes, fmt.Sprintf("heading number %d follows %d (gap)", n, prev))
		}
		prev = n
	}
	return notes
}
