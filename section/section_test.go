package section

import (
	"reflect"
	"strings"
	"testing"
)

func TestHeadings(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name: "plain numbered headings",
			lines: []string{
				"## 1 Introduction\n",
				"Some intro text\n",
				"## 2 Acronyms\n",
			},
			want: []string{"## 1 Introduction", "## 2 Acronyms"},
		},
		{
			name: "dot and paren separators",
			lines: []string{
				"## 4. Product Description\n",
				"## 5) Assumptions\n",
			},
			want: []string{"## 4. Product Description", "## 5) Assumptions"},
		},
		{
			name: "non-sequential numbering accepted",
			lines: []string{
				"## 3 Reference Documents\n",
				"body\n",
				"## 7 States and Modes\n",
				"## 2 Acronyms\n",
			},
			want: []string{"## 3 Reference Documents", "## 7 States and Modes", "## 2 Acronyms"},
		},
		{
			name: "rejects non-headings",
			lines: []string{
				"# 1 Title\n",           // level 1
				"### 1 Deep\n",          // level 3
				"## Introduction\n",     // no number
				"## 0 Zero\n",           // not positive
				"##1Intro\n",            // no whitespace after number
				"## 1\n",                // no title
				"text ## 2 not start\n", // marker not at start
			},
			want: nil,
		},
		{
			name:  "no headings",
			lines: []string{"just text\n", "more text\n"},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Headings(tt.lines)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Headings() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHeadingsIdempotent(t *testing.T) {
	lines := []string{
		"cover\n",
		"## 1 Introduction\n",
		"text\n",
		"## 2 Acronyms\n",
	}
	first := Headings(lines)
	second := Headings(lines)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs differ: %v vs %v", first, second)
	}
}

func TestSplitTwoSections(t *testing.T) {
	lines := []string{
		"## 1 Introduction\n",
		"Some intro text\n",
		"## 2 Acronyms\n",
		"TLA: three letter acronym\n",
	}
	headings := Headings(lines)
	doc := Split(lines, headings, 0)

	wantKeys := []string{CoverKey, "## 1 Introduction", "## 2 Acronyms"}
	if !reflect.DeepEqual(doc.Keys, wantKeys) {
		t.Fatalf("Keys = %v, want %v", doc.Keys, wantKeys)
	}
	if doc.Sections[CoverKey] != "" {
		t.Errorf("cover page = %q, want empty", doc.Sections[CoverKey])
	}
	if got := doc.Sections["## 1 Introduction"]; got != "## 1 Introduction\nSome intro text\n" {
		t.Errorf("section 1 = %q", got)
	}
	if got := doc.Sections["## 2 Acronyms"]; got != "## 2 Acronyms\nTLA: three letter acronym\n" {
		t.Errorf("section 2 = %q", got)
	}
}

func TestSplitPartitionCompleteness(t *testing.T) {
	lines := []string{
		"## 1 Introduction\n",
		"alpha\n",
		"beta\n",
		"## 2 Acronyms\n",
		"gamma\n",
		"## 3 Reference Documents\n",
		"## 4 Product Description\n",
		"delta\n",
	}
	headings := Headings(lines)
	doc := Split(lines, headings, 0)

	var rebuilt strings.Builder
	for _, key := range doc.Keys {
		if key == CoverKey {
			continue
		}
		rebuilt.WriteString(doc.Sections[key])
	}

	var original strings.Builder
	for _, l := range lines {
		original.WriteString(strings.TrimRight(l, "\n") + "\n")
	}

	if rebuilt.String() != original.String() {
		t.Errorf("concatenated sections do not reconstruct document:\ngot  %q\nwant %q",
			rebuilt.String(), original.String())
	}
}

func TestSplitCoverPage(t *testing.T) {
	t.Run("lines before first heading", func(t *testing.T) {
		lines := []string{"title page\n", "author\n", "## 1 Introduction\n", "body\n"}
		doc := Split(lines, Headings(lines), 0)
		if got := doc.Sections[CoverKey]; got != "title page\nauthor\n" {
			t.Errorf("cover = %q", got)
		}
	})

	t.Run("capped at limit", func(t *testing.T) {
		var lines []string
		for i := 0; i < 80; i++ {
			lines = append(lines, "filler\n")
		}
		lines = append(lines, "## 1 Introduction\n", "body\n")
		doc := Split(lines, Headings(lines), 50)
		cover := strings.Count(doc.Sections[CoverKey], "\n")
		if cover != 50 {
			t.Errorf("cover page holds %d lines, want 50", cover)
		}
		// Capping must not steal section lines.
		if got := doc.Sections["## 1 Introduction"]; got != "## 1 Introduction\nbody\n" {
			t.Errorf("section = %q", got)
		}
	})

	t.Run("zero headings", func(t *testing.T) {
		lines := []string{"only\n", "prose\n"}
		doc := Split(lines, nil, 0)
		if len(doc.Keys) != 1 || doc.Keys[0] != CoverKey {
			t.Fatalf("Keys = %v, want only cover page", doc.Keys)
		}
		if doc.Sections[CoverKey] != "only\nprose\n" {
			t.Errorf("cover = %q", doc.Sections[CoverKey])
		}
	})
}

func TestSplitEmptySection(t *testing.T) {
	lines := []string{
		"## 1 Introduction\n",
		"## 2 Acronyms\n",
		"body\n",
	}
	doc := Split(lines, Headings(lines), 0)
	// A heading immediately followed by the next heading is valid: its
	// content is the heading line alone.
	if got := doc.Sections["## 1 Introduction"]; got != "## 1 Introduction\n" {
		t.Errorf("empty section = %q, want heading line only", got)
	}
}

func TestSplitDuplicateHeadingLastWins(t *testing.T) {
	lines := []string{
		"## 2 Acronyms\n",
		"first block\n",
		"## 2 Acronyms\n",
		"second block\n",
	}
	doc := Split(lines, Headings(lines), 0)
	if got := doc.Sections["## 2 Acronyms"]; got != "## 2 Acronyms\nsecond block\n" {
		t.Errorf("duplicate heading = %q, want last write", got)
	}
	// The key appears once in order despite two occurrences.
	count := 0
	for _, k := range doc.Keys {
		if k == "## 2 Acronyms" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate heading listed %d times in Keys", count)
	}
}

func TestCheckNumbering(t *testing.T) {
	tests := []struct {
		name     string
		headings []string
		notes    int
	}{
		{"sequential", []string{"## 1 A", "## 2 B", "## 3 C"}, 0},
		{"gap", []string{"## 1 A", "## 3 C"}, 1},
		{"out of order", []string{"## 2 B", "## 1 A"}, 1},
		{"repeat", []string{"## 2 B", "## 2 B again"}, 1},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notes := CheckNumbering(tt.headings)
			if len(notes) != tt.notes {
				t.Errorf("CheckNumbering() = %v, want %d notes", notes, tt.notes)
			}
		})
	}
}
