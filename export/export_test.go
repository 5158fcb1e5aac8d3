package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/aayushanand1411/srsmap/scoring"
	"github.com/aayushanand1411/srsmap/store"
)

func sampleSections() []store.MappedSection {
	sem := 0.83
	fuzzy := 94
	return []store.MappedSection{
		{Category: "Cover Page", Content: "ACME Corp\nSRS v2"},
		{Category: "1 Introduction", Content: "Intro text.", SemanticScore: &sem},
		{Category: "3 Reference Documents", Content: "Refs.", FuzzyScore: &fuzzy},
	}
}

func sampleReport() *scoring.Report {
	return &scoring.Report{
		Questions: []scoring.QuestionResult{{
			Question: store.Question{
				ID:       7,
				Question: "Does the document define hardware requirements?",
			},
			Verdicts: []scoring.SubVerdict{
				{SubIndex: 0, SubQuestion: "Are voltage ranges given?", Answer: "Yes", Reason: "Stated in 6.1.", Score: 1},
				{SubIndex: 1, SubQuestion: "Are connectors listed?", Answer: "No", Reason: "Not found.", Score: 0},
			},
			Score: 4.17,
		}},
		Total: 2.5,
	}
}

func TestJSONSections(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, sampleSections()); err != nil {
		t.Fatalf("JSON() error = %v", err)
	}

	var back []store.MappedSection
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(back) != 3 || back[1].Category != "1 Introduction" {
		t.Errorf("round trip = %+v", back)
	}
	if back[0].SemanticScore != nil {
		t.Error("cover page should have no semantic score")
	}
}

func TestVerdictsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := VerdictsCSV(&buf, sampleReport()); err != nil {
		t.Fatalf("VerdictsCSV() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	// Header + 2 verdicts + question score + total.
	if len(records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(records))
	}
	if records[0][0] != "question_id" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][4] != "Yes" || records[2][4] != "No" {
		t.Errorf("answers = %q, %q", records[1][4], records[2][4])
	}
	if records[3][6] != "4.17" {
		t.Errorf("question score = %q", records[3][6])
	}
	if records[4][6] != "2.50" {
		t.Errorf("total = %q", records[4][6])
	}
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := XLSX(&buf, sampleSections(), sampleReport()); err != nil {
		t.Fatalf("XLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("output is not a valid workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 {
		t.Fatalf("sheets = %v, want Sections and Verdicts", sheets)
	}

	rows, err := f.GetRows(sheetSections)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 section rows, got %d", len(rows))
	}
	if rows[1][0] != "Cover Page" {
		t.Errorf("first section = %q", rows[1][0])
	}
	if rows[2][1] != "0.830" {
		t.Errorf("semantic score cell = %q", rows[2][1])
	}
	if rows[3][2] != "94" {
		t.Errorf("fuzzy score cell = %q", rows[3][2])
	}

	vrows, err := f.GetRows(sheetVerdicts)
	if err != nil {
		t.Fatal(err)
	}
	// Header + 2 verdicts + question score + total.
	if len(vrows) != 5 {
		t.Fatalf("expected 5 verdict rows, got %d", len(vrows))
	}
	if vrows[1][2] != "Yes" {
		t.Errorf("first verdict answer = %q", vrows[1][2])
	}
}

func TestXLSXWithoutReport(t *testing.T) {
	var buf bytes.Buffer
	if err := XLSX(&buf, sampleSections(), nil); err != nil {
		t.Fatalf("XLSX() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != sheetSections {
		t.Errorf("sheets = %v, want just Sections", sheets)
	}
}

func TestMarkdownReport(t *testing.T) {
	run := &store.Run{ID: 5, Filename: "srs.pdf", Status: store.StatusVerified, CreatedAt: "2026-01-02 10:00:00"}
	md := MarkdownReport(run, sampleSections(), sampleReport())

	for _, fragment := range []string{
		"# Mapping Report: srs.pdf",
		"| Cover Page |",
		"| 1 Introduction | 0.830 |",
		"| 3 Reference Documents | - | 94 |",
		"Score out of 10: 2.50",
	} {
		if !strings.Contains(md, fragment) {
			t.Errorf("report missing %q\n%s", fragment, md)
		}
	}
}

func TestMarkdownReportWithoutVerdicts(t *testing.T) {
	run := &store.Run{ID: 5, Filename: "srs.pdf", Status: store.StatusMapped}
	md := MarkdownReport(run, sampleSections(), nil)
	if strings.Contains(md, "## Verification") {
		t.Error("unverified run should have no verification table")
	}
}

func TestHTMLReport(t *testing.T) {
	run := &store.Run{ID: 5, Filename: "srs.pdf", Status: store.StatusVerified}
	html, err := HTMLReport(run, sampleSections(), sampleReport())
	if err != nil {
		t.Fatalf("HTMLReport() error = %v", err)
	}
	out := string(html)
	for _, fragment := range []string{"<h1", "<table>", "Cover Page"} {
		if !strings.Contains(out, fragment) {
			t.Errorf("html missing %q", fragment)
		}
	}
}

func TestPreviewTruncates(t *testing.T) {
	long := strings.Repeat("x", contentPreviewLen+50)
	got := preview(long)
	if len(got) != contentPreviewLen+3 {
		t.Errorf("preview length = %d", len(got))
	}
}
