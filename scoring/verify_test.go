package scoring

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/aayushanand1411/srsmap/store"
)

func mappedSections() []store.MappedSection {
	return []store.MappedSection{
		{Category: "Cover Page", Content: "ACME Corp SRS"},
		{Category: "1 Introduction", Content: "Intro content."},
		{Category: "6 Hardware Requirements", Content: "HW content."},
	}
}

func TestResolveReference(t *testing.T) {
	v := NewVerifier(nil, 0)
	sections := mappedSections()

	tests := []struct {
		name     string
		ref      string
		want     string
		resolved bool
	}{
		{"exact label", "6 Hardware Requirements", "HW content.", true},
		{"label without number", "Hardware Requirements", "HW content.", true},
		{"typo in label", "Hardware Requirments", "HW content.", true},
		{"two lines concatenate", "1 Introduction\n6 Hardware Requirements", "Intro content.HW content.", true},
		{"unknown section", "99 Appendix Omega", "", false},
		{"blank lines ignored", "\n\n6 Hardware Requirements\n\n", "HW content.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, resolved := v.ResolveReference(tt.ref, sections)
			if resolved != tt.resolved {
				t.Fatalf("resolved = %v, want %v", resolved, tt.resolved)
			}
			if got != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVerifyWeightedScores(t *testing.T) {
	// First sub-question Yes, second Partially Yes.
	chat := &stubChat{responses: []string{
		`{"Answer": "Yes", "Reason": "Stated in 6.1."}`,
		`{"Answer": "Partially Yes", "Reason": "Implied in 6.2."}`,
	}}
	v := NewVerifier(NewJudge(chat, "llama3"), 0)

	questions := []store.Question{{
		ID:               7,
		DocType:          "SRS",
		Question:         "Does the document define hardware requirements?",
		SubQuestions:     []string{"Are voltage ranges given?", "Are connectors listed?"},
		ReferenceSection: "6 Hardware Requirements",
		Weight:           0.6,
		SubWeights:       []float64{4.17, 5.83},
	}}

	report, err := v.Verify(context.Background(), questions, mappedSections(), "full text")
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(report.Questions) != 1 {
		t.Fatalf("expected 1 question result, got %d", len(report.Questions))
	}

	qr := report.Questions[0]
	if len(qr.Verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(qr.Verdicts))
	}
	if qr.Verdicts[0].Score != 1 || qr.Verdicts[1].Score != 0.5 {
		t.Errorf("sub scores = %v, %v", qr.Verdicts[0].Score, qr.Verdicts[1].Score)
	}

	// 4.17*1 + 5.83*0.5 = 7.085; total = 0.6 * 7.085 = 4.251
	if math.Abs(qr.Score-7.085) > 1e-9 {
		t.Errorf("question score = %v, want 7.085", qr.Score)
	}
	if math.Abs(report.Total-4.251) > 1e-9 {
		t.Errorf("total = %v, want 4.251", report.Total)
	}
}

func TestVerifyFallsBackToFullText(t *testing.T) {
	chat := &stubChat{responses: []string{`{"Answer": "Yes", "Reason": "ok"}`}}
	v := NewVerifier(NewJudge(chat, "llama3"), 0)

	questions := []store.Question{{
		ID:           1,
		Question:     "General check",
		SubQuestions: []string{"Is it an SRS?"},
		SubWeights:   []float64{10},
		Weight:       1,
		// No reference section: judge sees the whole document.
	}}

	if _, err := v.Verify(context.Background(), questions, mappedSections(), "ENTIRE DOCUMENT"); err != nil {
		t.Fatal(err)
	}
	if !containsPrompt(chat, "ENTIRE DOCUMENT") {
		t.Error("expected full document text in prompt")
	}
}

func TestVerifyUnresolvedReferenceFallsBack(t *testing.T) {
	chat := &stubChat{responses: []string{`{"Answer": "Yes", "Reason": "ok"}`}}
	v := NewVerifier(NewJudge(chat, "llama3"), 0)

	questions := []store.Question{{
		ID:               1,
		Question:         "Check",
		SubQuestions:     []string{"sub"},
		SubWeights:       []float64{10},
		Weight:           1,
		ReferenceSection: "99 Appendix Omega",
	}}

	if _, err := v.Verify(context.Background(), questions, mappedSections(), "ENTIRE DOCUMENT"); err != nil {
		t.Fatal(err)
	}
	if !containsPrompt(chat, "ENTIRE DOCUMENT") {
		t.Error("unresolved reference should fall back to full text")
	}
}

func TestVerifySpecialInstructionOverridesSubQuestion(t *testing.T) {
	chat := &stubChat{responses: []string{`{"Answer": "Yes", "Reason": "ok"}`}}
	v := NewVerifier(NewJudge(chat, "llama3"), 0)

	questions := []store.Question{{
		ID:                  1,
		Question:            "Check",
		SubQuestions:        []string{"Are connectors listed?"},
		SpecialInstructions: []string{"Check for MIL-spec connector tables."},
		SubWeights:          []float64{10},
		Weight:              1,
	}}

	if _, err := v.Verify(context.Background(), questions, mappedSections(), "text"); err != nil {
		t.Fatal(err)
	}
	if !containsPrompt(chat, "MIL-spec connector tables") {
		t.Error("expected special instruction in prompt")
	}
}

func TestVerifyMalformedScoresZero(t *testing.T) {
	chat := &stubChat{responses: []string{"no json here"}}
	v := NewVerifier(NewJudge(chat, "llama3"), 0)

	questions := []store.Question{{
		ID:           1,
		Question:     "Check",
		SubQuestions: []string{"sub"},
		SubWeights:   []float64{10},
		Weight:       1,
	}}

	report, err := v.Verify(context.Background(), questions, mappedSections(), "text")
	if err != nil {
		t.Fatalf("malformed response must not abort the run: %v", err)
	}
	qr := report.Questions[0]
	if qr.Verdicts[0].Answer != AnswerNo || qr.Verdicts[0].Score != 0 {
		t.Errorf("verdict = %+v, want No/0", qr.Verdicts[0])
	}
	if report.Total != 0 {
		t.Errorf("total = %v, want 0", report.Total)
	}
}

func TestVerifyWeightMismatchScoresZero(t *testing.T) {
	chat := &stubChat{responses: []string{`{"Answer": "Yes", "Reason": "ok"}`}}
	v := NewVerifier(NewJudge(chat, "llama3"), 0)

	questions := []store.Question{{
		ID:           1,
		Question:     "Check",
		SubQuestions: []string{"a", "b"},
		SubWeights:   []float64{10}, // mismatch
		Weight:       1,
	}}

	report, err := v.Verify(context.Background(), questions, mappedSections(), "text")
	if err != nil {
		t.Fatal(err)
	}
	if report.Questions[0].Score != 0 {
		t.Errorf("score = %v, want 0 on weight mismatch", report.Questions[0].Score)
	}
}

func TestStoreVerdicts(t *testing.T) {
	report := &Report{
		Questions: []QuestionResult{{
			Question: store.Question{ID: 3},
			Verdicts: []SubVerdict{
				{SubIndex: 0, Answer: "Yes", Reason: "r0", Score: 1},
				{SubIndex: 1, Answer: "No", Reason: "r1", Score: 0},
			},
		}},
	}
	rows := report.StoreVerdicts(42)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].RunID != 42 || rows[0].QuestionID != 3 || rows[0].SubIndex != 0 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].Answer != "No" || rows[1].Score != 0 {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestReportFromRows(t *testing.T) {
	questions := []store.Question{{
		ID:           7,
		Question:     "Check",
		SubQuestions: []string{"a", "b"},
		SubWeights:   []float64{4, 6},
		Weight:       0.5,
	}}
	rows := []store.Verdict{
		{RunID: 1, QuestionID: 7, SubIndex: 0, Answer: "Yes", Score: 1},
		{RunID: 1, QuestionID: 7, SubIndex: 1, Answer: "Partially Yes", Score: 0.5},
		{RunID: 1, QuestionID: 99, SubIndex: 0, Answer: "Yes", Score: 1}, // orphan, dropped
	}

	report := ReportFromRows(questions, rows)
	if len(report.Questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(report.Questions))
	}
	qr := report.Questions[0]
	if len(qr.Verdicts) != 2 || qr.Verdicts[1].SubQuestion != "b" {
		t.Errorf("verdicts = %+v", qr.Verdicts)
	}
	// 4*1 + 6*0.5 = 7; total = 0.5*7 = 3.5
	if math.Abs(qr.Score-7) > 1e-9 || math.Abs(report.Total-3.5) > 1e-9 {
		t.Errorf("score = %v, total = %v", qr.Score, report.Total)
	}
}

func containsPrompt(chat *stubChat, fragment string) bool {
	for _, p := range chat.prompts {
		if strings.Contains(p, fragment) {
			return true
		}
	}
	return false
}
