package scoring

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aayushanand1411/srsmap/mapping"
	"github.com/aayushanand1411/srsmap/store"
)

// DefaultReferenceThreshold is the minimum fuzzy ratio for a question's
// reference section to resolve to a mapped category label.
const DefaultReferenceThreshold = 76

// SubVerdict is the judged outcome of one sub-question.
type SubVerdict struct {
	SubIndex    int     `json:"sub_index"`
	SubQuestion string  `json:"sub_question"`
	Answer      string  `json:"answer"`
	Reason      string  `json:"reason,omitempty"`
	Score       float64 `json:"score"`
}

// QuestionResult aggregates the verdicts of one question with its
// weighted score.
type QuestionResult struct {
	Question store.Question `json:"question"`
	Verdicts []SubVerdict   `json:"verdicts"`
	Score    float64        `json:"score"`
}

// Report is the verification outcome for a whole document: one result
// per question and a weighted total out of 10.
type Report struct {
	Questions []QuestionResult `json:"questions"`
	Total     float64          `json:"total"`
}

// Verifier runs a question bank against a mapped document.
type Verifier struct {
	judge     *Judge
	threshold int
}

// NewVerifier creates a verifier. A non-positive threshold selects
// DefaultReferenceThreshold.
func NewVerifier(judge *Judge, threshold int) *Verifier {
	if threshold <= 0 {
		threshold = DefaultReferenceThreshold
	}
	return &Verifier{judge: judge, threshold: threshold}
}

// ResolveReference resolves a question's reference-section text against
// the mapped category labels. Each non-empty line is matched fuzzily
// against the labels; the first label at or above the threshold
// contributes its content. Lines that match nothing are skipped. The
// second return is false when no line resolved, in which case callers
// fall back to the whole document text.
func (v *Verifier) ResolveReference(ref string, sections []store.MappedSection) (string, bool) {
	var sb strings.Builder
	resolved := false
	for _, line := range strings.Split(ref, "\n") {
		entered := strings.TrimSpace(line)
		if entered == "" {
			continue
		}
		found := false
		for _, sec := range sections {
			r := mapping.Ratio(mapping.Normalize(entered), mapping.Normalize(sec.Category))
			if r >= v.threshold {
				sb.WriteString(sec.Content)
				resolved = true
				found = true
				break
			}
		}
		if !found {
			slog.Warn("scoring: reference section did not resolve", "reference", entered)
		}
	}
	return sb.String(), resolved
}

// Verify judges every sub-question of every question against the mapped
// sections and returns the weighted report. A malformed judge response
// scores zero and is recorded with its raw answer; a transport failure
// aborts the run.
func (v *Verifier) Verify(ctx context.Context, questions []store.Question, sections []store.MappedSection, fullText string) (*Report, error) {
	report := &Report{}
	for _, q := range questions {
		content := fullText
		if strings.TrimSpace(q.ReferenceSection) != "" {
			if resolved, ok := v.ResolveReference(q.ReferenceSection, sections); ok {
				content = resolved
			}
		}

		result := QuestionResult{Question: q}
		for j, sub := range q.SubQuestions {
			instruction := sub
			if j < len(q.SpecialInstructions) && strings.TrimSpace(q.SpecialInstructions[j]) != "" {
				instruction = q.SpecialInstructions[j]
			}

			verdict, err := v.judge.Ask(ctx, content, instruction)
			var malformed *MalformedError
			switch {
			case errors.As(err, &malformed):
				slog.Warn("scoring: malformed judge response, scoring as No",
					"question_id", q.ID, "sub_index", j, "error", err)
				verdict = &Verdict{Answer: AnswerNo, Reason: "judge response could not be parsed"}
			case err != nil:
				return nil, err
			}

			result.Verdicts = append(result.Verdicts, SubVerdict{
				SubIndex:    j,
				SubQuestion: sub,
				Answer:      verdict.Answer,
				Reason:      verdict.Reason,
				Score:       AnswerValue(verdict.Answer),
			})
		}

		result.Score = questionScore(q, result.Verdicts)
		report.Total += q.Weight * result.Score
		report.Questions = append(report.Questions, result)
	}
	return report, nil
}

// questionScore sums the weighted sub-question scores. A weight list
// that does not match the sub-question count scores zero, matching the
// weight-mismatch handling of the question bank this replaces.
func questionScore(q store.Question, verdicts []SubVerdict) float64 {
	if len(q.SubWeights) != len(verdicts) {
		slog.Warn("scoring: sub-weight count mismatch",
			"question_id", q.ID, "weights", len(q.SubWeights), "sub_questions", len(verdicts))
		return 0
	}
	score := 0.0
	for i, v := range verdicts {
		score += q.SubWeights[i] * v.Score
	}
	return score
}

// ReportFromRows rebuilds a report from persisted verdict rows so
// exports can be served without re-judging. Verdicts belonging to
// questions no longer in the bank are dropped with a warning.
func ReportFromRows(questions []store.Question, rows []store.Verdict) *Report {
	byID := make(map[int64]store.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	grouped := make(map[int64][]SubVerdict)
	var order []int64
	for _, row := range rows {
		q, ok := byID[row.QuestionID]
		if !ok {
			slog.Warn("scoring: verdict references missing question", "question_id", row.QuestionID)
			continue
		}
		sub := ""
		if row.SubIndex < len(q.SubQuestions) {
			sub = q.SubQuestions[row.SubIndex]
		}
		if _, seen := grouped[row.QuestionID]; !seen {
			order = append(order, row.QuestionID)
		}
		grouped[row.QuestionID] = append(grouped[row.QuestionID], SubVerdict{
			SubIndex:    row.SubIndex,
			SubQuestion: sub,
			Answer:      row.Answer,
			Reason:      row.Reason,
			Score:       row.Score,
		})
	}

	report := &Report{}
	for _, id := range order {
		q := byID[id]
		result := QuestionResult{Question: q, Verdicts: grouped[id]}
		result.Score = questionScore(q, result.Verdicts)
		report.Total += q.Weight * result.Score
		report.Questions = append(report.Questions, result)
	}
	return report
}

// StoreVerdicts flattens a report into store rows for persistence.
func (r *Report) StoreVerdicts(runID int64) []store.Verdict {
	var rows []store.Verdict
	for _, qr := range r.Questions {
		for _, sv := range qr.Verdicts {
			rows = append(rows, store.Verdict{
				RunID:      runID,
				QuestionID: qr.Question.ID,
				SubIndex:   sv.SubIndex,
				Answer:     sv.Answer,
				Reason:     sv.Reason,
				Score:      sv.Score,
			})
		}
	}
	return rows
}
