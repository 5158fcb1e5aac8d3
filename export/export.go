// Package export renders mapping runs and verification reports to
// JSON, CSV, XLSX and markdown/HTML.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aayushanand1411/srsmap/scoring"
)

// JSON writes v as indented JSON. Mapping result sets marshal in
// canonical label order.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

// VerdictsCSV writes a verification report as CSV, one row per judged
// sub-question, followed by per-question and total score rows.
func VerdictsCSV(w io.Writer, report *scoring.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"question_id", "question", "sub_index", "sub_question", "answer", "reason", "score"}); err != nil {
		return err
	}
	for _, qr := range report.Questions {
		for _, sv := range qr.Verdicts {
			row := []string{
				fmt.Sprintf("%d", qr.Question.ID),
				qr.Question.Question,
				fmt.Sprintf("%d", sv.SubIndex),
				sv.SubQuestion,
				sv.Answer,
				sv.Reason,
				fmt.Sprintf("%.2f", sv.Score),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{fmt.Sprintf("%d", qr.Question.ID), qr.Question.Question, "", "", "", "weighted score", fmt.Sprintf("%.2f", qr.Score)}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{"", "", "", "", "", "total out of 10", fmt.Sprintf("%.2f", report.Total)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
