package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/aayushanand1411/srsmap/scoring"
	"github.com/aayushanand1411/srsmap/store"
)

const (
	sheetSections = "Sections"
	sheetVerdicts = "Verdicts"

	// Section content is previewed, not dumped wholesale, to keep the
	// workbook readable.
	contentPreviewLen = 500
)

// XLSX writes a workbook with one sheet of mapped sections and, when a
// report is given, one sheet of verdicts.
func XLSX(w io.Writer, sections []store.MappedSection, report *scoring.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSectionsSheet(f, sections); err != nil {
		return err
	}
	if report != nil {
		if err := writeVerdictsSheet(f, report); err != nil {
			return err
		}
	}

	// The default sheet excelize creates is replaced by ours.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSectionsSheet(f *excelize.File, sections []store.MappedSection) error {
	if _, err := f.NewSheet(sheetSections); err != nil {
		return fmt.Errorf("creating sections sheet: %w", err)
	}

	header := []any{"Category", "Semantic Score", "Fuzzy Score", "Content"}
	if err := f.SetSheetRow(sheetSections, "A1", &header); err != nil {
		return err
	}

	for i, sec := range sections {
		semantic := ""
		if sec.SemanticScore != nil {
			semantic = fmt.Sprintf("%.3f", *sec.SemanticScore)
		}
		fuzzy := ""
		if sec.FuzzyScore != nil {
			fuzzy = fmt.Sprintf("%d", *sec.FuzzyScore)
		}
		row := []any{sec.Category, semantic, fuzzy, preview(sec.Content)}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheetSections, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeVerdictsSheet(f *excelize.File, report *scoring.Report) error {
	if _, err := f.NewSheet(sheetVerdicts); err != nil {
		return fmt.Errorf("creating verdicts sheet: %w", err)
	}

	header := []any{"Question", "Sub-Question", "Answer", "Reason", "Score"}
	if err := f.SetSheetRow(sheetVerdicts, "A1", &header); err != nil {
		return err
	}

	rowNum := 2
	for _, qr := range report.Questions {
		for _, sv := range qr.Verdicts {
			row := []any{qr.Question.Question, sv.SubQuestion, sv.Answer, sv.Reason, sv.Score}
			if err := f.SetSheetRow(sheetVerdicts, fmt.Sprintf("A%d", rowNum), &row); err != nil {
				return err
			}
			rowNum++
		}
		row := []any{qr.Question.Question, "", "", "weighted score", qr.Score}
		if err := f.SetSheetRow(sheetVerdicts, fmt.Sprintf("A%d", rowNum), &row); err != nil {
			return err
		}
		rowNum++
	}

	total := []any{"", "", "", "total out of 10", report.Total}
	return f.SetSheetRow(sheetVerdicts, fmt.Sprintf("A%d", rowNum), &total)
}

func preview(s string) string {
	if len(s) <= contentPreviewLen {
		return s
	}
	return s[:contentPreviewLen] + "..."
}
