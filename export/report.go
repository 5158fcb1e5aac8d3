package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/aayushanand1411/srsmap/scoring"
	"github.com/aayushanand1411/srsmap/store"
)

// MarkdownReport renders a run summary as GFM markdown: run metadata,
// the mapped-section table, and the verdict table when the run has been
// verified.
func MarkdownReport(run *store.Run, sections []store.MappedSection, report *scoring.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Mapping Report: %s\n\n", run.Filename)
	fmt.Fprintf(&sb, "- Run: %d\n", run.ID)
	fmt.Fprintf(&sb, "- Status: %s\n", run.Status)
	if run.Model != "" {
		fmt.Fprintf(&sb, "- Embedding model: %s\n", run.Model)
	}
	fmt.Fprintf(&sb, "- Mapped: %s\n\n", run.CreatedAt)

	sb.WriteString("## Sections\n\n")
	sb.WriteString("| Category | Semantic | Fuzzy | Preview |\n")
	sb.WriteString("| --- | --- | --- | --- |\n")
	for _, sec := range sections {
		semantic := "-"
		if sec.SemanticScore != nil {
			semantic = fmt.Sprintf("%.3f", *sec.SemanticScore)
		}
		fuzzy := "-"
		if sec.FuzzyScore != nil {
			fuzzy = fmt.Sprintf("%d", *sec.FuzzyScore)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
			mdEscape(sec.Category), semantic, fuzzy, mdEscape(previewLine(sec.Content)))
	}

	if report != nil {
		sb.WriteString("\n## Verification\n\n")
		sb.WriteString("| Question | Sub-Question | Answer | Reason |\n")
		sb.WriteString("| --- | --- | --- | --- |\n")
		for _, qr := range report.Questions {
			for i, sv := range qr.Verdicts {
				question := ""
				if i == 0 {
					question = qr.Question.Question
				}
				fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
					mdEscape(question), mdEscape(sv.SubQuestion), sv.Answer, mdEscape(sv.Reason))
			}
			fmt.Fprintf(&sb, "| | | Score | %.2f |\n", qr.Score)
		}
		fmt.Fprintf(&sb, "\n**Score out of 10: %.2f**\n", report.Total)
	}

	return sb.String()
}

// HTMLReport renders the markdown report to HTML.
func HTMLReport(run *store.Run, sections []store.MappedSection, report *scoring.Report) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(MarkdownReport(run, sections, report)), &buf); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

// previewLine flattens content to a single bounded line for table cells.
func previewLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 120 {
		s = s[:120] + "..."
	}
	return s
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
