// Package scoring verifies a mapped document against a question bank:
// each sub-question is judged by a chat LLM with a yes/no JSON verdict,
// and verdicts roll up into weighted per-question and document scores.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aayushanand1411/srsmap/llm"
)

// Answer values under the lenient rubric.
const (
	AnswerYes       = "Yes"
	AnswerPartially = "Partially Yes"
	AnswerNo        = "No"
)

// Verdict is the JSON shape the judge model is asked to return.
type Verdict struct {
	Answer string `json:"Answer"`
	Reason string `json:"Reason"`
}

// MalformedError reports a judge response that could not be parsed as
// the expected JSON shape. Callers treat it as a scoreable "No" rather
// than a fatal failure.
type MalformedError struct {
	Raw string
}

func (e *MalformedError) Error() string {
	raw := e.Raw
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return fmt.Sprintf("malformed judge response: %q", raw)
}

// AnswerValue maps an answer string to its score contribution:
// Yes = 1, Partially Yes = 0.5, anything else = 0.
func AnswerValue(answer string) float64 {
	switch strings.TrimSpace(answer) {
	case AnswerYes:
		return 1
	case AnswerPartially:
		return 0.5
	default:
		return 0
	}
}

// judgePrompt instructs the model to evaluate leniently: partially
// covered or implied information counts as "Partially Yes", not "No".
const judgePrompt = `#########################
Text: %s
#########################
Instructions:
You are given a document content in the above ` + "`Text`" + `.

Now, follow the checklist below carefully:
%s

Your task:
Evaluate the document practically, not rigidly.
If the information seems partially mentioned, inferred, or described indirectly, still consider it as "Partially Yes" (not strictly No).
Be lenient where technical meaning is clear even if phrasing differs.

Respond in JSON format as:
{
"Answer": "Yes" / "Partially Yes" / "No",
"Reason": "Provide a clear, concise explanation (40-60 words) describing which aspects are mentioned, implied, or missing. Be objective and avoid repetition."
}

Guidelines:
- If the content explicitly meets the criteria: "Yes".
- If it somewhat covers or implies it: "Partially Yes".
- If it is missing or unrelated: "No".
- Maintain neutral tone and professional phrasing.`

// Judge asks a chat model yes/no questions about document content.
type Judge struct {
	chat  llm.Provider
	model string
}

// NewJudge creates a judge backed by the given chat provider and model.
func NewJudge(chat llm.Provider, model string) *Judge {
	return &Judge{chat: chat, model: model}
}

// Ask evaluates one checklist item against the given content. A
// response that is not valid verdict JSON returns a *MalformedError.
func (j *Judge) Ask(ctx context.Context, content, instruction string) (*Verdict, error) {
	resp, err := j.chat.Chat(ctx, llm.ChatRequest{
		Model: j.model,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(judgePrompt, content, instruction)},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("judge chat: %w", err)
	}

	jsonStr, err := extractJSON(resp.Content)
	if err != nil {
		return nil, &MalformedError{Raw: resp.Content}
	}

	var v Verdict
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return nil, &MalformedError{Raw: resp.Content}
	}
	if strings.TrimSpace(v.Answer) == "" {
		return nil, &MalformedError{Raw: resp.Content}
	}
	return &v, nil
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// extractJSON attempts to find a valid JSON object in the LLM response text.
// It handles common LLM quirks: markdown code blocks, text before/after JSON.
func extractJSON(raw string) (string, error) {
	// Strip markdown code blocks first.
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}

	raw = strings.TrimSpace(raw)

	// If it already starts with '{', try as-is.
	if strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	// Find the first '{' and last '}' to extract the JSON object.
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], nil
	}

	return "", fmt.Errorf("no JSON object found in response")
}
