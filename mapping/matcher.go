package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
)

// Config controls the match decision policy. Thresholds are tunable
// configuration, not hardcoded law; both fuzzy scores and FuzzyThreshold
// use the 0-100 scale.
type Config struct {
	SemanticThreshold float64 // minimum cosine similarity, default 0.55
	FuzzyThreshold    int     // minimum fuzzy ratio (0-100), default 60
	OverflowLabel     string  // catch-all category for below-threshold sections
}

// Match records the outcome of matching one section heading against the
// canonical category set. Category is empty when the section could not
// be assigned (no catch-all label configured).
type Match struct {
	Category      string  `json:"category,omitempty"`
	SemanticScore float64 `json:"semantic_score"` // rounded to 3 decimals
	FuzzyScore    int     `json:"fuzzy_score"`
	ViaFuzzy      bool    `json:"via_fuzzy,omitempty"`
	Overflow      bool    `json:"overflow,omitempty"`
}

// Matcher assigns section headings to canonical target categories by
// combining dense semantic similarity with a lexical fuzzy ratio.
// The semantic signal is primary: free-form headings ("Scope of Work")
// routinely miss on lexical ratio alone. Fuzzy is the safety net for
// near-identical headings with formatting divergence that embeddings
// under-score.
type Matcher struct {
	index      *Index
	labels     []string
	normLabels []string
	cfg        Config

	labelVecs [][]float32 // encoded once on first Match
}

// NewMatcher creates a matcher over an ordered canonical label set.
// Label embeddings are computed on the first Match call.
func NewMatcher(index *Index, labels []string, cfg Config) *Matcher {
	norm := make([]string, len(labels))
	for i, l := range labels {
		norm[i] = Normalize(l)
	}
	if cfg.SemanticThreshold == 0 {
		cfg.SemanticThreshold = 0.55
	}
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = 60
	}
	return &Matcher{index: index, labels: labels, normLabels: norm, cfg: cfg}
}

// Labels returns the canonical label set in order.
func (m *Matcher) Labels() []string { return m.labels }

// headingPrefix strips the markdown marker and leading numbering from a
// heading line, leaving the human-readable title.
var headingPrefix = regexp.MustCompile(`^#+\s*|^\d+[.)]?\s+`)

// StripHeading reduces a heading line to its title text:
// "## 3. Reference Documents" becomes "Reference Documents".
func StripHeading(heading string) string {
	s := strings.TrimSpace(heading)
	for {
		stripped := headingPrefix.ReplaceAllString(s, "")
		if stripped == s {
			return s
		}
		s = strings.TrimSpace(stripped)
	}
}

// Match computes both signals for one section heading and applies the
// decision policy: semantic above threshold wins, else fuzzy above
// threshold, else the overflow category. A below-threshold section is
// not an error; it is logged with its scores to support threshold
// tuning. Only an unavailable embedding backend fails the call.
func (m *Matcher) Match(ctx context.Context, heading string) (*Match, error) {
	if err := m.ensureLabelVecs(ctx); err != nil {
		return nil, err
	}

	title := StripHeading(heading)

	vec, err := m.index.Embed(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("embedding heading %q: %w", title, err)
	}

	bestSemIdx, bestSem := 0, math.Inf(-1)
	for i, lv := range m.labelVecs {
		if s := Cosine(vec, lv); s > bestSem {
			bestSemIdx, bestSem = i, s
		}
	}

	normTitle := Normalize(title)
	bestFuzzyIdx, bestFuzzy := 0, -1
	for i, nl := range m.normLabels {
		if r := Ratio(normTitle, nl); r > bestFuzzy {
			bestFuzzyIdx, bestFuzzy = i, r
		}
	}

	match := &Match{
		SemanticScore: math.Round(bestSem*1000) / 1000,
		FuzzyScore:    bestFuzzy,
	}

	switch {
	case bestSem >= m.cfg.SemanticThreshold:
		match.Category = m.labels[bestSemIdx]
	case bestFuzzy >= m.cfg.FuzzyThreshold:
		match.Category = m.labels[bestFuzzyIdx]
		match.ViaFuzzy = true
	default:
		slog.Debug("mapping: section below both thresholds",
			"heading", title,
			"semantic_score", match.SemanticScore, "semantic_best", m.labels[bestSemIdx],
			"fuzzy_score", bestFuzzy, "fuzzy_best", m.labels[bestFuzzyIdx])
		match.Overflow = true
		if m.hasLabel(m.cfg.OverflowLabel) {
			match.Category = m.cfg.OverflowLabel
		} else {
			slog.Warn("mapping: no overflow category configured, section left unassigned",
				"heading", title)
		}
	}
	return match, nil
}

func (m *Matcher) ensureLabelVecs(ctx context.Context) error {
	if m.labelVecs != nil {
		return nil
	}
	vecs, err := m.index.EmbedLabels(ctx, m.labels)
	if err != nil {
		return err
	}
	m.labelVecs = vecs
	return nil
}

func (m *Matcher) hasLabel(label string) bool {
	if label == "" {
		return false
	}
	for _, l := range m.labels {
		if l == label {
			return true
		}
	}
	return false
}
