// Package srsmap maps the free-form sections of a requirements
// document onto a canonical SRS category set. A document is located and
// split by its numbered headings, each heading is matched against the
// canonical labels by embedding similarity with a lexical fuzzy
// fallback, and the mapped result can then be verified against a
// question bank by a chat LLM.
package srsmap

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aayushanand1411/srsmap/docproc"
	"github.com/aayushanand1411/srsmap/llm"
	"github.com/aayushanand1411/srsmap/mapping"
	"github.com/aayushanand1411/srsmap/scoring"
	"github.com/aayushanand1411/srsmap/section"
	"github.com/aayushanand1411/srsmap/store"
)

// Engine is the main entry point for the section mapping engine.
type Engine interface {
	// MapFile ingests a document from disk, maps its sections onto the
	// canonical categories, and persists the run. Markdown, plain text
	// and PDF are supported.
	MapFile(ctx context.Context, path string) (*MapResult, error)

	// MapLines maps already-loaded document lines under the given name.
	MapLines(ctx context.Context, name string, lines []string) (*MapResult, error)

	// Verify judges a mapped run against the question bank for the
	// given document type and persists the verdicts. An empty docType
	// selects the whole bank.
	Verify(ctx context.Context, runID int64, docType string) (*scoring.Report, error)

	// Labels returns the canonical category set in order.
	Labels() []string

	// Store returns the underlying store for direct access by the HTTP
	// and CLI layers.
	Store() *store.Store

	// Close cleanly shuts down the engine.
	Close() error
}

// MapResult is the outcome of one mapping run.
type MapResult struct {
	RunID    int64              `json:"run_id"`
	Results  *mapping.ResultSet `json:"results"`
	Headings []string           `json:"headings"`
	// Notes carries numbering anomalies observed in the heading
	// sequence (gaps, repeats, out-of-order numbers).
	Notes     []string      `json:"notes,omitempty"`
	Model     string        `json:"model"`
	Duration  time.Duration `json:"-"`
	FromCache bool          `json:"from_cache,omitempty"`
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg      Config
	store    *store.Store
	chatLLM  llm.Provider
	index    *mapping.Index
	matcher  *mapping.Matcher
	verifier *scoring.Verifier
	vision   llm.VisionProvider
	labels   []string
}

// New creates a new srsmap engine with the given configuration.
func New(cfg Config) (Engine, error) {
	if cfg.SemanticThreshold < 0 || cfg.SemanticThreshold > 1 {
		return nil, fmt.Errorf("%w: semantic threshold %v outside [0,1]", ErrInvalidConfig, cfg.SemanticThreshold)
	}
	if cfg.FuzzyThreshold < 0 || cfg.FuzzyThreshold > 100 {
		return nil, fmt.Errorf("%w: fuzzy threshold %d outside [0,100]", ErrInvalidConfig, cfg.FuzzyThreshold)
	}

	// Apply defaults for zero values
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 768
	}
	if cfg.SemanticThreshold == 0 {
		cfg.SemanticThreshold = 0.55
	}
	if cfg.FuzzyThreshold == 0 {
		cfg.FuzzyThreshold = 60
	}
	labels := cfg.Labels
	if len(labels) == 0 {
		labels = mapping.DefaultLabels()
	}

	s, err := store.New(cfg.resolveDBPath(), cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	chatLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Chat.Provider,
		Model:    cfg.Chat.Model,
		BaseURL:  cfg.Chat.BaseURL,
		APIKey:   cfg.Chat.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}

	embedLLM, err := llm.NewProvider(llm.Config{
		Provider: cfg.Embedding.Provider,
		Model:    cfg.Embedding.Model,
		BaseURL:  cfg.Embedding.BaseURL,
		APIKey:   cfg.Embedding.APIKey,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	// The fallback embedding provider points at the same endpoint with
	// the fallback model, unless the primary already is that model.
	var fallbackLLM llm.Provider
	fallbackModel := ""
	if cfg.Embedding.Model != FallbackEmbeddingModel {
		fallbackLLM, err = llm.NewProvider(llm.Config{
			Provider: cfg.Embedding.Provider,
			Model:    FallbackEmbeddingModel,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating fallback embedding provider: %w", err)
		}
		fallbackModel = FallbackEmbeddingModel
	}

	var vision llm.VisionProvider
	if cfg.CaptionImages && cfg.Vision.Provider != "" {
		vision, err = llm.NewVisionProvider(llm.Config{
			Provider: cfg.Vision.Provider,
			Model:    cfg.Vision.Model,
			BaseURL:  cfg.Vision.BaseURL,
			APIKey:   cfg.Vision.APIKey,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("creating vision provider: %w", err)
		}
	}

	index := mapping.NewIndex(embedLLM, fallbackLLM, cfg.Embedding.Model, fallbackModel, s)
	matcher := mapping.NewMatcher(index, labels, mapping.Config{
		SemanticThreshold: cfg.SemanticThreshold,
		FuzzyThreshold:    cfg.FuzzyThreshold,
		OverflowLabel:     cfg.OverflowLabel,
	})
	verifier := scoring.NewVerifier(
		scoring.NewJudge(chatLLM, cfg.Chat.Model),
		cfg.ReferenceMatchThreshold,
	)

	return &engine{
		cfg:      cfg,
		store:    s,
		chatLLM:  chatLLM,
		index:    index,
		matcher:  matcher,
		verifier: verifier,
		vision:   vision,
		labels:   labels,
	}, nil
}

func (e *engine) Labels() []string { return e.labels }

func (e *engine) Store() *store.Store { return e.store }

func (e *engine) Close() error { return e.store.Close() }

// MapFile loads a document from disk and maps it. PDF input is
// optionally cropped to shed running headers and footers before text
// extraction.
func (e *engine) MapFile(ctx context.Context, path string) (*MapResult, error) {
	var lines []string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		lines, err = docproc.ReadLines(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		lines = e.captionPlaceholders(ctx, path, lines)
	case ".pdf":
		src := path
		if e.cfg.CropTopPt > 0 || e.cfg.CropBottomPt > 0 {
			cropped := filepath.Join(os.TempDir(), "cropped-"+filepath.Base(path))
			if cropErr := docproc.CropHeadersFooters(path, cropped, e.cfg.CropTopPt, e.cfg.CropBottomPt); cropErr != nil {
				slog.Warn("cropping failed, extracting from original", "path", path, "error", cropErr)
			} else {
				src = cropped
				defer os.Remove(cropped)
			}
		}
		lines, err = docproc.ExtractLines(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("extracting %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	return e.mapLines(ctx, path, filepath.Base(path), lines)
}

// MapLines maps already-loaded lines under a synthetic name.
func (e *engine) MapLines(ctx context.Context, name string, lines []string) (*MapResult, error) {
	if name == "" {
		name = "inline"
	}
	return e.mapLines(ctx, name, name, lines)
}

func (e *engine) mapLines(ctx context.Context, path, filename string, lines []string) (*MapResult, error) {
	start := time.Now()
	hash := contentHash(lines)

	headings := section.Headings(lines)
	doc := section.Split(lines, headings, e.cfg.CoverPageLineLimit)
	notes := section.CheckNumbering(headings)
	for _, n := range notes {
		slog.Warn("heading numbering anomaly", "file", filename, "note", n)
	}

	rs := mapping.NewResultSet(e.labels)
	for _, key := range doc.Keys {
		content := doc.Sections[key]
		if key == section.CoverKey {
			if entry, ok := rs.Get(section.CoverKey); ok {
				entry.Content = content
			}
			continue
		}

		match, err := e.matcher.Match(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
		}
		if match.Category == "" {
			continue // no overflow label configured; already logged
		}
		if err := rs.Assign(match.Category, content, match.SemanticScore, match.FuzzyScore); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownCategory, err)
		}
	}

	runID, err := e.store.CreateRun(ctx, store.Run{
		Path:        path,
		Filename:    filename,
		ContentHash: hash,
		Model:       e.index.Model(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating run: %w", err)
	}

	var sections []store.MappedSection
	for _, entry := range rs.Entries() {
		sections = append(sections, store.MappedSection{
			Category:      entry.Category,
			Content:       entry.Content,
			SemanticScore: entry.SemanticScore,
			FuzzyScore:    entry.FuzzyScore,
		})
	}
	if err := e.store.ReplaceMappedSections(ctx, runID, sections); err != nil {
		return nil, fmt.Errorf("persisting sections: %w", err)
	}
	if err := e.store.UpdateRunStatus(ctx, runID, store.StatusMapped); err != nil {
		return nil, fmt.Errorf("updating run status: %w", err)
	}

	elapsed := time.Since(start)
	if err := e.store.UpdateRunDuration(ctx, runID, elapsed); err != nil {
		slog.Warn("recording run duration failed", "run_id", runID, "error", err)
	}

	slog.Info("document mapped",
		"run_id", runID, "file", filename,
		"headings", len(headings), "model", e.index.Model(),
		"elapsed_ms", elapsed.Milliseconds())

	return &MapResult{
		RunID:    runID,
		Results:  rs,
		Headings: headings,
		Notes:    notes,
		Model:    e.index.Model(),
		Duration: elapsed,
	}, nil
}

// Verify judges a mapped run against the question bank and persists the
// verdicts, replacing any earlier verification of the same run.
func (e *engine) Verify(ctx context.Context, runID int64, docType string) (*scoring.Report, error) {
	if _, err := e.store.GetRun(ctx, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("loading run: %w", err)
	}

	sections, err := e.store.GetMappedSections(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading sections: %w", err)
	}
	questions, err := e.store.ListQuestions(ctx, docType)
	if err != nil {
		return nil, fmt.Errorf("loading questions: %w", err)
	}

	var full strings.Builder
	for _, sec := range sections {
		full.WriteString(sec.Content)
		full.WriteString("\n")
	}

	report, err := e.verifier.Verify(ctx, questions, sections, full.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}

	if err := e.store.ClearVerdicts(ctx, runID); err != nil {
		return nil, fmt.Errorf("clearing old verdicts: %w", err)
	}
	if err := e.store.InsertVerdicts(ctx, report.StoreVerdicts(runID)); err != nil {
		return nil, fmt.Errorf("persisting verdicts: %w", err)
	}
	if err := e.store.UpdateRunStatus(ctx, runID, store.StatusVerified); err != nil {
		return nil, fmt.Errorf("updating run status: %w", err)
	}

	slog.Info("run verified", "run_id", runID, "questions", len(report.Questions), "total", report.Total)
	return report, nil
}

// captionPlaceholders replaces image placeholders in markdown with
// vision-generated captions when captioning is enabled and an images
// directory sits next to the document. Failures degrade to the
// untouched lines.
func (e *engine) captionPlaceholders(ctx context.Context, path string, lines []string) []string {
	if e.vision == nil {
		return lines
	}
	hasPlaceholder := false
	for _, l := range lines {
		if strings.Contains(l, docproc.ImagePlaceholder) {
			hasPlaceholder = true
			break
		}
	}
	if !hasPlaceholder {
		return lines
	}

	imgDir := filepath.Join(filepath.Dir(path), "images")
	if info, err := os.Stat(imgDir); err != nil || !info.IsDir() {
		slog.Warn("image placeholders present but no images directory", "dir", imgDir)
		return lines
	}

	captioner := docproc.NewCaptioner(e.vision, "")
	descs, err := captioner.CaptionDir(ctx, imgDir)
	if err != nil {
		slog.Warn("image captioning failed", "dir", imgDir, "error", err)
		return lines
	}

	replaced, n := docproc.ReplaceImagePlaceholders(lines, descs)
	slog.Info("image placeholders replaced", "count", n)
	return replaced
}

func contentHash(lines []string) string {
	h := sha256.New()
	for _, l := range lines {
		h.Write([]byte(l))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
