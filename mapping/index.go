package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/aayushanand1411/srsmap/llm"
)

// VectorCache persists label embeddings across mapping runs, keyed by
// model and label text. A nil vector with nil error signals a miss.
type VectorCache interface {
	LabelVector(ctx context.Context, model, label string) ([]float32, error)
	PutLabelVector(ctx context.Context, model, label string, vec []float32) error
}

// Index wraps an embedding provider and encodes the canonical label set
// once per mapping run. The provider is injected at construction; there
// is no ambient global model. If the primary model fails on first use,
// the index falls back to a known-good default model and logs the
// switch. Selection happens once, under a lock, so concurrent mapping
// runs share a single initialization.
type Index struct {
	primary       llm.Provider
	fallback      llm.Provider
	primaryModel  string
	fallbackModel string
	cache         VectorCache

	mu     sync.Mutex
	active llm.Provider
	model  string
}

// NewIndex creates an embedding index. fallback may be nil to disable
// the fallback path. cache may be nil to disable persistence.
func NewIndex(primary, fallback llm.Provider, primaryModel, fallbackModel string, cache VectorCache) *Index {
	return &Index{
		primary:       primary,
		fallback:      fallback,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		cache:         cache,
	}
}

// Model returns the model identifier actually in use, which differs
// from the configured one after a fallback.
func (ix *Index) Model() string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.model == "" {
		return ix.primaryModel
	}
	return ix.model
}

// Embed encodes a single text.
func (ix *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := ix.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch encodes texts in one provider call, preserving order.
func (ix *Index) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	provider, err := ix.acquire(ctx)
	if err != nil {
		return nil, err
	}
	vecs, err := provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding batch of %d: %w", len(texts), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// EmbedLabels encodes the canonical label set, reusing cached vectors
// where available. Misses are embedded in a single batch call so a
// mapping run costs O(sections + labels) embedding calls, not
// O(sections x labels).
func (ix *Index) EmbedLabels(ctx context.Context, labels []string) ([][]float32, error) {
	// Resolve the active provider before consulting the cache. Reading
	// cached vectors under the configured model while a later embed call
	// falls back would mix vectors from two embedding spaces.
	if _, err := ix.acquire(ctx); err != nil {
		return nil, err
	}
	model := ix.Model()

	vecs := make([][]float32, len(labels))
	var missing []string
	var missingIdx []int

	for i, label := range labels {
		if ix.cache != nil {
			cached, err := ix.cache.LabelVector(ctx, model, label)
			if err != nil {
				slog.Warn("mapping: label vector cache read failed", "label", label, "error", err)
			} else if cached != nil {
				vecs[i] = cached
				continue
			}
		}
		missing = append(missing, label)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fresh, err := ix.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		for j, vec := range fresh {
			vecs[missingIdx[j]] = vec
			if ix.cache != nil {
				if err := ix.cache.PutLabelVector(ctx, model, missing[j], vec); err != nil {
					slog.Warn("mapping: label vector cache write failed", "label", missing[j], "error", err)
				}
			}
		}
	}
	return vecs, nil
}

// acquire returns the active provider, probing the primary model on
// first use and switching to the fallback when the probe fails. A
// failed attempt releases the lock with the index still uninitialized,
// so a later call may retry.
func (ix *Index) acquire(ctx context.Context) (llm.Provider, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.active != nil {
		return ix.active, nil
	}

	if _, err := ix.primary.Embed(ctx, []string{"probe"}); err == nil {
		ix.active = ix.primary
		ix.model = ix.primaryModel
		return ix.active, nil
	} else {
		slog.Warn("mapping: primary embedding model failed, trying fallback",
			"primary", ix.primaryModel, "fallback", ix.fallbackModel, "error", err)
	}

	if ix.fallback == nil {
		return nil, fmt.Errorf("embedding model %q unavailable and no fallback configured", ix.primaryModel)
	}
	if _, err := ix.fallback.Embed(ctx, []string{"probe"}); err != nil {
		return nil, fmt.Errorf("embedding models %q and %q both unavailable: %w",
			ix.primaryModel, ix.fallbackModel, err)
	}

	slog.Info("mapping: using fallback embedding model", "model", ix.fallbackModel)
	ix.active = ix.fallback
	ix.model = ix.fallbackModel
	return ix.active, nil
}

// Cosine returns the cosine similarity of two vectors in [-1, 1].
// Mismatched or zero-length vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
