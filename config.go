package srsmap

import (
	"os"
	"path/filepath"
)

// FallbackEmbeddingModel is used when the configured embedding model
// cannot be loaded. The switch is logged, never silent.
const FallbackEmbeddingModel = "nomic-embed-text"

// Config holds all configuration for the srsmap engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.srsmap/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath is
	// not explicitly set. "home" (default) uses ~/.srsmap/, "local" uses
	// the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`
	Vision    LLMConfig `json:"vision" yaml:"vision"`

	// Matching thresholds. SemanticThreshold is a minimum cosine
	// similarity in [0,1]; FuzzyThreshold is a minimum Levenshtein ratio
	// on the 0-100 scale. Both thresholds and the scores they gate use
	// the same scale conventions throughout the engine.
	SemanticThreshold float64 `json:"semantic_threshold" yaml:"semantic_threshold"`
	FuzzyThreshold    int     `json:"fuzzy_threshold" yaml:"fuzzy_threshold"`

	// CoverPageLineLimit caps the number of lines captured before the
	// first recognized heading.
	CoverPageLineLimit int `json:"cover_page_line_limit" yaml:"cover_page_line_limit"`

	// Labels is the ordered canonical target category set. Empty means
	// the default SRS taxonomy.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// OverflowLabel is the catch-all category for sections whose scores
	// fall below both thresholds. Must be a member of Labels; if it is
	// not, unmatched sections are left unassigned and logged.
	OverflowLabel string `json:"overflow_label" yaml:"overflow_label"`

	// ReferenceMatchThreshold gates fuzzy resolution of a question's
	// reference section name against mapped category labels (0-100).
	ReferenceMatchThreshold int `json:"reference_match_threshold" yaml:"reference_match_threshold"`

	// Embedding dimensions (must match the embedding model).
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// PDF preprocessing: header/footer crop margins in points.
	// Zero disables cropping.
	CropTopPt    float64 `json:"crop_top_pt" yaml:"crop_top_pt"`
	CropBottomPt float64 `json:"crop_bottom_pt" yaml:"crop_bottom_pt"`

	// CaptionImages enables vision-LLM captioning of image placeholders
	// during document conversion.
	CaptionImages bool `json:"caption_images" yaml:"caption_images"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, lmstudio, openai, gemini, groq, openrouter, xai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local
// inference. Database is stored in ~/.srsmap/srsmap.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "srsmap",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "glm4:latest",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		Vision: LLMConfig{
			Provider: "ollama",
			Model:    "gemma3:4b",
			BaseURL:  "http://localhost:11434",
		},
		SemanticThreshold:       0.55,
		FuzzyThreshold:          60,
		CoverPageLineLimit:      50,
		OverflowLabel:           "17 SomethingElse",
		ReferenceMatchThreshold: 76,
		EmbeddingDim:            768,
		CropTopPt:               67,
		CropBottomPt:            84,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "srsmap"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".srsmap", name+".db")
	}
}
