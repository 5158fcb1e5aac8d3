//go:build cgo

package srsmap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "test.db")
	cfg.EmbeddingDim = 4
	return cfg
}

func TestNewAndClose(t *testing.T) {
	eng, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if eng.Store() == nil {
		t.Error("expected non-nil store")
	}
	if len(eng.Labels()) != 18 {
		t.Errorf("expected 18 default labels, got %d", len(eng.Labels()))
	}
	if err := eng.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewInvalidThresholds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"semantic above one", func(c *Config) { c.SemanticThreshold = 1.5 }},
		{"semantic negative", func(c *Config) { c.SemanticThreshold = -0.1 }},
		{"fuzzy above hundred", func(c *Config) { c.FuzzyThreshold = 101 }},
		{"fuzzy negative", func(c *Config) { c.FuzzyThreshold = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestNewCustomLabels(t *testing.T) {
	cfg := testConfig(t)
	cfg.Labels = []string{"Cover Page", "1 Alpha", "2 Beta"}
	eng, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()
	if len(eng.Labels()) != 3 {
		t.Errorf("labels = %v", eng.Labels())
	}
}

func TestMapFileUnsupportedFormat(t *testing.T) {
	eng, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	_, err = eng.MapFile(context.Background(), "/tmp/nope.docx")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestVerifyRunNotFound(t *testing.T) {
	eng, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	_, err = eng.Verify(context.Background(), 12345, "")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestContentHash(t *testing.T) {
	a := contentHash([]string{"one", "two"})
	b := contentHash([]string{"one", "two"})
	if a != b {
		t.Error("hash must be deterministic")
	}
	if a == contentHash([]string{"one", "three"}) {
		t.Error("different content must hash differently")
	}
	// Line boundaries matter: ["ab"] differs from ["a", "b"].
	if contentHash([]string{"ab"}) == contentHash([]string{"a", "b"}) {
		t.Error("line structure must affect the hash")
	}
}

func TestResolveDBPath(t *testing.T) {
	c := Config{DBPath: "/explicit/path.db"}
	if got := c.resolveDBPath(); got != "/explicit/path.db" {
		t.Errorf("explicit path = %q", got)
	}

	c = Config{DBName: "custom", StorageDir: "local"}
	if got := c.resolveDBPath(); got != "custom.db" {
		t.Errorf("local path = %q", got)
	}

	c = Config{}
	got := c.resolveDBPath()
	if filepath.Base(got) != "srsmap.db" {
		t.Errorf("default path = %q", got)
	}
}
