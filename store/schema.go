package store

import "fmt"

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension.
func schemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
-- One mapping run per ingested document, with hash-based change detection
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY,
    path TEXT NOT NULL,
    filename TEXT NOT NULL,
    content_hash TEXT NOT NULL,
    model TEXT,
    status TEXT DEFAULT 'pending',
    duration_ms INTEGER DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Mapped sections: one row per canonical category assigned in a run
CREATE TABLE IF NOT EXISTS mapped_sections (
    id INTEGER PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    content TEXT NOT NULL,
    semantic_score REAL,
    fuzzy_score INTEGER,
    position INTEGER NOT NULL,
    UNIQUE(run_id, category)
);

-- Verification question bank
CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY,
    doc_type TEXT NOT NULL,
    question TEXT NOT NULL,
    sub_questions JSON NOT NULL,
    reference_section TEXT,
    special_instructions JSON,
    weight REAL NOT NULL DEFAULT 1.0,
    sub_weights JSON NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Per-sub-question LLM verdicts for a run
CREATE TABLE IF NOT EXISTS verdicts (
    id INTEGER PRIMARY KEY,
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    sub_index INTEGER NOT NULL,
    answer TEXT NOT NULL,
    reason TEXT,
    score REAL NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Canonical-label embedding cache, keyed by model + label hash
CREATE TABLE IF NOT EXISTS label_keys (
    id INTEGER PRIMARY KEY,
    model TEXT NOT NULL,
    label_hash TEXT NOT NULL,
    UNIQUE(model, label_hash)
);

-- Vector side of the label cache via sqlite-vec
CREATE VIRTUAL TABLE IF NOT EXISTS vec_labels USING vec0(
    label_id INTEGER PRIMARY KEY,
    embedding float[%d]
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_mapped_sections_run ON mapped_sections(run_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_run ON verdicts(run_id);
CREATE INDEX IF NOT EXISTS idx_verdicts_question ON verdicts(question_id);
CREATE INDEX IF NOT EXISTS idx_questions_doc_type ON questions(doc_type);
CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(content_hash);
`, embeddingDim)
}
