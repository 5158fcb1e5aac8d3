package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Run statuses.
const (
	StatusPending  = "pending"
	StatusMapped   = "mapped"
	StatusVerified = "verified"
	StatusFailed   = "failed"
)

// Run represents a row in the runs table: one mapping pass over one
// document.
type Run struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	ContentHash string `json:"content_hash"`
	Model       string `json:"model,omitempty"`
	Status      string `json:"status"`
	DurationMS  int64  `json:"duration_ms"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// MappedSection represents a row in the mapped_sections table. Score
// pointers are nil for categories assigned without that signal (the
// cover page, overflow assignments).
type MappedSection struct {
	ID            int64    `json:"id"`
	RunID         int64    `json:"run_id"`
	Category      string   `json:"category"`
	Content       string   `json:"content"`
	SemanticScore *float64 `json:"semantic_score,omitempty"`
	FuzzyScore    *int     `json:"fuzzy_score,omitempty"`
	Position      int      `json:"position"`
}

// Question represents a row in the questions table. SubQuestions,
// SpecialInstructions and SubWeights are stored as JSON columns.
type Question struct {
	ID                  int64     `json:"id"`
	DocType             string    `json:"doc_type"`
	Question            string    `json:"question"`
	SubQuestions        []string  `json:"sub_questions"`
	ReferenceSection    string    `json:"reference_section,omitempty"`
	SpecialInstructions []string  `json:"special_instructions,omitempty"`
	Weight              float64   `json:"weight"`
	SubWeights          []float64 `json:"sub_weights"`
	CreatedAt           string    `json:"created_at,omitempty"`
}

// Verdict represents a row in the verdicts table: the judged answer for
// one sub-question of one question in a run.
type Verdict struct {
	ID         int64   `json:"id"`
	RunID      int64   `json:"run_id"`
	QuestionID int64   `json:"question_id"`
	SubIndex   int     `json:"sub_index"`
	Answer     string  `json:"answer"`
	Reason     string  `json:"reason,omitempty"`
	Score      float64 `json:"score"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// Stats summarises row counts for diagnostics.
type Stats struct {
	Runs         int `json:"runs"`
	Sections     int `json:"sections"`
	Questions    int `json:"questions"`
	Verdicts     int `json:"verdicts"`
	CachedLabels int `json:"cached_labels"`
}

// Store wraps the SQLite database for all srsmap persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and
// initialises the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{db: db, embeddingDim: embeddingDim}

	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured vector dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Run operations ---

// CreateRun inserts a new run row and returns its id.
func (s *Store) CreateRun(ctx context.Context, r Run) (int64, error) {
	if r.Status == "" {
		r.Status = StatusPending
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (path, filename, content_hash, model, status, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.Path, r.Filename, r.ContentHash, r.Model, r.Status, r.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// GetRun fetches a run by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, content_hash, COALESCE(model, ''), status, duration_ms, created_at, updated_at
		FROM runs WHERE id = ?`, id)
	var r Run
	if err := row.Scan(&r.ID, &r.Path, &r.Filename, &r.ContentHash, &r.Model,
		&r.Status, &r.DurationMS, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRunByHash returns the most recent run for a content hash, or
// sql.ErrNoRows when the document has never been mapped.
func (s *Store) GetRunByHash(ctx context.Context, hash string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, content_hash, COALESCE(model, ''), status, duration_ms, created_at, updated_at
		FROM runs WHERE content_hash = ? ORDER BY id DESC LIMIT 1`, hash)
	var r Run
	if err := row.Scan(&r.ID, &r.Path, &r.Filename, &r.ContentHash, &r.Model,
		&r.Status, &r.DurationMS, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, content_hash, COALESCE(model, ''), status, duration_ms, created_at, updated_at
		FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Path, &r.Filename, &r.ContentHash, &r.Model,
			&r.Status, &r.DurationMS, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// UpdateRunStatus sets the status of a run.
func (s *Store) UpdateRunStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// UpdateRunDuration records how long the mapping pass took.
func (s *Store) UpdateRunDuration(ctx context.Context, id int64, d time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET duration_ms = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		d.Milliseconds(), id)
	return err
}

// DeleteRun removes a run and its dependent rows.
func (s *Store) DeleteRun(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM verdicts WHERE run_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM mapped_sections WHERE run_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// --- Mapped section operations ---

// ReplaceMappedSections replaces the mapped sections of a run in one
// transaction, preserving the given order via the position column.
func (s *Store) ReplaceMappedSections(ctx context.Context, runID int64, sections []MappedSection) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM mapped_sections WHERE run_id = ?", runID); err != nil {
			return err
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO mapped_sections (run_id, category, content, semantic_score, fuzzy_score, position)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, sec := range sections {
			if _, err := stmt.ExecContext(ctx, runID, sec.Category, sec.Content,
				sec.SemanticScore, sec.FuzzyScore, i); err != nil {
				return fmt.Errorf("inserting section %q: %w", sec.Category, err)
			}
		}
		return nil
	})
}

// GetMappedSections returns a run's sections in canonical order.
func (s *Store) GetMappedSections(ctx context.Context, runID int64) ([]MappedSection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, category, content, semantic_score, fuzzy_score, position
		FROM mapped_sections WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []MappedSection
	for rows.Next() {
		var sec MappedSection
		if err := rows.Scan(&sec.ID, &sec.RunID, &sec.Category, &sec.Content,
			&sec.SemanticScore, &sec.FuzzyScore, &sec.Position); err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}
	return sections, rows.Err()
}

// GetMappedSection returns one category of a run, or sql.ErrNoRows.
func (s *Store) GetMappedSection(ctx context.Context, runID int64, category string) (*MappedSection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, category, content, semantic_score, fuzzy_score, position
		FROM mapped_sections WHERE run_id = ? AND category = ?`, runID, category)
	var sec MappedSection
	if err := row.Scan(&sec.ID, &sec.RunID, &sec.Category, &sec.Content,
		&sec.SemanticScore, &sec.FuzzyScore, &sec.Position); err != nil {
		return nil, err
	}
	return &sec, nil
}

// --- Question operations ---

// AddQuestion inserts a question and returns its id.
func (s *Store) AddQuestion(ctx context.Context, q Question) (int64, error) {
	subs, err := json.Marshal(q.SubQuestions)
	if err != nil {
		return 0, fmt.Errorf("encoding sub_questions: %w", err)
	}
	instr, err := json.Marshal(q.SpecialInstructions)
	if err != nil {
		return 0, fmt.Errorf("encoding special_instructions: %w", err)
	}
	weights, err := json.Marshal(q.SubWeights)
	if err != nil {
		return 0, fmt.Errorf("encoding sub_weights: %w", err)
	}
	if q.Weight == 0 {
		q.Weight = 1.0
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (doc_type, question, sub_questions, reference_section, special_instructions, weight, sub_weights)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.DocType, q.Question, string(subs), q.ReferenceSection, string(instr), q.Weight, string(weights))
	if err != nil {
		return 0, fmt.Errorf("inserting question: %w", err)
	}
	return res.LastInsertId()
}

// GetQuestion fetches a question by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, doc_type, question, sub_questions, COALESCE(reference_section, ''),
			COALESCE(special_instructions, 'null'), weight, sub_weights, created_at
		FROM questions WHERE id = ?`, id)
	q, err := scanQuestion(row.Scan)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// ListQuestions returns questions, optionally filtered by document
// type. An empty docType returns the whole bank.
func (s *Store) ListQuestions(ctx context.Context, docType string) ([]Question, error) {
	query := `
		SELECT id, doc_type, question, sub_questions, COALESCE(reference_section, ''),
			COALESCE(special_instructions, 'null'), weight, sub_weights, created_at
		FROM questions`
	args := []any{}
	if docType != "" {
		query += " WHERE doc_type = ?"
		args = append(args, docType)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		q, err := scanQuestion(rows.Scan)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, rows.Err()
}

// UpdateQuestion rewrites a question row in place.
func (s *Store) UpdateQuestion(ctx context.Context, q Question) error {
	subs, err := json.Marshal(q.SubQuestions)
	if err != nil {
		return fmt.Errorf("encoding sub_questions: %w", err)
	}
	instr, err := json.Marshal(q.SpecialInstructions)
	if err != nil {
		return fmt.Errorf("encoding special_instructions: %w", err)
	}
	weights, err := json.Marshal(q.SubWeights)
	if err != nil {
		return fmt.Errorf("encoding sub_weights: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE questions SET doc_type = ?, question = ?, sub_questions = ?,
			reference_section = ?, special_instructions = ?, weight = ?, sub_weights = ?
		WHERE id = ?`,
		q.DocType, q.Question, string(subs), q.ReferenceSection, string(instr),
		q.Weight, string(weights), q.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteQuestion removes a question and its verdicts.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM verdicts WHERE question_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func scanQuestion(scan func(...any) error) (*Question, error) {
	var q Question
	var subs, instr, weights string
	if err := scan(&q.ID, &q.DocType, &q.Question, &subs, &q.ReferenceSection,
		&instr, &q.Weight, &weights, &q.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(subs), &q.SubQuestions); err != nil {
		return nil, fmt.Errorf("decoding sub_questions: %w", err)
	}
	if err := json.Unmarshal([]byte(instr), &q.SpecialInstructions); err != nil {
		return nil, fmt.Errorf("decoding special_instructions: %w", err)
	}
	if err := json.Unmarshal([]byte(weights), &q.SubWeights); err != nil {
		return nil, fmt.Errorf("decoding sub_weights: %w", err)
	}
	return &q, nil
}

// --- Verdict operations ---

// InsertVerdicts stores judged answers in one transaction.
func (s *Store) InsertVerdicts(ctx context.Context, verdicts []Verdict) error {
	if len(verdicts) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO verdicts (run_id, question_id, sub_index, answer, reason, score)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, v := range verdicts {
			if _, err := stmt.ExecContext(ctx, v.RunID, v.QuestionID, v.SubIndex,
				v.Answer, v.Reason, v.Score); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetVerdicts returns a run's verdicts ordered by question then
// sub-question.
func (s *Store) GetVerdicts(ctx context.Context, runID int64) ([]Verdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, question_id, sub_index, answer, COALESCE(reason, ''), score, created_at
		FROM verdicts WHERE run_id = ? ORDER BY question_id, sub_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var verdicts []Verdict
	for rows.Next() {
		var v Verdict
		if err := rows.Scan(&v.ID, &v.RunID, &v.QuestionID, &v.SubIndex,
			&v.Answer, &v.Reason, &v.Score, &v.CreatedAt); err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}

// ClearVerdicts removes a run's verdicts so verification can be rerun.
func (s *Store) ClearVerdicts(ctx context.Context, runID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM verdicts WHERE run_id = ?", runID)
	return err
}

// --- Label vector cache ---

// LabelVector returns the cached embedding for a model/label pair, or
// nil when the pair has not been cached. Implements mapping.VectorCache.
func (s *Store) LabelVector(ctx context.Context, model, label string) ([]float32, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM label_keys WHERE model = ? AND label_hash = ?",
		model, hashLabel(label)).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var blob []byte
	err = s.db.QueryRowContext(ctx,
		"SELECT embedding FROM vec_labels WHERE label_id = ?", id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return deserializeFloat32(blob), nil
}

// PutLabelVector caches a label embedding. Implements
// mapping.VectorCache.
func (s *Store) PutLabelVector(ctx context.Context, model, label string, vec []float32) error {
	if len(vec) != s.embeddingDim {
		return fmt.Errorf("label vector dim %d, store configured for %d", len(vec), s.embeddingDim)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO label_keys (model, label_hash) VALUES (?, ?)",
			model, hashLabel(label))
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// Key already existed; look it up.
			if err := tx.QueryRowContext(ctx,
				"SELECT id FROM label_keys WHERE model = ? AND label_hash = ?",
				model, hashLabel(label)).Scan(&id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM vec_labels WHERE label_id = ?", id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO vec_labels (label_id, embedding) VALUES (?, ?)",
			id, serializeFloat32(vec))
		return err
	})
}

// --- Diagnostics ---

// DBStats returns row counts for all core tables.
func (s *Store) DBStats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM runs", &st.Runs},
		{"SELECT COUNT(*) FROM mapped_sections", &st.Sections},
		{"SELECT COUNT(*) FROM questions", &st.Questions},
		{"SELECT COUNT(*) FROM verdicts", &st.Verdicts},
		{"SELECT COUNT(*) FROM label_keys", &st.CachedLabels},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func hashLabel(label string) string {
	sum := sha256.Sum256([]byte(label))
	return hex.EncodeToString(sum[:])
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
