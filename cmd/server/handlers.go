package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	srsmap "github.com/aayushanand1411/srsmap"
	"github.com/aayushanand1411/srsmap/export"
	"github.com/aayushanand1411/srsmap/scoring"
	"github.com/aayushanand1411/srsmap/store"
)

type handler struct {
	engine   srsmap.Engine
	validate *validator.Validate
}

func newHandler(e srsmap.Engine) *handler {
	return &handler{engine: e, validate: validator.New()}
}

// POST /documents
// Accepts multipart file upload or JSON with file path; maps the
// document and returns the run.
func (h *handler) handleMapDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	// Try multipart upload first
	if err := r.ParseMultipartForm(100 << 20); err == nil { // 100MB max
		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()

			// Sanitise filename to prevent path traversal.
			safeName := filepath.Base(header.Filename)

			tmpPath := filepath.Join(os.TempDir(), safeName)
			dst, err := os.Create(tmpPath)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to process file")
				slog.Error("creating temp file", "error", err)
				return
			}
			if _, err := io.Copy(dst, file); err != nil {
				dst.Close()
				writeError(w, http.StatusInternalServerError, "failed to save file")
				slog.Error("saving uploaded file", "error", err)
				return
			}
			dst.Close()
			defer os.Remove(tmpPath)

			h.mapAndRespond(ctx, w, tmpPath)
			return
		}
	}

	// Try JSON body with path
	var req struct {
		Path string `json:"path" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart file or JSON with 'path'")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	// Validate that path is a real file (prevents directory traversal probing).
	absPath, err := filepath.Abs(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		writeError(w, http.StatusBadRequest, "path must be an existing file")
		return
	}

	h.mapAndRespond(ctx, w, absPath)
}

func (h *handler) mapAndRespond(ctx context.Context, w http.ResponseWriter, path string) {
	res, err := h.engine.MapFile(ctx, path)
	if err != nil {
		switch {
		case errors.Is(err, srsmap.ErrUnsupportedFormat):
			writeError(w, http.StatusBadRequest, "unsupported document format")
		case errors.Is(err, srsmap.ErrEmbeddingUnavailable):
			writeError(w, http.StatusServiceUnavailable, "embedding backend unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "mapping failed")
		}
		slog.Error("map error", "path", path, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /runs
func (h *handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.engine.Store().ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		slog.Error("list runs error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GET /runs/{id}
func (h *handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, err := h.engine.Store().GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	sections, err := h.engine.Store().GetMappedSections(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run, "sections": sections})
}

// DELETE /runs/{id}
func (h *handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Store().DeleteRun(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete run error", "run_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /runs/{id}/verify
func (h *handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		DocType string `json:"doc_type"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	report, err := h.engine.Verify(ctx, id, req.DocType)
	if err != nil {
		switch {
		case errors.Is(err, srsmap.ErrRunNotFound):
			writeError(w, http.StatusNotFound, "run not found")
		case errors.Is(err, srsmap.ErrLLMUnavailable):
			writeError(w, http.StatusServiceUnavailable, "chat model unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "verification failed")
		}
		slog.Error("verify error", "run_id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GET /runs/{id}/report
func (h *handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, sections, report, ok := h.loadRunData(w, r, id)
	if !ok {
		return
	}

	html, err := export.HTMLReport(run, sections, report)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "report rendering failed")
		slog.Error("report error", "run_id", id, "error", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(html)
}

// GET /runs/{id}/export.json
func (h *handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, sections, report, ok := h.loadRunData(w, r, id)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.JSON(w, map[string]any{"run": run, "sections": sections, "report": report}); err != nil {
		slog.Error("json export error", "run_id", id, "error", err)
	}
}

// GET /runs/{id}/export.csv
func (h *handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	_, _, report, ok := h.loadRunData(w, r, id)
	if !ok {
		return
	}
	if report == nil {
		writeError(w, http.StatusConflict, "run has not been verified")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%d-verdicts.csv", id))
	if err := export.VerdictsCSV(w, report); err != nil {
		slog.Error("csv export error", "run_id", id, "error", err)
	}
}

// GET /runs/{id}/export.xlsx
func (h *handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	_, sections, report, ok := h.loadRunData(w, r, id)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=run-%d.xlsx", id))
	if err := export.XLSX(w, sections, report); err != nil {
		slog.Error("xlsx export error", "run_id", id, "error", err)
	}
}

// loadRunData fetches everything an export needs. The report is nil
// for runs that were never verified.
func (h *handler) loadRunData(w http.ResponseWriter, r *http.Request, id int64) (*store.Run, []store.MappedSection, *scoring.Report, bool) {
	s := h.engine.Store()
	run, err := s.GetRun(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, nil, nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, nil, nil, false
	}
	sections, err := s.GetMappedSections(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load sections")
		return nil, nil, nil, false
	}
	verdicts, err := s.GetVerdicts(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load verdicts")
		return nil, nil, nil, false
	}
	var report *scoring.Report
	if len(verdicts) > 0 {
		questions, err := s.ListQuestions(r.Context(), "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load questions")
			return nil, nil, nil, false
		}
		report = scoring.ReportFromRows(questions, verdicts)
	}
	return run, sections, report, true
}

// questionRequest is the validated payload for question create/update.
type questionRequest struct {
	DocType             string    `json:"doc_type" validate:"required"`
	Question            string    `json:"question" validate:"required"`
	SubQuestions        []string  `json:"sub_questions" validate:"required,min=1,dive,required"`
	ReferenceSection    string    `json:"reference_section"`
	SpecialInstructions []string  `json:"special_instructions"`
	Weight              float64   `json:"weight" validate:"gte=0"`
	SubWeights          []float64 `json:"sub_weights" validate:"required,min=1"`
}

func (h *handler) decodeQuestion(w http.ResponseWriter, r *http.Request) (*questionRequest, bool) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("validation failed: %v", err))
		return nil, false
	}
	if len(req.SubWeights) != len(req.SubQuestions) {
		writeError(w, http.StatusBadRequest, "sub_weights must match sub_questions in length")
		return nil, false
	}
	return &req, true
}

func (req *questionRequest) toStore() store.Question {
	return store.Question{
		DocType:             req.DocType,
		Question:            req.Question,
		SubQuestions:        req.SubQuestions,
		ReferenceSection:    req.ReferenceSection,
		SpecialInstructions: req.SpecialInstructions,
		Weight:              req.Weight,
		SubWeights:          req.SubWeights,
	}
}

// GET /questions
func (h *handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions, err := h.engine.Store().ListQuestions(r.Context(), r.URL.Query().Get("doc_type"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list questions")
		slog.Error("list questions error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

// POST /questions
func (h *handler) handleAddQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	id, err := h.engine.Store().AddQuestion(r.Context(), req.toStore())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to add question")
		slog.Error("add question error", "error", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// GET /questions/{id}
func (h *handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.engine.Store().GetQuestion(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load question")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// PUT /questions/{id}
func (h *handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	req, ok := h.decodeQuestion(w, r)
	if !ok {
		return
	}
	q := req.toStore()
	q.ID = id
	if err := h.engine.Store().UpdateQuestion(r.Context(), q); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update question")
		slog.Error("update question error", "id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DELETE /questions/{id}
func (h *handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.engine.Store().DeleteQuestion(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "question not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete question")
		slog.Error("delete question error", "id", id, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Store().DBStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
