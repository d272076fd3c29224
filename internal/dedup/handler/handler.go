package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"dedup-service/internal/dedup/ingest"
	"dedup-service/internal/dedup/model"
	"dedup-service/internal/dedup/service"
	"dedup-service/internal/fileio"
	"dedup-service/internal/store"
)

// AnalysisStore persists finished batches. Optional.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, res model.BatchResult) error
}

// AnalysisReader serves stored batches back. Optional.
type AnalysisReader interface {
	ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisSummary, error)
	GetAnalysis(ctx context.Context, fileID string) (model.BatchResult, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

type Handler struct {
	runner  *service.Runner
	store   AnalysisStore
	history AnalysisReader
	columns ingest.Columns
	log     zerolog.Logger
}

// New builds the HTTP handlers. store and history may be nil.
func New(runner *service.Runner, analyses AnalysisStore, history AnalysisReader, log zerolog.Logger) *Handler {
	return &Handler{runner: runner, store: analyses, history: history, columns: ingest.DefaultColumns(), log: log}
}

type errorResponse struct {
	Error  string   `json:"error"`
	Errors []string `json:"errors,omitempty"`
}

// Upload runs duplicate detection on a spreadsheet posted as multipart field
// "file". Optional form values: header_row (1-based), alternatives (bool).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := h.logger(r)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "bad multipart form: "+err.Error(), nil)
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file: "+err.Error(), nil)
		return
	}
	defer file.Close()

	table, err := fileio.Read(file, header.Filename, atoi(r.FormValue("header_row"), 1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file: "+err.Error(), nil)
		return
	}
	parsed, err := ingest.FromTable(table, h.columns)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if parsed.Total() == 0 {
		writeError(w, http.StatusBadRequest, "file has no data rows", nil)
		return
	}

	res, err := h.runner.Run(r.Context(), service.Batch{
		Filename:     header.Filename,
		Rows:         parsed.Rows,
		Errors:       parsed.Errors,
		Alternatives: toBool(r.FormValue("alternatives"), false),
	})
	switch {
	case errors.Is(err, model.ErrNoReferences):
		log.Error().Err(err).Msg("reference registry unavailable")
		writeError(w, http.StatusServiceUnavailable, "reference registry unavailable", nil)
		return
	case err != nil:
		log.Error().Err(err).Msg("duplicate analysis failed")
		writeError(w, http.StatusInternalServerError, "duplicate analysis failed", nil)
		return
	}

	if h.store != nil {
		if err := h.store.SaveAnalysis(r.Context(), res); err != nil {
			log.Warn().Err(err).Str("file_id", res.FileID).Msg("save analysis")
		}
	}

	writeJSON(w, http.StatusOK, res)
	log.Info().
		Str("file_id", res.FileID).
		Int("records", res.TotalRecords).
		Dur("elapsed", time.Since(start)).
		Msg("upload analysed")
}

type rankResponse struct {
	Name    string              `json:"name"`
	Matches []model.RankedMatch `json:"matches"`
}

// Rank lists the registry entries closest to ?name=.
func (h *Handler) Rank(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'name' is required", nil)
		return
	}
	det := h.runner.Detector()
	limit := atoi(r.URL.Query().Get("limit"), det.Options().MaxMatches)

	corpus, err := h.runner.LoadCorpus(r.Context())
	if err != nil {
		log := h.logger(r)
		log.Error().Err(err).Msg("load references")
		writeError(w, http.StatusServiceUnavailable, "reference registry unavailable", nil)
		return
	}
	matches := det.Rank(name, corpus, limit)
	if matches == nil {
		matches = []model.RankedMatch{}
	}
	writeJSON(w, http.StatusOK, rankResponse{Name: name, Matches: matches})
}

// ListAnalyses returns stored analyses, newest first. ?limit= caps the list.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "analysis history is not enabled", nil)
		return
	}
	limit := atoi(r.URL.Query().Get("limit"), defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	list, err := h.history.ListAnalyses(r.Context(), limit)
	if err != nil {
		log := h.logger(r)
		log.Error().Err(err).Msg("list analyses")
		writeError(w, http.StatusInternalServerError, "failed to list analyses", nil)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAnalysis returns one stored analysis with its records and row errors.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotImplemented, "analysis history is not enabled", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "file_id must be a valid UUID", nil)
		return
	}

	res, err := h.history.GetAnalysis(r.Context(), id.String())
	switch {
	case errors.Is(err, store.ErrAnalysisNotFound):
		writeError(w, http.StatusNotFound, "analysis not found", nil)
		return
	case err != nil:
		log := h.logger(r)
		log.Error().Err(err).Str("file_id", id.String()).Msg("get analysis")
		writeError(w, http.StatusInternalServerError, "failed to load analysis", nil)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Config returns the active matching thresholds.
func (h *Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Detector().Options())
}

func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logger(r *http.Request) zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return h.log
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string, details []string) {
	writeJSON(w, code, errorResponse{Error: msg, Errors: details})
}
