// Package api exposes the question answering service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"vidstats/internal/catalog"
	"vidstats/internal/domain"
)

// maxBodyBytes caps the answer request body.
const maxBodyBytes = 64 << 10

// Answerer turns a question into a numeric string. It never fails.
type Answerer interface {
	Answer(ctx context.Context, question string) string
}

// HistoryReader reads the answer log. Optional.
type HistoryReader interface {
	List(ctx context.Context, filter domain.AnswerFilter) ([]domain.AnswerRecord, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

// Pinger reports database reachability. Optional.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the answer API.
type Handler struct {
	answers Answerer
	history HistoryReader
	db      Pinger
	logger  *slog.Logger
}

// NewHandler creates a Handler. history and db may be nil; the routes that
// need them then report the feature as unavailable.
func NewHandler(answers Answerer, history HistoryReader, db Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{answers: answers, history: history, db: db, logger: logger}
}

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// Answer handles POST /v1/answer. Any well-formed body yields 200, including
// questions that cannot be answered ("0").
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation("invalid request body: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Answer: h.answers.Answer(r.Context(), req.Question)})
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: 503 while the database is unreachable.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type schemaField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Class string `json:"class"`
	Delta bool   `json:"delta,omitempty"`
	Doc   string `json:"doc,omitempty"`
}

type schemaTable struct {
	Name   string        `json:"name"`
	Doc    string        `json:"doc"`
	Fields []schemaField `json:"fields"`
}

// Schema handles GET /v1/schema: the tables and fields questions can touch.
func (h *Handler) Schema(w http.ResponseWriter, _ *http.Request) {
	tables := make([]schemaTable, 0, 2)
	for _, src := range []*catalog.Source{catalog.Videos(), catalog.Snapshots()} {
		t := schemaTable{Name: string(src.Name), Doc: src.Doc}
		for _, f := range src.Fields() {
			t.Fields = append(t.Fields, schemaField{
				Name: f.Name, Type: f.Type, Class: f.Class.String(), Delta: f.Delta, Doc: f.Doc,
			})
		}
		tables = append(tables, t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": tables})
}

type answerEntry struct {
	ID          string    `json:"id"`
	RequestID   string    `json:"request_id,omitempty"`
	Question    string    `json:"question"`
	Strategy    string    `json:"strategy"`
	Path        string    `json:"path"`
	Plan        *string   `json:"plan,omitempty"`
	SQL         *string   `json:"sql,omitempty"`
	Answer      string    `json:"answer"`
	Status      string    `json:"status"`
	FailureKind *string   `json:"failure_kind,omitempty"`
	Error       *string   `json:"error,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func answerEntryFromRecord(rec domain.AnswerRecord) answerEntry {
	return answerEntry{
		ID: rec.ID, RequestID: rec.RequestID, Question: rec.Question,
		Strategy: rec.Strategy, Path: rec.Path, Plan: rec.PlanJSON, SQL: rec.SQL,
		Answer: rec.Answer, Status: rec.Status, FailureKind: rec.FailureKind,
		Error: rec.Error, DurationMs: rec.DurationMs, CreatedAt: rec.CreatedAt,
	}
}

// History handles GET /v1/answers?status=OK|FAILED&limit=N.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Code: http.StatusNotFound, Message: "answer log is disabled"})
		return
	}
	filter, err := historyFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := h.history.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list answers", "error", err)
		writeError(w, err)
		return
	}
	entries := make([]answerEntry, 0, len(recs))
	for _, rec := range recs {
		entries = append(entries, answerEntryFromRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": entries})
}

// HistoryStats handles GET /v1/answers/stats.
func (h *Handler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Code: http.StatusNotFound, Message: "answer log is disabled"})
		return
	}
	counts, err := h.history.CountByStatus(r.Context())
	if err != nil {
		h.logger.Error("count answers", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

func historyFilter(r *http.Request) (domain.AnswerFilter, error) {
	var filter domain.AnswerFilter
	q := r.URL.Query()
	if s := q.Get("status"); s != "" {
		if s != domain.AnswerStatusOK && s != domain.AnswerStatusFailed {
			return filter, domain.ErrValidation("status must be %s or %s", domain.AnswerStatusOK, domain.AnswerStatusFailed)
		}
		filter.Status = &s
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 1000 {
			return filter, domain.ErrValidation("limit must be between 1 and 1000")
		}
		filter.Limit = n
	}
	return filter, nil
}
