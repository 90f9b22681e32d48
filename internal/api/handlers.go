package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/amberlabs/amber/internal/apperr"
	"github.com/amberlabs/amber/internal/importer"
	"github.com/amberlabs/amber/internal/knowledge"
	"github.com/amberlabs/amber/internal/models"
	"github.com/amberlabs/amber/internal/query"
	"github.com/amberlabs/amber/internal/sse"
	"github.com/amberlabs/amber/internal/status"
	"github.com/amberlabs/amber/internal/store"
)

// Handler holds API route handlers.
type Handler struct {
	query    *query.Service
	importer *importer.Importer
	graph    *knowledge.Graph
	store    *store.Store
	tracker  *status.Tracker
	broker   *sse.Broker
	trigger  chan<- struct{}
	logger   *slog.Logger
}

// NewHandler creates a new Handler. broker and trigger may be nil when the
// corresponding surfaces are disabled.
func NewHandler(q *query.Service, im *importer.Importer, g *knowledge.Graph, s *store.Store, tracker *status.Tracker, broker *sse.Broker, trigger chan<- struct{}, logger *slog.Logger) *Handler {
	return &Handler{
		query:    q,
		importer: im,
		graph:    g,
		store:    s,
		tracker:  tracker,
		broker:   broker,
		trigger:  trigger,
		logger:   logger,
	}
}

// writeErr maps domain errors onto HTTP statuses.
func (h *Handler) writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrUnknownAgent):
		writeJSON(w, http.StatusNotFound, errorBody("unknown agent"))
	case errors.Is(err, apperr.ErrInvalidCutoff):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid cutoff"))
	case errors.Is(err, apperr.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, errorBody("invalid date"))
	default:
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Context handles GET /api/context/{date}.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	entries, err := h.query.EntriesForDate(date)
	if err != nil {
		h.writeErr(w, "context", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":    date,
		"entries": entries,
	})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.query.Search(q, limit)
	if err != nil {
		h.writeErr(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Calendar handles GET /api/calendar.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	counts, err := h.query.EntryCounts()
	if err != nil {
		h.writeErr(w, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"counts": counts,
	})
}

// GetNote handles GET /api/notes/{date}. A date with no note returns 200
// with found=false, not 404: absence is an ordinary state.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	content, found, err := h.store.ReadNote(date)
	if err != nil {
		h.writeErr(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteResponse{Date: date, Content: content, Found: found})
}

// PutNote handles PUT /api/notes/{date}.
func (h *Handler) PutNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	date := chi.URLParam(r, "date")
	var req PutNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("content is required"))
		return
	}
	if err := h.store.WriteNote(date, req.Content); err != nil {
		h.writeErr(w, "put note", err)
		return
	}
	if h.broker != nil {
		h.broker.PublishNoteWritten(date)
	}
	writeJSON(w, http.StatusOK, NoteResponse{Date: date, Content: req.Content, Found: true})
}

// ListPins handles GET /api/pins.
func (h *Handler) ListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := h.query.Pins()
	if err != nil {
		h.writeErr(w, "list pins", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pins": pins,
	})
}

// CreatePin handles POST /api/pins.
func (h *Handler) CreatePin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreatePinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Entry.Source == "" || req.Entry.Kind == "" || req.Entry.Timestamp.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorBody("entry source, kind and timestamp are required"))
		return
	}
	pin, err := h.query.Pin(req.Entry, req.Note)
	if err != nil {
		h.writeErr(w, "create pin", err)
		return
	}
	writeJSON(w, http.StatusCreated, pin)
}

// DeletePin handles DELETE /api/pins/{id}.
func (h *Handler) DeletePin(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.query.Unpin(id); err != nil {
		h.writeErr(w, "delete pin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEntities handles GET /api/entities with an optional ?type= filter.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	filter := models.EntityType(r.URL.Query().Get("type"))
	if filter != "" && !filter.IsValid() {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid entity type"))
		return
	}
	entities, err := h.graph.Read(filter)
	if err != nil {
		h.writeErr(w, "list entities", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": entities,
	})
}

// DeleteEntity handles DELETE /api/entities/{id}.
func (h *Handler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.graph.Delete(id); err != nil {
		h.writeErr(w, "delete entity", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backfill handles POST /api/entities/backfill: rebuilds entity mentions
// from the frontmatter of every stored daily note.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	res, err := h.graph.Backfill(h.logger)
	if err != nil {
		h.writeErr(w, "backfill", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ScanAgents handles GET /api/agents with an optional ?cutoff= in days.
func (h *Handler) ScanAgents(w http.ResponseWriter, r *http.Request) {
	cutoff, _ := strconv.Atoi(r.URL.Query().Get("cutoff"))
	statuses, err := h.importer.Scan(cutoff)
	if err != nil {
		h.writeErr(w, "scan agents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agents": statuses,
	})
}

// PreviewAgent handles GET /api/agents/{id}/preview.
func (h *Handler) PreviewAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cutoff, _ := strconv.Atoi(r.URL.Query().Get("cutoff"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	previews, err := h.importer.Preview(id, cutoff, limit)
	if err != nil {
		h.writeErr(w, "preview agent", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": previews,
	})
}

// ImportAgent handles POST /api/agents/{id}/import. Progress is streamed to
// SSE subscribers while the import runs; the final progress record is the
// response body.
func (h *Handler) ImportAgent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	var onProgress importer.ProgressFunc
	if h.broker != nil {
		onProgress = func(p models.ImportProgress) {
			h.broker.PublishImportProgress(p)
		}
	}
	progress, err := h.importer.Import(id, req.CutoffDays, onProgress)
	if err != nil {
		h.writeErr(w, "import agent", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Summarize handles POST /api/summarize: a manual trigger for the daily
// summarization of today's events. The run is asynchronous.
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody("summarizer not running"))
		return
	}
	select {
	case h.trigger <- struct{}{}:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "already pending"})
	}
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tracker.Snapshot())
}
