package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Timeline reads.
	r.Get("/context/{date}", h.Context)
	r.Get("/search", h.Search)
	r.Get("/calendar", h.Calendar)

	// Daily notes.
	r.Get("/notes/{date}", h.GetNote)
	r.Put("/notes/{date}", h.PutNote)

	// Pins.
	r.Get("/pins", h.ListPins)
	r.Post("/pins", h.CreatePin)
	r.Delete("/pins/{id}", h.DeletePin)

	// Knowledge entities.
	r.Get("/entities", h.ListEntities)
	r.Delete("/entities/{id}", h.DeleteEntity)
	r.Post("/entities/backfill", h.Backfill)

	// Agent session import.
	r.Get("/agents", h.ScanAgents)
	r.Get("/agents/{id}/preview", h.PreviewAgent)
	r.Post("/agents/{id}/import", h.ImportAgent)

	// Summarization and status.
	r.Post("/summarize", h.Summarize)
	r.Get("/status", h.Status)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
