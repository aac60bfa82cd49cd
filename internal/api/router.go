package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(queries QueryService, links LinkSource, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(queries, links)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Post("/query", h.Query)
	r.Get("/query", h.QueryGet)

	r.Get("/index", h.IndexStatus)
	r.Post("/index/rebuild", h.RebuildIndex)

	r.Get("/links/*", h.Links)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
