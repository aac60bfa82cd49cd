package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/queryservice"
)

// QueryService is the part of queryservice.Service the handlers use.
type QueryService interface {
	Submit(ctx context.Context, text string) queryservice.Response
	Status() queryservice.Status
	Rebuild(ctx context.Context) (queryservice.Status, error)
}

// LinkSource answers link graph lookups for a single note.
type LinkSource interface {
	LinkGraph(path string) (models.Links, error)
}

// Handler holds API route handlers.
type Handler struct {
	queries QueryService
	links   LinkSource
}

// NewHandler creates a new Handler. links may be nil, in which case the
// links route answers 404.
func NewHandler(queries QueryService, links LinkSource) *Handler {
	return &Handler{queries: queries, links: links}
}

// notePath extracts the note path from the wildcard segment, accepting
// encoded slashes (topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// responseStatus maps a submitQuery response onto an HTTP status.
func responseStatus(resp queryservice.Response) int {
	switch {
	case resp.Success:
		return http.StatusOK
	case resp.NeedsIndex:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// Query handles POST /api/query.
//
//	@Summary		Run a TABLE or LIST query against the metadata index
//	@Tags			query
//	@Accept			json
//	@Produce		json
//	@Param			body	body		QueryRequest	true	"Query text"
//	@Success		200		{object}	queryservice.Response
//	@Failure		400		{object}	queryservice.Response
//	@Failure		503		{object}	queryservice.Response
//	@Security		BearerAuth
//	@Router			/query [post]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := readJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	h.runQuery(w, r, req)
}

// QueryGet handles GET /api/query?q=... for quick checks from a browser.
func (h *Handler) QueryGet(w http.ResponseWriter, r *http.Request) {
	h.runQuery(w, r, QueryRequest{Query: r.URL.Query().Get("q")})
}

func (h *Handler) runQuery(w http.ResponseWriter, r *http.Request, req QueryRequest) {
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	resp := h.queries.Submit(r.Context(), req.Query)
	writeJSON(w, responseStatus(resp), resp)
}

// IndexStatus handles GET /api/index.
//
//	@Summary		Describe the active metadata index snapshot
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IndexStatus
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) IndexStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.queries.Status())
}

// RebuildIndex handles POST /api/index/rebuild.
//
//	@Summary		Rebuild the metadata index from the vault
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	IndexStatus
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/rebuild [post]
func (h *Handler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	st, err := h.queries.Rebuild(r.Context())
	if err != nil {
		slog.Error("index rebuild failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("index rebuild failed"))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Links handles GET /api/links/*.
//
//	@Summary		Outgoing and incoming links of a note
//	@Tags			index
//	@Produce		json
//	@Param			path	path		string	true	"Note path"
//	@Success		200		{object}	LinksResponse
//	@Security		BearerAuth
//	@Router			/links/{path} [get]
func (h *Handler) Links(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" || h.links == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	links, err := h.links.LinkGraph(path)
	if err != nil {
		slog.Error("link lookup failed", slog.String("path", path), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Path: path, Links: links})
}
