package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/photovault/photovault/internal/auth"
	"github.com/photovault/photovault/internal/handler/dto"
	"github.com/photovault/photovault/internal/middleware"
	"github.com/photovault/photovault/internal/service"
)

// Searcher answers natural-language queries for one identity.
type Searcher interface {
	Search(ctx context.Context, identity auth.Identity, query string) ([]service.SearchResult, error)
}

// SearchHandler handles semantic image search.
type SearchHandler struct {
	search Searcher
	logger *slog.Logger
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(search Searcher, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{search: search, logger: logger}
}

// Search ranks the caller's images against the query parameter.
// GET /images/search?query=...
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	identity := auth.MustIdentityFromContext(r.Context())

	query := r.URL.Query().Get("query")
	if err := middleware.ValidateSearchQuery(query); err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	results, err := h.search.Search(r.Context(), identity, middleware.NormalizeQuery(query))
	if err != nil {
		handleServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToSearchResponse(results))
}
