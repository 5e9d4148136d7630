package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/harborline/storefront-search/internal/service"
	"github.com/harborline/storefront-search/pkg/httputil"
	"github.com/harborline/storefront-search/pkg/validator"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		service: svc,
		logger:  logger,
	}
}

// searchRequest carries the query parameters for Search. The limit upper
// bound is clamped by the service, not rejected here.
type searchRequest struct {
	Query string `validate:"max=200"`
	Limit int    `validate:"gte=0"`
}

// Search handles GET /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req := searchRequest{Query: strings.TrimSpace(r.URL.Query().Get("q"))}

	if v := r.URL.Query().Get("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteValidationError(w, errors.New("limit must be a number"))
			return
		}
		req.Limit = l
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	result, err := h.service.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Status handles GET /api/v1/search/status
func (h *SearchHandler) Status(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: h.service.Status(r.Context())})
}

// Reindex handles POST /api/v1/search/reindex. The rebuild runs in the
// background; the request only kicks it off.
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx := context.Background()
		if err := h.service.Reindex(ctx); err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", "error", err)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}
