package handlers

import (
	"context"
	"errors"
	"html"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dreaming-Lion/Veritas/internal/models"
)

type summaryStore interface {
	GetByID(ctx context.Context, id int64) (*models.Article, error)
	SummaryByLink(ctx context.Context, raw, unescaped string) (string, error)
	ListSummaries(ctx context.Context, limit, offset int, q string) ([]models.SummaryItem, error)
}

// SummaryHandler serves summary-only article views.
type SummaryHandler struct {
	Articles summaryStore
}

// ByID handles GET /api/article/{id}/summary?strict=false. Without strict a
// missing summary comes back as an empty string; with strict it is a 404.
func (h *SummaryHandler) ByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid article id")
		return
	}

	a, err := h.Articles.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		slog.Error("summary by id", "id", id, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	summary := strings.TrimSpace(a.Summary)
	if queryBool(r, "strict", false) && summary == "" {
		writeError(w, http.StatusNotFound, "summary not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// ByLink handles GET /api/article/summary/by-link?link=...&strict=false.
// The link is matched both as given and entity-unescaped, since stored links
// went through HTML unescaping at crawl time.
func (h *SummaryHandler) ByLink(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("link")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "link is required")
		return
	}
	unescaped := html.UnescapeString(raw)

	summary, err := h.Articles.SummaryByLink(r.Context(), raw, unescaped)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "article not found")
			return
		}
		slog.Error("summary by link", "link", raw, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if queryBool(r, "strict", false) && summary == "" {
		writeError(w, http.StatusNotFound, "summary not available")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// List handles GET /api/article/summary?limit=50&offset=0&q=.
func (h *SummaryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	q := r.URL.Query().Get("q")

	items, err := h.Articles.ListSummaries(r.Context(), limit, offset, q)
	if err != nil {
		slog.Error("summary list", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []models.SummaryItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}
