package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dreaming-Lion/Veritas/internal/ingest"
	"github.com/Dreaming-Lion/Veritas/internal/models"
)

type feedCrawler interface {
	CrawlAll(ctx context.Context, filter []string) *ingest.Report
	CrawlFeed(ctx context.Context, src ingest.Source) (*ingest.FeedStats, error)
}

type rssStore interface {
	SourceStats(ctx context.Context, sinceHours int) ([]models.SourceStat, *time.Time, error)
	ListRecent(ctx context.Context, source string, limit, offset int) ([]models.Article, error)
}

// RSSHandler exposes manual crawl triggers and crawl result views.
type RSSHandler struct {
	Articles rssStore
	Ingest   feedCrawler
}

// RunAll handles POST /api/rss/run?sources=한겨레&sources=SBS. With no
// sources given every feed runs.
func (h *RSSHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	sources := r.URL.Query()["sources"]
	report := h.Ingest.CrawlAll(r.Context(), sources)
	writeJSON(w, http.StatusOK, report)
}

// RunOne handles POST /api/rss/run/{source}.
func (h *RSSHandler) RunOne(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "source")
	src, ok := ingest.SourceByName(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown source: "+name)
		return
	}

	st, err := h.Ingest.CrawlFeed(r.Context(), src)
	if err != nil {
		slog.Error("rss run one", "source", name, "err", err)
		writeError(w, http.StatusInternalServerError, "crawl failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total": map[string]int{
			"processed": st.Processed,
			"inserted":  st.Inserted,
			"updated":   st.Updated,
		},
		"by_source": map[string]*ingest.FeedStats{name: st},
	})
}

// Stats handles GET /api/rss/stats?since_hours=24.
func (h *RSSHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sinceHours := queryInt(r, "since_hours", 24)
	if sinceHours <= 0 {
		sinceHours = 24
	}

	stats, latest, err := h.Articles.SourceStats(r.Context(), sinceHours)
	if err != nil {
		slog.Error("rss stats", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if stats == nil {
		stats = []models.SourceStat{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"since":                  time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour).Format(time.RFC3339),
		"by_source":              stats,
		"latest_article_overall": latest,
	})
}

// Recent handles GET /api/rss/recent?source=&limit=50&offset=0.
func (h *RSSHandler) Recent(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)

	items, err := h.Articles.ListRecent(r.Context(), source, limit, offset)
	if err != nil {
		slog.Error("rss recent", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []models.Article{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}
