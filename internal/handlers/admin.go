package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Dreaming-Lion/Veritas/internal/recommend"
	"github.com/Dreaming-Lion/Veritas/internal/summarize"
)

type batchSummarizer interface {
	UpdateMissing(ctx context.Context, limit int, force bool) (summarize.BatchResult, error)
}

type indexRebuilder interface {
	Reindex(ctx context.Context) (int, error)
}

type cacheWarmer interface {
	PrecomputeRecent(ctx context.Context, p recommend.Params, lookbackHours, maxItems int) (recommend.PrecomputeStats, error)
}

// AdminHandler groups the operational maintenance endpoints.
type AdminHandler struct {
	Summarizer  batchSummarizer
	Indexer     indexRebuilder
	Reco        cacheWarmer
	RecoParams  recommend.Params
	Abstractive bool
}

type summaryRunRequest struct {
	Limit int  `json:"limit"`
	Force bool `json:"force"`
}

// SummaryRun handles POST /api/admin/summary/run with an optional JSON body
// {"limit": 200, "force": false}.
func (h *AdminHandler) SummaryRun(w http.ResponseWriter, r *http.Request) {
	req := summaryRunRequest{Limit: 200}
	if r.Body != nil {
		// An empty or absent body keeps the defaults.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Limit <= 0 {
		req.Limit = 200
	}

	res, err := h.Summarizer.UpdateMissing(r.Context(), req.Limit, req.Force)
	if err != nil {
		slog.Error("admin summary run", "err", err)
		writeError(w, http.StatusInternalServerError, "summary batch failed")
		return
	}
	if res.Skipped {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "skipped": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"updated": res.Updated,
		"total":   res.Total,
	})
}

// SummaryHealth handles GET /api/admin/summary/health.
func (h *AdminHandler) SummaryHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"abstractive": h.Abstractive,
	})
}

// Reindex handles POST /api/admin/reindex: refit the vectorizer and rebuild
// the vector collection from the full corpus.
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	n, err := h.Indexer.Reindex(r.Context())
	if err != nil {
		slog.Error("admin reindex", "err", err)
		writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "indexed": n})
}

// Precompute handles POST /api/admin/precompute?lookback_hours=24&max_items=400.
func (h *AdminHandler) Precompute(w http.ResponseWriter, r *http.Request) {
	lookback := queryInt(r, "lookback_hours", 24)
	maxItems := queryInt(r, "max_items", 400)

	stats, err := h.Reco.PrecomputeRecent(r.Context(), h.RecoParams, lookback, maxItems)
	if err != nil {
		slog.Error("admin precompute", "err", err)
		writeError(w, http.StatusInternalServerError, "precompute failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"scanned": stats.Scanned,
		"cached":  stats.Cached,
	})
}
