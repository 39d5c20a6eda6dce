package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/recommend"
)

type recoService interface {
	Get(ctx context.Context, baseLink string, p recommend.Params, allowStale bool) (*recommend.Result, error)
	CacheOnly(ctx context.Context, baseLink string, p recommend.Params) (*recommend.Result, error)
}

// RecommendHandler serves opposing-viewpoint recommendations.
type RecommendHandler struct {
	Svc recoService
}

// recoParams parses and bounds-checks the shared recommendation query
// parameters. The second return is false when a bound was violated and a 400
// has already been written.
func recoParams(w http.ResponseWriter, r *http.Request) (string, recommend.Params, bool, bool) {
	clicked := r.URL.Query().Get("clicked_link")
	if clicked == "" {
		writeError(w, http.StatusBadRequest, "clicked_link is required")
		return "", recommend.Params{}, false, false
	}

	p := recommend.Params{
		HoursWindow:     queryInt(r, "hours_window", 48),
		TopK:            queryInt(r, "topk_return", queryInt(r, "top_k", 8)),
		StanceThreshold: queryFloat(r, "nli_threshold", 0.1),
	}
	if p.HoursWindow < 6 || p.HoursWindow > 168 {
		writeError(w, http.StatusBadRequest, "hours_window must be between 6 and 168")
		return "", recommend.Params{}, false, false
	}
	if p.TopK < 1 || p.TopK > 20 {
		writeError(w, http.StatusBadRequest, "topk_return must be between 1 and 20")
		return "", recommend.Params{}, false, false
	}
	if p.StanceThreshold < 0 || p.StanceThreshold > 1 {
		writeError(w, http.StatusBadRequest, "nli_threshold must be between 0 and 1")
		return "", recommend.Params{}, false, false
	}

	return clicked, p, queryBool(r, "allow_stale", true), true
}

// Recommend handles GET /api/article/recommend and its /api/recommend alias.
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	clicked, p, allowStale, ok := recoParams(w, r)
	if !ok {
		return
	}

	res, err := h.Svc.Get(r.Context(), clicked, p, allowStale)
	if err != nil {
		var nf *recommend.NotFoundError
		if errors.As(err, &nf) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error":      "base article not found",
				"normalized": nf.Normalized,
			})
			return
		}
		slog.Error("recommend", "clicked_link", clicked, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RecommendCached handles GET /api/article/recommend-cached: cache reads
// only, 204 when no entry exists.
func (h *RecommendHandler) RecommendCached(w http.ResponseWriter, r *http.Request) {
	clicked, p, _, ok := recoParams(w, r)
	if !ok {
		return
	}

	res, err := h.Svc.CacheOnly(r.Context(), clicked, p)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		slog.Error("recommend cached", "clicked_link", clicked, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
