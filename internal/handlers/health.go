package handlers

import (
	"context"
	"net/http"

	"github.com/Dreaming-Lion/Veritas/internal/tfidf"
)

type dbPinger interface {
	Ping(ctx context.Context) error
}

type vectorBackend interface {
	Info(ctx context.Context) (dim int, points int64, err error)
}

// HealthHandler reports backend readiness.
type HealthHandler struct {
	DB     dbPinger
	Qdrant vectorBackend
	Loader *tfidf.Loader
}

// Health handles GET /healthz. The process answers 200 as long as it is up;
// individual backends report their own state in the body.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	dbOK := h.DB.Ping(r.Context()) == nil

	dim, points, err := h.Qdrant.Info(r.Context())
	qdrantOK := err == nil

	vecLoaded := false
	if v, err := h.Loader.Current(); err == nil && v != nil {
		vecLoaded = true
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                dbOK && qdrantOK,
		"db":                dbOK,
		"qdrant":            map[string]any{"ok": qdrantOK, "dim": dim, "points": points},
		"vectorizer_loaded": vecLoaded,
	})
}
