package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Dreaming-Lion/Veritas/internal/models"
)

type fakeSummaryStore struct {
	byID      map[int64]*models.Article
	byLink    map[string]string
	items     []models.SummaryItem
	lastQuery string
}

func (s *fakeSummaryStore) GetByID(ctx context.Context, id int64) (*models.Article, error) {
	if a, ok := s.byID[id]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

func (s *fakeSummaryStore) SummaryByLink(ctx context.Context, raw, unescaped string) (string, error) {
	if sum, ok := s.byLink[raw]; ok {
		return sum, nil
	}
	if sum, ok := s.byLink[unescaped]; ok {
		return sum, nil
	}
	return "", models.ErrNotFound
}

func (s *fakeSummaryStore) ListSummaries(ctx context.Context, limit, offset int, q string) ([]models.SummaryItem, error) {
	s.lastQuery = q
	return s.items, nil
}

func summaryRouter(h *SummaryHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/article/{id}/summary", h.ByID)
	r.Get("/api/article/summary/by-link", h.ByLink)
	r.Get("/api/article/summary", h.List)
	return r
}

func TestSummaryByIDStrictSemantics(t *testing.T) {
	store := &fakeSummaryStore{byID: map[int64]*models.Article{
		1: {ID: 1, Summary: "요약 본문"},
		2: {ID: 2, Summary: ""},
	}}
	r := summaryRouter(&SummaryHandler{Articles: store})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	if rec := get("/api/article/1/summary"); rec.Code != http.StatusOK {
		t.Errorf("existing summary: status = %d", rec.Code)
	}
	// Missing summary without strict: empty string, 200.
	rec := get("/api/article/2/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["summary"] != "" {
		t.Errorf("summary = %q, want empty", body["summary"])
	}
	// Missing summary with strict: 404.
	if rec := get("/api/article/2/summary?strict=true"); rec.Code != http.StatusNotFound {
		t.Errorf("strict missing summary: status = %d, want 404", rec.Code)
	}
	// Unknown article: always 404.
	if rec := get("/api/article/99/summary"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown article: status = %d, want 404", rec.Code)
	}
	// Bad id: 400.
	if rec := get("/api/article/abc/summary"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id: status = %d, want 400", rec.Code)
	}
}

func TestSummaryByLinkUnescapesEntities(t *testing.T) {
	store := &fakeSummaryStore{byLink: map[string]string{
		"https://n.example/a?x=1&y=2": "요약",
	}}
	r := summaryRouter(&SummaryHandler{Articles: store})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/article/summary/by-link?link=https%3A%2F%2Fn.example%2Fa%3Fx%3D1%26amp%3By%3D2", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 via unescaped match", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/article/summary/by-link?link=https://absent.example", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/article/summary/by-link", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing link: status = %d, want 400", rec.Code)
	}
}

func TestSummaryListPassesQuery(t *testing.T) {
	store := &fakeSummaryStore{items: []models.SummaryItem{{ID: 1, Summary: "요약"}}}
	r := summaryRouter(&SummaryHandler{Articles: store})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/article/summary?q=%EC%A0%95%EB%B6%80", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.lastQuery != "정부" {
		t.Errorf("q = %q", store.lastQuery)
	}
	var body struct {
		Count int                  `json:"count"`
		Items []models.SummaryItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 1 {
		t.Errorf("count = %d", body.Count)
	}
}
