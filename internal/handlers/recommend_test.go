package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/recommend"
)

type fakeRecoService struct {
	getErr     error
	cacheErr   error
	lastParams recommend.Params
	lastStale  bool
}

func (s *fakeRecoService) Get(ctx context.Context, baseLink string, p recommend.Params, allowStale bool) (*recommend.Result, error) {
	s.lastParams = p
	s.lastStale = allowStale
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &recommend.Result{Clicked: baseLink, Recommendations: []recommend.Recommendation{}}, nil
}

func (s *fakeRecoService) CacheOnly(ctx context.Context, baseLink string, p recommend.Params) (*recommend.Result, error) {
	if s.cacheErr != nil {
		return nil, s.cacheErr
	}
	return &recommend.Result{Clicked: baseLink, Recommendations: []recommend.Recommendation{}}, nil
}

func TestRecommendRequiresClickedLink(t *testing.T) {
	h := &RecommendHandler{Svc: &fakeRecoService{}}
	rec := httptest.NewRecorder()
	h.Recommend(rec, httptest.NewRequest(http.MethodGet, "/api/article/recommend", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRecommendBoundsChecks(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"hours_window too small", "?clicked_link=https://x.example&hours_window=2"},
		{"hours_window too large", "?clicked_link=https://x.example&hours_window=200"},
		{"topk too large", "?clicked_link=https://x.example&topk_return=50"},
		{"threshold out of range", "?clicked_link=https://x.example&nli_threshold=1.5"},
	}
	h := &RecommendHandler{Svc: &fakeRecoService{}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Recommend(rec, httptest.NewRequest(http.MethodGet, "/api/article/recommend"+tt.query, nil))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRecommendDefaultsAndOK(t *testing.T) {
	svc := &fakeRecoService{}
	h := &RecommendHandler{Svc: svc}

	rec := httptest.NewRecorder()
	h.Recommend(rec, httptest.NewRequest(http.MethodGet, "/api/article/recommend?clicked_link=https://x.example/1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	want := recommend.Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.1}
	if svc.lastParams != want {
		t.Errorf("params = %+v, want %+v", svc.lastParams, want)
	}
	if !svc.lastStale {
		t.Error("allow_stale default should be true")
	}

	var body recommend.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Clicked != "https://x.example/1" {
		t.Errorf("clicked = %q", body.Clicked)
	}
}

func TestRecommendBaseNotFound(t *testing.T) {
	svc := &fakeRecoService{getErr: &recommend.NotFoundError{Normalized: "https://x.example/norm"}}
	h := &RecommendHandler{Svc: svc}

	rec := httptest.NewRecorder()
	h.Recommend(rec, httptest.NewRequest(http.MethodGet, "/api/article/recommend?clicked_link=https://x.example/1", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["normalized"] != "https://x.example/norm" {
		t.Errorf("body = %v", body)
	}
}

func TestRecommendCachedMissIs204(t *testing.T) {
	svc := &fakeRecoService{cacheErr: models.ErrNotFound}
	h := &RecommendHandler{Svc: svc}

	rec := httptest.NewRecorder()
	h.RecommendCached(rec, httptest.NewRequest(http.MethodGet, "/api/article/recommend-cached?clicked_link=https://x.example/1", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}
