package vector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/press"
	"github.com/Dreaming-Lion/Veritas/internal/tfidf"
)

// fakeQdrant is an in-memory stand-in for the Qdrant REST API, covering the
// endpoints the client uses.
type fakeQdrant struct {
	mu       sync.Mutex
	dim      int
	exists   bool
	points   map[int64]Point
	searches []searchRequest
	hits     func(req searchRequest) []Hit
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: make(map[int64]Point)}
}

func writeResult(w http.ResponseWriter, result any) {
	_ = json.NewEncoder(w).Encode(map[string]any{"result": result, "status": "ok"})
}

func (f *fakeQdrant) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/points/search") && r.Method == http.MethodPost:
			var req searchRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			f.searches = append(f.searches, req)
			var hits []Hit
			if f.hits != nil {
				hits = f.hits(req)
			}
			if hits == nil {
				hits = []Hit{}
			}
			writeResult(w, hits)

		case strings.HasSuffix(r.URL.Path, "/points/count") && r.Method == http.MethodPost:
			writeResult(w, map[string]any{"count": len(f.points)})

		case strings.HasSuffix(r.URL.Path, "/points") && r.Method == http.MethodPut:
			var body struct {
				Points []Point `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			for _, p := range body.Points {
				f.points[p.ID] = p
			}
			writeResult(w, map[string]any{"status": "acknowledged"})

		case r.Method == http.MethodGet:
			if !f.exists {
				http.NotFound(w, r)
				return
			}
			writeResult(w, map[string]any{
				"points_count": len(f.points),
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": f.dim},
					},
				},
			})

		case r.Method == http.MethodPut:
			var body struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			f.exists = true
			f.dim = body.Vectors.Size
			f.points = make(map[int64]Point)
			writeResult(w, true)

		case r.Method == http.MethodDelete:
			f.exists = false
			f.points = make(map[int64]Point)
			writeResult(w, true)

		default:
			http.Error(w, "unexpected request", http.StatusBadRequest)
		}
	})
}

type fakeStore struct {
	articles []models.Article
}

func (s *fakeStore) ListAllForIndex(ctx context.Context) ([]models.Article, error) {
	return s.articles, nil
}

func testArticles() []models.Article {
	d1 := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	d2 := d1.Add(3 * time.Hour)
	return []models.Article{
		{ID: 1, Title: "정부 부동산 정책 발표", Content: "정부는 오늘 부동산 공급 확대 정책을 발표했다", Link: "https://a.example/1", Source: "한겨레", Lean: "progressive", Date: &d1},
		{ID: 2, Title: "부동산 정책 비판", Content: "야당은 정부 부동산 정책을 강하게 비판했다", Link: "https://b.example/2", Source: "조선일보", Lean: "conservative", Date: &d2},
		{ID: 3, Title: "부동산 시장 전망", Content: "전문가들은 부동산 시장 전망을 두고 엇갈린 평가를 내놨다", Link: "https://c.example/3", Source: "뉴시스", Lean: "centrist", Date: &d1},
		{ID: 4, Title: "국회 정책 심의", Content: "국회는 다음 주 부동산 정책 세부 내용을 심의한다", Link: "https://d.example/4", Source: "경향신문", Lean: "progressive", Date: &d2},
		{ID: 5, Title: "공급 확대 논쟁", Content: "공급 확대를 둘러싼 여야 논쟁이 이어지고 있다", Link: "https://e.example/5", Source: "동아일보", Lean: "conservative", Date: &d1},
		{ID: 6, Title: "시장 반응 관망", Content: "발표 직후 시장은 관망세로 돌아섰다", Link: "https://f.example/6", Source: "SBS", Lean: "centrist", Date: &d2},
	}
}

func TestEnsureCollectionRecreatesOnDimChange(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewQdrantClient(srv.URL, "news_tfidf")
	ctx := context.Background()

	if err := c.EnsureCollection(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if fake.dim != 100 {
		t.Fatalf("dim = %d, want 100", fake.dim)
	}

	// Same dim: untouched.
	fake.points[1] = Point{ID: 1}
	if err := c.EnsureCollection(ctx, 100); err != nil {
		t.Fatal(err)
	}
	if len(fake.points) != 1 {
		t.Error("collection was recreated for unchanged dim")
	}

	// Dim change: recreated empty.
	if err := c.EnsureCollection(ctx, 200); err != nil {
		t.Fatal(err)
	}
	if fake.dim != 200 || len(fake.points) != 0 {
		t.Errorf("dim = %d points = %d, want recreated empty at 200", fake.dim, len(fake.points))
	}
}

func TestReindex(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	loader := tfidf.NewLoader(filepath.Join(t.TempDir(), "tfidf.json"))
	client := NewQdrantClient(srv.URL, "news_tfidf")
	store := &fakeStore{articles: testArticles()}

	ix := NewIndexer(store, loader, client)
	n, err := ix.Reindex(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("indexed = %d, want 6", n)
	}
	if len(fake.points) != 6 {
		t.Fatalf("server holds %d points, want 6", len(fake.points))
	}

	p := fake.points[2]
	if p.Payload.Lean != "conservative" || p.Payload.Link != "https://b.example/2" {
		t.Errorf("payload = %+v", p.Payload)
	}
	if p.Payload.DateTS == nil {
		t.Error("payload missing date_ts")
	}

	vec, err := loader.Current()
	if err != nil {
		t.Fatalf("vectorizer not swapped in: %v", err)
	}
	if len(p.Vector) != vec.Dim() {
		t.Errorf("vector len = %d, want %d", len(p.Vector), vec.Dim())
	}
}

func TestReindexEmptyCorpusNoop(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	loader := tfidf.NewLoader(filepath.Join(t.TempDir(), "tfidf.json"))
	ix := NewIndexer(&fakeStore{}, loader, NewQdrantClient(srv.URL, "news_tfidf"))
	n, err := ix.Reindex(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("indexed = %d, want 0", n)
	}
}

func TestSearchOpposingLeanFallback(t *testing.T) {
	fake := newFakeQdrant()
	// Lean-filtered searches return nothing; the unfiltered retry hits.
	fake.hits = func(req searchRequest) []Hit {
		if req.Filter != nil && len(req.Filter.Should) > 0 {
			return nil
		}
		return []Hit{{ID: 3, Score: 0.5, Payload: Payload{ID: 3, Lean: "progressive"}}}
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	loader := tfidf.NewLoader(filepath.Join(t.TempDir(), "tfidf.json"))
	v, err := tfidf.Fit([]string{"정부 정책 발표", "야당 정책 비판"}, tfidf.Params{MinDF: 1})
	if err != nil {
		t.Fatal(err)
	}
	if err := loader.Swap(v); err != nil {
		t.Fatal(err)
	}

	s := NewSearcher(loader, NewQdrantClient(srv.URL, "news_tfidf"))
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	hits, err := s.SearchOpposing(context.Background(), "정부 정책", press.Progressive, &base, 48, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != 3 {
		t.Fatalf("hits = %+v", hits)
	}

	if len(fake.searches) != 2 {
		t.Fatalf("searches = %d, want 2 (lean-filtered then fallback)", len(fake.searches))
	}
	first := fake.searches[0]
	if first.Filter == nil || len(first.Filter.Should) != 1 || first.Filter.Should[0].Match.Value != "conservative" {
		t.Errorf("first search filter = %+v", first.Filter)
	}
	if len(first.Filter.Must) != 1 || first.Filter.Must[0].Key != "date_ts" {
		t.Errorf("first search must = %+v", first.Filter.Must)
	}
	span := int64(48 * 3600)
	if got := first.Filter.Must[0].Range; got.LTE-got.GTE != 2*span {
		t.Errorf("time window = [%d,%d], want span %d", got.GTE, got.LTE, 2*span)
	}
	second := fake.searches[1]
	if second.Filter == nil || len(second.Filter.Should) != 0 {
		t.Errorf("fallback search filter = %+v", second.Filter)
	}
}

func TestSearchOpposingNoVectorizer(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	loader := tfidf.NewLoader(filepath.Join(t.TempDir(), "tfidf.json"))
	s := NewSearcher(loader, NewQdrantClient(srv.URL, "news_tfidf"))
	_, err := s.SearchOpposing(context.Background(), "doc", press.Progressive, nil, 48, 10)
	if err != tfidf.ErrNoVectorizer {
		t.Errorf("err = %v, want ErrNoVectorizer", err)
	}
}
