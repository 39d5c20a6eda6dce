package recommend

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/nli"
	"github.com/Dreaming-Lion/Veritas/internal/press"
	"github.com/Dreaming-Lion/Veritas/internal/vector"
)

type fakeBaseStore struct {
	articles map[string]*models.Article
}

func (s *fakeBaseStore) GetByLink(ctx context.Context, link string) (*models.Article, error) {
	if a, ok := s.articles[link]; ok {
		return a, nil
	}
	return nil, models.ErrNotFound
}

type fakeSearcher struct {
	hits     []vector.Hit
	lastLean press.Lean
}

func (s *fakeSearcher) SearchOpposing(ctx context.Context, queryDoc string, baseLean press.Lean, baseDate *time.Time, hoursWindow, topK int) ([]vector.Hit, error) {
	s.lastLean = baseLean
	return s.hits, nil
}

// fakeNLI returns canned probabilities keyed by the hypothesis text.
type fakeNLI struct {
	byHypothesis map[string][]float64
	failFor      string
	calls        int
}

func (n *fakeNLI) Infer(ctx context.Context, premise, hypothesis string) (nli.Result, error) {
	n.calls++
	if n.failFor != "" && hypothesis == n.failFor {
		return nli.Result{}, errors.New("sidecar down")
	}
	if probs, ok := n.byHypothesis[hypothesis]; ok {
		return nli.Result{Label: "x", Probs: probs}, nil
	}
	return nli.Neutral(), nil
}

// identitySummarizer returns the text unchanged, so tests control the NLI
// hypothesis exactly.
type identitySummarizer struct{}

func (identitySummarizer) Summarize(ctx context.Context, text string) string { return text }

// identityNorm performs no aggregator resolution.
type identityNorm struct{}

func (identityNorm) Normalize(rawURL string) string { return rawURL }

// countingNorm records how often link normalization runs, since each call
// may carry a bounded network fetch for aggregator links.
type countingNorm struct {
	calls int
}

func (n *countingNorm) Normalize(rawURL string) string {
	n.calls++
	return rawURL
}

func baseArticle() *models.Article {
	d := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	return &models.Article{
		ID:      1,
		Title:   "정부 부동산 정책 발표",
		Link:    "https://hani.co.kr/base",
		Content: "정부는 오늘 부동산 정책을 발표했다",
		Source:  "한겨레",
		Lean:    "progressive",
		Date:    &d,
	}
}

func hit(link, source, lean, content string, score float64) vector.Hit {
	return vector.Hit{
		Score: score,
		Payload: vector.Payload{
			Title:   "후보 " + content,
			Link:    link,
			Source:  source,
			Lean:    lean,
			Content: content,
		},
	}
}

func newTestEngine(store *fakeBaseStore, search *fakeSearcher, n *fakeNLI) *Engine {
	return NewEngine(store, search, n, identitySummarizer{}, identityNorm{})
}

func TestComputeBaseNotFound(t *testing.T) {
	e := newTestEngine(&fakeBaseStore{articles: map[string]*models.Article{}}, &fakeSearcher{}, &fakeNLI{})
	_, err := e.Compute(context.Background(), "https://unknown.example/x", Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.1})
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
	if nf.Normalized == "" {
		t.Error("NotFoundError missing normalized link")
	}
}

func TestComputeFiltersSameLean(t *testing.T) {
	store := &fakeBaseStore{articles: map[string]*models.Article{"https://hani.co.kr/base": baseArticle()}}
	search := &fakeSearcher{hits: []vector.Hit{
		hit("https://chosun.com/1", "조선일보", "conservative", "보수 기사", 0.9),
		hit("https://khan.co.kr/2", "경향신문", "progressive", "같은 성향 기사", 0.95),
		hit("https://unknown.example/3", "", "", "성향 불명 기사", 0.5),
	}}
	e := newTestEngine(store, search, &fakeNLI{})

	res, err := e.Compute(context.Background(), "https://hani.co.kr/base", Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if search.lastLean != press.Progressive {
		t.Errorf("search lean = %q, want progressive", search.lastLean)
	}
	for _, r := range res.Recommendations {
		if r.Lean == "progressive" {
			t.Errorf("same-lean candidate survived: %+v", r)
		}
	}
	// Opposing and unknown-lean candidates remain.
	if len(res.Recommendations) != 2 {
		t.Errorf("got %d recommendations, want 2", len(res.Recommendations))
	}
}

func TestComputeScoreFormula(t *testing.T) {
	store := &fakeBaseStore{articles: map[string]*models.Article{"https://hani.co.kr/base": baseArticle()}}
	search := &fakeSearcher{hits: []vector.Hit{
		hit("https://chosun.com/1", "조선일보", "conservative", "반박 기사", 0.8),
	}}
	n := &fakeNLI{byHypothesis: map[string][]float64{
		"반박 기사": {0.1, 0.2, 0.7},
	}}
	e := newTestEngine(store, search, n)

	res, err := e.Compute(context.Background(), "https://hani.co.kr/base", Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("got %d recommendations", len(res.Recommendations))
	}
	r := res.Recommendations[0]

	stance := 0.7 - 0.1
	if abs(r.Stance-stance) > 1e-9 {
		t.Errorf("stance = %f, want %f", r.Stance, stance)
	}
	want := 0.8 * (0.8 + 0.2*((stance+1)/2))
	if abs(r.Score-want) > 1e-9 {
		t.Errorf("score = %f, want %f", r.Score, want)
	}
}

func TestComputeNLIFailureDegradesToNeutral(t *testing.T) {
	store := &fakeBaseStore{articles: map[string]*models.Article{"https://hani.co.kr/base": baseArticle()}}
	search := &fakeSearcher{hits: []vector.Hit{
		hit("https://chosun.com/1", "조선일보", "conservative", "실패하는 기사", 0.8),
	}}
	n := &fakeNLI{failFor: "실패하는 기사"}
	e := newTestEngine(store, search, n)

	res, err := e.Compute(context.Background(), "https://hani.co.kr/base", Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("candidate dropped on NLI failure")
	}
	if res.Recommendations[0].Stance != 0 {
		t.Errorf("stance = %f, want 0 for neutral fallback", res.Recommendations[0].Stance)
	}
}

func TestTwoTierSelection(t *testing.T) {
	// A weak candidate with a huge similarity score must not displace
	// strong-stance candidates, but does fill leftover slots.
	picks := []Recommendation{
		{Link: "weak-high", Stance: 0.01, Score: 0.99},
		{Link: "strong-low", Stance: 0.5, Score: 0.40},
		{Link: "strong-high", Stance: -0.6, Score: 0.70},
		{Link: "weak-low", Stance: 0.02, Score: 0.10},
	}

	got := selectTwoTier(picks, 3, 0.1)
	wantOrder := []string{"strong-high", "strong-low", "weak-high"}
	var gotOrder []string
	for _, r := range got {
		gotOrder = append(gotOrder, r.Link)
	}
	if !reflect.DeepEqual(gotOrder, wantOrder) {
		t.Errorf("order = %v, want %v", gotOrder, wantOrder)
	}

	// topK smaller than the strong tier: strong only, by score.
	got = selectTwoTier(picks, 1, 0.1)
	if len(got) != 1 || got[0].Link != "strong-high" {
		t.Errorf("topK=1 pick = %+v", got)
	}
}

func TestSelectTwoTierDeterministic(t *testing.T) {
	picks := []Recommendation{
		{Link: "a", Stance: 0.5, Score: 0.7},
		{Link: "b", Stance: 0.5, Score: 0.7},
		{Link: "c", Stance: 0.5, Score: 0.7},
	}
	first := selectTwoTier(picks, 2, 0.1)
	for i := 0; i < 10; i++ {
		again := selectTwoTier(picks, 2, 0.1)
		if !reflect.DeepEqual(first, again) {
			t.Fatal("selection not deterministic for equal scores")
		}
	}
	// Equal scores keep input (search) order.
	if first[0].Link != "a" || first[1].Link != "b" {
		t.Errorf("tie order = %v", []string{first[0].Link, first[1].Link})
	}
}

func TestComputeNormalizesClickedLinkOnce(t *testing.T) {
	store := &fakeBaseStore{articles: map[string]*models.Article{"https://hani.co.kr/base": baseArticle()}}
	search := &fakeSearcher{hits: []vector.Hit{
		hit("https://chosun.com/1", "조선일보", "conservative", "반대 기사", 0.6),
	}}
	norm := &countingNorm{}
	e := NewEngine(store, search, &fakeNLI{}, identitySummarizer{}, norm)

	res, err := e.Compute(context.Background(), "https://hani.co.kr/base", Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	if res.Clicked != "https://hani.co.kr/base" {
		t.Errorf("clicked = %q", res.Clicked)
	}
	if norm.calls != 1 {
		t.Errorf("normalize ran %d times, want 1 (base lookup only)", norm.calls)
	}
}

func TestComputeSkipsBaseLinkItself(t *testing.T) {
	store := &fakeBaseStore{articles: map[string]*models.Article{"https://hani.co.kr/base": baseArticle()}}
	search := &fakeSearcher{hits: []vector.Hit{
		hit("https://hani.co.kr/base", "한겨레", "progressive", "기준 기사 자신", 1.0),
		hit("https://chosun.com/1", "조선일보", "conservative", "반대 기사", 0.6),
	}}
	e := newTestEngine(store, search, &fakeNLI{})

	res, err := e.Compute(context.Background(), "https://hani.co.kr/base", Params{HoursWindow: 48, TopK: 8, StanceThreshold: 0.1})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range res.Recommendations {
		if r.Link == "https://hani.co.kr/base" {
			t.Error("base article recommended to itself")
		}
	}
}
