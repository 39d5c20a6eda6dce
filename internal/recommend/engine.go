// Package recommend computes opposing-viewpoint article recommendations and
// serves them through a read-through cache.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/nli"
	"github.com/Dreaming-Lion/Veritas/internal/press"
	"github.com/Dreaming-Lion/Veritas/internal/urlnorm"
	"github.com/Dreaming-Lion/Veritas/internal/vector"
)

const (
	// overFetch is how many candidates the vector search returns before
	// stance scoring narrows them down.
	overFetch = 80
	// nliTextChars caps the summaries fed to the NLI model.
	nliTextChars = 600
)

// NotFoundError reports that the clicked link matches no stored article. It
// carries the normalized link so callers can show what was looked up.
type NotFoundError struct {
	Normalized string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("recommend: base article not found (normalized %s)", e.Normalized)
}

// Recommendation is one recommended article with its scoring breakdown.
type Recommendation struct {
	Title  string  `json:"title"`
	Link   string  `json:"link"`
	Source string  `json:"source"`
	Lean   string  `json:"lean"`
	Date   *string `json:"date"`
	Probs  Probs   `json:"probs"`
	Stance float64 `json:"stance"`
	Score  float64 `json:"score"`
}

// Probs are the NLI class probabilities for the base/candidate pair.
type Probs struct {
	Entailment    float64 `json:"entailment"`
	Neutral       float64 `json:"neutral"`
	Contradiction float64 `json:"contradiction"`
}

// Result is a full recommendation response.
type Result struct {
	Clicked         string           `json:"clicked"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Params are the tunable knobs of one recommendation computation.
type Params struct {
	HoursWindow     int
	TopK            int
	StanceThreshold float64
}

// The engine's collaborators, narrowed to what it calls.

type baseStore interface {
	GetByLink(ctx context.Context, link string) (*models.Article, error)
}

type searcher interface {
	SearchOpposing(ctx context.Context, queryDoc string, baseLean press.Lean, baseDate *time.Time, hoursWindow, topK int) ([]vector.Hit, error)
}

type stancer interface {
	Infer(ctx context.Context, premise, hypothesis string) (nli.Result, error)
}

type textSummarizer interface {
	Summarize(ctx context.Context, text string) string
}

type linkNormalizer interface {
	Normalize(rawURL string) string
}

// Engine computes recommendations: base lookup, similarity search with lean
// preference, NLI stance scoring, and two-tier selection.
type Engine struct {
	store      baseStore
	search     searcher
	nli        stancer
	summarizer textSummarizer
	norm       linkNormalizer
}

// NewEngine creates an Engine.
func NewEngine(store baseStore, search searcher, nliClient stancer, summarizer textSummarizer, norm linkNormalizer) *Engine {
	return &Engine{store: store, search: search, nli: nliClient, summarizer: summarizer, norm: norm}
}

// fetchBase resolves the clicked link to a stored article, trying the
// normalized form first and the raw link second.
func (e *Engine) fetchBase(ctx context.Context, clickedLink string) (*models.Article, string, error) {
	normalized := e.norm.Normalize(clickedLink)
	a, err := e.store.GetByLink(ctx, normalized)
	if err == nil {
		return a, normalized, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, "", fmt.Errorf("recommend: fetch base: %w", err)
	}
	if normalized != clickedLink {
		a, err = e.store.GetByLink(ctx, clickedLink)
		if err == nil {
			return a, clickedLink, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, "", fmt.Errorf("recommend: fetch base: %w", err)
		}
	}
	return nil, "", &NotFoundError{Normalized: normalized}
}

// Compute builds recommendations for the clicked article.
func (e *Engine) Compute(ctx context.Context, clickedLink string, p Params) (*Result, error) {
	base, matched, err := e.fetchBase(ctx, clickedLink)
	if err != nil {
		return nil, err
	}

	baseText := base.Content
	if baseText == "" {
		baseText = base.Summary
	}
	baseLean := press.InferLean(base.Source, base.Link, base.Lean)

	queryDoc := vector.Doc(base.Title, baseText)
	premise := e.summaryFor(ctx, baseText, base.Title)

	hits, err := e.search.SearchOpposing(ctx, queryDoc, baseLean, base.Date, p.HoursWindow, overFetch)
	if err != nil {
		return nil, err
	}

	// matched is the stored link fetchBase resolved; re-normalizing it
	// could trigger another aggregator page fetch for nothing.
	clicked := urlnorm.Clean(matched)
	if len(hits) == 0 {
		return &Result{Clicked: clicked, Recommendations: []Recommendation{}}, nil
	}

	var picks []Recommendation
	for _, h := range hits {
		if h.Payload.Link == "" || h.Payload.Link == base.Link {
			continue
		}
		candLean := press.InferLean(h.Payload.Source, h.Payload.Link, h.Payload.Lean)

		// When both leans are known, only opposing candidates survive.
		// Unknown leans pass through: the search fallback may have
		// returned them and dropping them would empty the pool.
		if baseLean != "" && candLean != "" && !press.IsOpposite(baseLean, candLean) {
			continue
		}

		hypothesis := e.summaryFor(ctx, h.Payload.Content, h.Payload.Title)

		res, err := e.nli.Infer(ctx, premise, hypothesis)
		if err != nil {
			// A failed inference degrades this candidate to neutral
			// rather than failing the whole computation.
			slog.Warn("recommend: nli failed", "link", h.Payload.Link, "error", err)
			res = nli.Neutral()
		}

		stance := res.Probs[2] - res.Probs[0]
		stanceNorm := clamp01((stance + 1) / 2)
		score := h.Score * (0.8 + 0.2*stanceNorm)

		picks = append(picks, Recommendation{
			Title:  h.Payload.Title,
			Link:   urlnorm.Clean(h.Payload.Link),
			Source: h.Payload.Source,
			Lean:   string(candLean),
			Date:   h.Payload.Date,
			Probs: Probs{
				Entailment:    res.Probs[0],
				Neutral:       res.Probs[1],
				Contradiction: res.Probs[2],
			},
			Stance: stance,
			Score:  score,
		})
	}

	return &Result{
		Clicked:         clicked,
		Recommendations: selectTwoTier(picks, p.TopK, p.StanceThreshold),
	}, nil
}

// summaryFor summarizes text for NLI input, falling back to the title, and
// caps the result length.
func (e *Engine) summaryFor(ctx context.Context, text, title string) string {
	src := text
	if src == "" {
		src = title
	}
	s := e.summarizer.Summarize(ctx, src)
	if s == "" {
		s = title
	}
	return truncateRunes(s, nliTextChars)
}

// selectTwoTier picks up to topK recommendations: candidates whose absolute
// stance clears the threshold come first (by score), then the remainder fill
// leftover slots (by score). Sorting is stable so equal scores keep search
// order and results are deterministic.
func selectTwoTier(picks []Recommendation, topK int, threshold float64) []Recommendation {
	var strong, weak []Recommendation
	for _, r := range picks {
		if abs(r.Stance) >= threshold {
			strong = append(strong, r)
		} else {
			weak = append(weak, r)
		}
	}
	sort.SliceStable(strong, func(i, j int) bool { return strong[i].Score > strong[j].Score })
	sort.SliceStable(weak, func(i, j int) bool { return weak[i].Score > weak[j].Score })

	out := make([]Recommendation, 0, topK)
	for _, r := range strong {
		if len(out) == topK {
			return out
		}
		out = append(out, r)
	}
	for _, r := range weak {
		if len(out) == topK {
			return out
		}
		out = append(out, r)
	}
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
