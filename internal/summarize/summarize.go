package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dreaming-Lion/Veritas/internal/models"
)

// Abstractive is an optional model-backed summarizer tried before the
// extractive path.
type Abstractive interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// articleStore is the slice of the article store the batch path needs.
type articleStore interface {
	AcquireSummaryLock(ctx context.Context) (func(), error)
	ListMissingSummary(ctx context.Context, limit int, force bool) ([]models.Article, error)
	UpdateSummary(ctx context.Context, id int64, summary string) error
}

// Summarizer produces short article summaries. Abstractive output is used
// only when it is meaningfully shorter than the input (at most 70% of the
// cleaned length); otherwise LexRank extraction runs, with a lead-sentence
// fallback for degenerate inputs.
type Summarizer struct {
	store        articleStore
	abstractive  Abstractive
	maxSentences int
	maxChars     int
}

// New creates a Summarizer. abstractive may be nil to run extractive-only.
// maxChars <= 0 disables the character cap.
func New(store articleStore, abstractive Abstractive, maxSentences, maxChars int) *Summarizer {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Summarizer{
		store:        store,
		abstractive:  abstractive,
		maxSentences: maxSentences,
		maxChars:     maxChars,
	}
}

// Summarize returns a summary of the article text, or "" when nothing
// summarizable remains after cleaning.
func (s *Summarizer) Summarize(ctx context.Context, text string) string {
	raw := Preclean(text)
	if raw == "" {
		return ""
	}
	rawLen := len([]rune(raw))

	if s.abstractive != nil {
		out, err := s.abstractive.Summarize(ctx, raw)
		if err != nil {
			slog.Warn("summarize: abstractive failed, falling back", "error", err)
		} else if out = strings.TrimSpace(out); out != "" && len([]rune(out)) <= rawLen*7/10 {
			return s.capChars(SplitSentences(out))
		}
	}

	out := s.extractive(raw)
	if out != "" && len([]rune(out)) <= rawLen*7/10 {
		return out
	}
	return s.lead(raw)
}

// extractive runs LexRank over the article sentences and joins the top-k in
// original order.
func (s *Summarizer) extractive(text string) string {
	sents := SplitSentences(text)
	if len(sents) == 0 {
		return ""
	}
	if len(sents) <= s.maxSentences {
		return s.lead(text)
	}
	idx := rankSentences(sents, s.maxSentences)
	picked := make([]string, 0, len(idx))
	for _, i := range idx {
		picked = append(picked, sents[i])
	}
	return s.capChars(picked)
}

// lead joins the first maxSentences sentences.
func (s *Summarizer) lead(text string) string {
	sents := SplitSentences(text)
	if len(sents) == 0 {
		return ""
	}
	k := s.maxSentences
	if k > len(sents) {
		k = len(sents)
	}
	return s.capChars(sents[:k])
}

// capChars joins sentences, dropping whole trailing sentences once the
// character cap would be exceeded. The cap never cuts mid-sentence.
func (s *Summarizer) capChars(picked []string) string {
	out := strings.TrimSpace(strings.Join(picked, " "))
	if s.maxChars <= 0 || len([]rune(out)) <= s.maxChars {
		return out
	}
	var kept []string
	total := 0
	for _, sent := range picked {
		n := len([]rune(sent))
		if total+n > s.maxChars {
			break
		}
		kept = append(kept, sent)
		total += n + 1
	}
	return strings.TrimSpace(strings.Join(kept, " "))
}

// BatchResult reports a summary backfill run.
type BatchResult struct {
	Updated int  `json:"updated"`
	Total   int  `json:"total"`
	Skipped bool `json:"skipped"`
}

// UpdateMissing summarizes articles that have content but no summary (all
// recent articles when force is set), up to limit rows, under the batch
// advisory lock. A held lock yields Skipped=true rather than an error so
// overlapping triggers are harmless.
func (s *Summarizer) UpdateMissing(ctx context.Context, limit int, force bool) (BatchResult, error) {
	release, err := s.store.AcquireSummaryLock(ctx)
	if err != nil {
		if errors.Is(err, models.ErrLocked) {
			slog.Info("summarize: batch already running, skipping")
			return BatchResult{Skipped: true}, nil
		}
		return BatchResult{}, fmt.Errorf("summarize: %w", err)
	}
	defer release()

	articles, err := s.store.ListMissingSummary(ctx, limit, force)
	if err != nil {
		return BatchResult{}, fmt.Errorf("summarize: %w", err)
	}

	res := BatchResult{Total: len(articles)}
	for _, a := range articles {
		if a.Content == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sum := s.Summarize(ctx, a.Content)
		if err := s.store.UpdateSummary(ctx, a.ID, sum); err != nil {
			slog.Warn("summarize: update failed", "id", a.ID, "error", err)
			continue
		}
		res.Updated++
	}

	slog.Info("summarize: batch complete", "updated", res.Updated, "total", res.Total)
	return res, nil
}
