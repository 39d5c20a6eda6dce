package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/Dreaming-Lion/Veritas/internal/press"
	"github.com/Dreaming-Lion/Veritas/internal/tfidf"
)

// Searcher runs filtered similarity searches with the active vectorizer.
type Searcher struct {
	loader *tfidf.Loader
	client *QdrantClient
}

// NewSearcher creates a Searcher.
func NewSearcher(loader *tfidf.Loader, client *QdrantClient) *Searcher {
	return &Searcher{loader: loader, client: client}
}

// SearchOpposing finds candidates similar to the query document, restricted
// to the time window around baseDate and preferring outlets of opposing
// lean. When the lean-filtered search returns nothing, it retries without
// the lean preference so the caller always sees the best available pool.
// Returns tfidf.ErrNoVectorizer before the first index build.
func (s *Searcher) SearchOpposing(ctx context.Context, queryDoc string, baseLean press.Lean, baseDate *time.Time, hoursWindow, topK int) ([]Hit, error) {
	vec, err := s.loader.Current()
	if err != nil {
		return nil, err
	}
	qv := vec.Transform(queryDoc)

	var must []Condition
	if baseDate != nil {
		center := baseDate.UTC().Unix()
		span := int64(hoursWindow) * 3600
		must = append(must, Condition{
			Key:   "date_ts",
			Range: &RangeSpec{GTE: center - span, LTE: center + span},
		})
	}

	if opp := press.Opposite(baseLean); len(opp) > 0 {
		should := make([]Condition, 0, len(opp))
		for _, l := range opp {
			should = append(should, Condition{Key: "lean", Match: &MatchValue{Value: string(l)}})
		}
		hits, err := s.client.Search(ctx, qv, topK, &Filter{Must: must, Should: should})
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		if len(hits) > 0 {
			return hits, nil
		}
	}

	var filter *Filter
	if len(must) > 0 {
		filter = &Filter{Must: must}
	}
	hits, err := s.client.Search(ctx, qv, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return hits, nil
}
