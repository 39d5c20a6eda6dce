package vector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/tfidf"
)

const (
	upsertBatchSize = 1000
	upsertWorkers   = 4
	// docBodyChars caps the body text folded into an index or query
	// document. Index and query documents use the same cap so their
	// vectors live in the same distribution.
	docBodyChars = 400
)

// Doc builds the text a vector is computed from. The title is repeated to
// weight it against the body excerpt.
func Doc(title, body string) string {
	return title + " " + title + " " + truncateRunes(body, docBodyChars)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// articleLister is the slice of the article store the indexer needs.
type articleLister interface {
	ListAllForIndex(ctx context.Context) ([]models.Article, error)
}

// Indexer rebuilds the vector index: fits a fresh vectorizer over all
// articles, recreates the collection when the dimension changed, and
// batch-upserts every article.
type Indexer struct {
	store  articleLister
	loader *tfidf.Loader
	client *QdrantClient
}

// NewIndexer creates an Indexer.
func NewIndexer(store articleLister, loader *tfidf.Loader, client *QdrantClient) *Indexer {
	return &Indexer{store: store, loader: loader, client: client}
}

// Reindex rebuilds the whole index. Returns the number of points indexed.
// Any failed batch fails the run; a run with zero articles is a no-op.
func (ix *Indexer) Reindex(ctx context.Context) (int, error) {
	start := time.Now()

	articles, err := ix.store.ListAllForIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	if len(articles) == 0 {
		slog.Info("reindex: no articles, skipping")
		return 0, nil
	}
	slog.Info("reindex: articles loaded", "count", len(articles))

	docs := make([]string, len(articles))
	for i, a := range articles {
		body := a.Content
		if body == "" {
			body = a.Summary
		}
		docs[i] = Doc(a.Title, body)
	}

	vec, err := tfidf.Fit(docs, tfidf.DefaultParams())
	if err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	if err := ix.loader.Swap(vec); err != nil {
		return 0, fmt.Errorf("reindex: %w", err)
	}
	slog.Info("reindex: vectorizer fitted", "dim", vec.Dim())

	if err := ix.client.EnsureCollection(ctx, vec.Dim()); err != nil {
		return 0, fmt.Errorf("reindex: ensure collection: %w", err)
	}

	points := make([]Point, len(articles))
	for i, a := range articles {
		points[i] = Point{
			ID:      a.ID,
			Vector:  vec.Transform(docs[i]),
			Payload: payloadFor(&articles[i]),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(upsertWorkers)
	for start := 0; start < len(points); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(points) {
			end = len(points)
		}
		batch := points[start:end]
		g.Go(func() error {
			if err := ix.client.Upsert(gctx, batch); err != nil {
				// One retry per batch before failing the run.
				slog.Warn("reindex: batch upsert failed, retrying", "size", len(batch), "error", err)
				if err := ix.client.Upsert(gctx, batch); err != nil {
					return fmt.Errorf("reindex: upsert batch: %w", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	slog.Info("reindex: complete", "indexed", len(points), "took", time.Since(start).Round(time.Millisecond))
	return len(points), nil
}

func payloadFor(a *models.Article) Payload {
	content := a.Content
	if content == "" {
		content = a.Summary
	}
	p := Payload{
		ID:      a.ID,
		Title:   a.Title,
		Content: content,
		Link:    a.Link,
		Source:  a.Source,
		Lean:    a.Lean,
	}
	if a.Date != nil {
		ts := a.Date.UTC().Unix()
		iso := a.Date.UTC().Format(time.RFC3339)
		p.DateTS = &ts
		p.Date = &iso
	}
	return p
}
