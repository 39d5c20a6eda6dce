package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecoEntry is one cached recommendation result. Recommendations holds the
// raw JSONB payload as produced by the engine.
type RecoEntry struct {
	BaseLink        string
	HoursWindow     int
	TopK            int
	StanceThreshold float64
	NormalizedLink  string
	UpdatedAt       time.Time
	Recommendations []byte
}

// RecoCacheStore provides data access methods for the article_reco cache.
type RecoCacheStore struct {
	pool *pgxpool.Pool
}

// NewRecoCacheStore creates a new RecoCacheStore.
func NewRecoCacheStore(pool *pgxpool.Pool) *RecoCacheStore {
	return &RecoCacheStore{pool: pool}
}

// Get returns the newest cache entry whose base_link or normalized_link
// matches either given link form, under the same parameter triple. Returns
// ErrNotFound when no entry exists.
func (s *RecoCacheStore) Get(ctx context.Context, baseLink, normalizedLink string, hoursWindow, topK int, threshold float64) (*RecoEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT base_link, hours_window, topk_return, stance_threshold,
		       normalized_link, updated_at, recommendations
		FROM article_reco
		WHERE (base_link = $1 OR normalized_link = $2)
		  AND hours_window = $3
		  AND topk_return = $4
		  AND stance_threshold = $5
		ORDER BY updated_at DESC
		LIMIT 1
	`, baseLink, normalizedLink, hoursWindow, topK, threshold)

	var e RecoEntry
	err := row.Scan(
		&e.BaseLink, &e.HoursWindow, &e.TopK, &e.StanceThreshold,
		&e.NormalizedLink, &e.UpdatedAt, &e.Recommendations,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reco cache get: %w", err)
	}
	return &e, nil
}

// Upsert writes a cache entry, replacing any existing one under the same
// parameter key and refreshing updated_at.
func (s *RecoCacheStore) Upsert(ctx context.Context, e *RecoEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO article_reco (base_link, hours_window, topk_return, stance_threshold,
		                          normalized_link, recommendations)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (base_link, hours_window, topk_return, stance_threshold)
		DO UPDATE SET
		  normalized_link = EXCLUDED.normalized_link,
		  recommendations = EXCLUDED.recommendations,
		  updated_at = now()
	`, e.BaseLink, e.HoursWindow, e.TopK, e.StanceThreshold, e.NormalizedLink, e.Recommendations)
	if err != nil {
		return fmt.Errorf("reco cache upsert: %w", err)
	}
	return nil
}
