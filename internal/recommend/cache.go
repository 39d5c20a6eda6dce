package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Dreaming-Lion/Veritas/internal/models"
)

// cacheStore is the slice of the article_reco store the service needs.
type cacheStore interface {
	Get(ctx context.Context, baseLink, normalizedLink string, hoursWindow, topK int, threshold float64) (*models.RecoEntry, error)
	Upsert(ctx context.Context, e *models.RecoEntry) error
}

// recentLinker picks precompute targets.
type recentLinker interface {
	RecentLinks(ctx context.Context, lookbackHours, max int) ([]string, error)
}

// computer is the engine surface the cache layer calls.
type computer interface {
	Compute(ctx context.Context, clickedLink string, p Params) (*Result, error)
}

// refreshBudget bounds one background stale-refresh computation.
const refreshBudget = 2 * time.Minute

// Service serves recommendations through the article_reco cache: fresh
// entries are returned directly, stale ones are served while a background
// refresh recomputes them, and misses are computed synchronously.
type Service struct {
	engine computer
	cache  cacheStore
	links  recentLinker
	norm   linkNormalizer
	ttl    time.Duration

	mu         sync.Mutex
	refreshing map[string]bool
}

// NewService creates a Service with the given cache TTL.
func NewService(engine computer, cache cacheStore, links recentLinker, norm linkNormalizer, ttl time.Duration) *Service {
	return &Service{
		engine:     engine,
		cache:      cache,
		links:      links,
		norm:       norm,
		ttl:        ttl,
		refreshing: make(map[string]bool),
	}
}

func cacheKey(baseLink string, p Params) string {
	return fmt.Sprintf("%s|%d|%d|%g", baseLink, p.HoursWindow, p.TopK, p.StanceThreshold)
}

func (s *Service) isStale(updatedAt time.Time) bool {
	return time.Since(updatedAt) > s.ttl
}

// Get returns recommendations for the clicked link, read-through. With
// allowStale, an expired cache entry is served as-is and refreshed in the
// background; without it, expiry forces a synchronous recompute. Cache read
// failures fall through to compute, and cache write failures only log: the
// cache never turns a computable result into an error.
func (s *Service) Get(ctx context.Context, baseLink string, p Params, allowStale bool) (*Result, error) {
	entry, err := s.cache.Get(ctx, baseLink, s.norm.Normalize(baseLink), p.HoursWindow, p.TopK, p.StanceThreshold)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		slog.Warn("recommend cache: read failed, computing", "link", baseLink, "error", err)
		entry = nil
	}

	if entry != nil {
		res, decodeErr := decodeResult(entry.Recommendations)
		if decodeErr != nil {
			slog.Warn("recommend cache: malformed entry, recomputing", "link", baseLink, "error", decodeErr)
		} else {
			if !s.isStale(entry.UpdatedAt) {
				return res, nil
			}
			if allowStale {
				s.refreshAsync(baseLink, p)
				return res, nil
			}
		}
	}

	return s.computeAndStore(ctx, baseLink, p)
}

// CacheOnly returns the cached recommendations without computing anything.
// Returns models.ErrNotFound when no entry exists.
func (s *Service) CacheOnly(ctx context.Context, baseLink string, p Params) (*Result, error) {
	entry, err := s.cache.Get(ctx, baseLink, s.norm.Normalize(baseLink), p.HoursWindow, p.TopK, p.StanceThreshold)
	if err != nil {
		return nil, err
	}
	return decodeResult(entry.Recommendations)
}

// computeAndStore runs the engine and writes the result to the cache.
func (s *Service) computeAndStore(ctx context.Context, baseLink string, p Params) (*Result, error) {
	res, err := s.engine.Compute(ctx, baseLink, p)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("recommend cache: marshal: %w", err)
	}
	entry := &models.RecoEntry{
		BaseLink:        baseLink,
		HoursWindow:     p.HoursWindow,
		TopK:            p.TopK,
		StanceThreshold: p.StanceThreshold,
		NormalizedLink:  res.Clicked,
		Recommendations: payload,
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		slog.Warn("recommend cache: write failed", "link", baseLink, "error", err)
	}
	return res, nil
}

// refreshAsync kicks off a background recompute for a stale entry, at most
// one in flight per cache key.
func (s *Service) refreshAsync(baseLink string, p Params) {
	key := cacheKey(baseLink, p)
	s.mu.Lock()
	if s.refreshing[key] {
		s.mu.Unlock()
		return
	}
	s.refreshing[key] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.refreshing, key)
			s.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), refreshBudget)
		defer cancel()

		if _, err := s.computeAndStore(ctx, baseLink, p); err != nil {
			slog.Warn("recommend cache: stale refresh failed", "link", baseLink, "error", err)
			return
		}
		slog.Debug("recommend cache: stale entry refreshed", "link", baseLink)
	}()
}

// PrecomputeStats reports one precompute sweep.
type PrecomputeStats struct {
	Scanned int `json:"scanned"`
	Cached  int `json:"cached"`
}

// PrecomputeRecent warms the cache for articles dated within the lookback
// window. Per-link failures (typically bases that fell outside the index)
// are logged and skipped; the sweep always runs to the end.
func (s *Service) PrecomputeRecent(ctx context.Context, p Params, lookbackHours, maxItems int) (PrecomputeStats, error) {
	links, err := s.links.RecentLinks(ctx, lookbackHours, maxItems)
	if err != nil {
		return PrecomputeStats{}, fmt.Errorf("precompute: %w", err)
	}

	stats := PrecomputeStats{Scanned: len(links)}
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if _, err := s.computeAndStore(ctx, link, p); err != nil {
			slog.Warn("precompute: link failed", "link", link, "error", err)
			continue
		}
		stats.Cached++
	}

	slog.Info("precompute: sweep complete", "scanned", stats.Scanned, "cached", stats.Cached)
	return stats, nil
}

func decodeResult(raw []byte) (*Result, error) {
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("recommend cache: decode: %w", err)
	}
	if res.Recommendations == nil {
		res.Recommendations = []Recommendation{}
	}
	return &res, nil
}
