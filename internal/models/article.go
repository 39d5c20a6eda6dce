package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// summaryBatchLockKey is the advisory lock guarding the summary backfill
// batch so concurrent triggers don't double-process rows.
const summaryBatchLockKey = 777001

// Article is a collected news article.
type Article struct {
	ID      int64      `json:"id"`
	Title   string     `json:"title"`
	Link    string     `json:"link"`
	Summary string     `json:"summary,omitempty"`
	Content string     `json:"content,omitempty"`
	Date    *time.Time `json:"date,omitempty"`
	Source  string     `json:"source,omitempty"`
	Lean    string     `json:"lean,omitempty"`
	Origin  string     `json:"origin,omitempty"`
	Author  string     `json:"author,omitempty"`
	Section string     `json:"section,omitempty"`
}

// ArticleStore provides data access methods for the news table.
type ArticleStore struct {
	pool *pgxpool.Pool
}

// NewArticleStore creates a new ArticleStore.
func NewArticleStore(pool *pgxpool.Pool) *ArticleStore {
	return &ArticleStore{pool: pool}
}

// Pool returns the underlying connection pool for direct queries.
func (s *ArticleStore) Pool() *pgxpool.Pool {
	return s.pool
}

// scannable is an interface for pgx Row and Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanArticleFromRow(row scannable) (*Article, error) {
	var a Article
	var summary, content, source, lean, origin, author, section *string
	if err := row.Scan(
		&a.ID, &a.Title, &a.Link, &summary, &content, &a.Date,
		&source, &lean, &origin, &author, &section,
	); err != nil {
		return nil, err
	}
	if summary != nil {
		a.Summary = *summary
	}
	if content != nil {
		a.Content = *content
	}
	if source != nil {
		a.Source = *source
	}
	if lean != nil {
		a.Lean = *lean
	}
	if origin != nil {
		a.Origin = *origin
	}
	if author != nil {
		a.Author = *author
	}
	if section != nil {
		a.Section = *section
	}
	return &a, nil
}

const articleColumns = `id, title, link, summary, content, date, source, lean, origin, author, section`

// Upsert inserts an article keyed by link, merging into an existing row on
// conflict: title is replaced, summary keeps the old value unless the new one
// is non-empty, content keeps whichever is longer, date/author/section fill
// in missing values. Returns true when a new row was inserted and sets the
// article's ID.
func (s *ArticleStore) Upsert(ctx context.Context, a *Article) (bool, error) {
	var date any
	if a.Date != nil {
		date = *a.Date
	}
	origin := a.Origin
	if origin == "" {
		origin = "rss"
	}

	var inserted bool
	err := s.pool.QueryRow(ctx, `
		INSERT INTO news (source, lean, title, summary, content, link, date, author, section, origin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (link) DO UPDATE SET
		  title   = EXCLUDED.title,
		  summary = COALESCE(NULLIF(EXCLUDED.summary, ''), news.summary),
		  content = CASE WHEN COALESCE(LENGTH(news.content), 0) < COALESCE(LENGTH(EXCLUDED.content), 0)
		                 THEN EXCLUDED.content ELSE news.content END,
		  date    = COALESCE(EXCLUDED.date, news.date),
		  source  = EXCLUDED.source,
		  lean    = EXCLUDED.lean,
		  author  = COALESCE(EXCLUDED.author, news.author),
		  section = COALESCE(EXCLUDED.section, news.section)
		RETURNING id, (xmax = 0) AS inserted
	`, a.Source, a.Lean, a.Title, a.Summary, a.Content, a.Link, date, nullIfEmpty(a.Author), nullIfEmpty(a.Section), origin,
	).Scan(&a.ID, &inserted)
	if err != nil {
		return false, fmt.Errorf("article upsert: %w", err)
	}
	return inserted, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetByLink returns the article stored under the exact link, or ErrNotFound.
func (s *ArticleStore) GetByLink(ctx context.Context, link string) (*Article, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+articleColumns+`
		FROM news WHERE link = $1
	`, link)
	a, err := scanArticleFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("article get by link: %w", err)
	}
	return a, nil
}

// GetByID returns a single article by id, or ErrNotFound.
func (s *ArticleStore) GetByID(ctx context.Context, id int64) (*Article, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+articleColumns+`
		FROM news WHERE id = $1
	`, id)
	a, err := scanArticleFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("article get by id: %w", err)
	}
	return a, nil
}

// ListAllForIndex returns every article with a non-empty link, for full
// reindex runs.
func (s *ArticleStore) ListAllForIndex(ctx context.Context) ([]Article, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM news
		WHERE link IS NOT NULL AND link != ''
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("article list for index: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

// ListMissingSummary returns articles with content but no summary, newest
// first. With force set, rows with an existing summary are included too, so a
// batch can overwrite stale summaries.
func (s *ArticleStore) ListMissingSummary(ctx context.Context, limit int, force bool) ([]Article, error) {
	if limit <= 0 {
		limit = 100
	}
	where := `WHERE content IS NOT NULL AND content != '' AND (summary IS NULL OR summary = '')`
	if force {
		where = `WHERE content IS NOT NULL AND content != ''`
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM news
		`+where+`
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("article list missing summary: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

// UpdateSummary sets the summary on an article.
func (s *ArticleStore) UpdateSummary(ctx context.Context, id int64, summary string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE news SET summary = $1 WHERE id = $2`, summary, id)
	if err != nil {
		return fmt.Errorf("article update summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecentLinks returns links of articles dated within the lookback window,
// newest first, capped at max. Used to pick precompute targets.
func (s *ArticleStore) RecentLinks(ctx context.Context, lookbackHours, max int) ([]string, error) {
	if max <= 0 {
		max = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT link FROM news
		WHERE link IS NOT NULL AND link != ''
		  AND date >= now() - make_interval(hours => $1)
		ORDER BY date DESC
		LIMIT $2
	`, lookbackHours, max)
	if err != nil {
		return nil, fmt.Errorf("article recent links: %w", err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("article recent links scan: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// SourceStat summarizes one outlet's crawled articles.
type SourceStat struct {
	Source            string     `json:"source"`
	Total             int        `json:"total"`
	WithinWindow      int        `json:"within_window"`
	LatestArticleDate *time.Time `json:"latest_article_date,omitempty"`
}

// SourceStats returns per-outlet article counts, how many fall inside the
// lookback window, and the newest article date, alphabetical by outlet. The
// overall latest crawled article date is returned alongside.
func (s *ArticleStore) SourceStats(ctx context.Context, sinceHours int) ([]SourceStat, *time.Time, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			COALESCE(source, ''),
			COUNT(*),
			COUNT(*) FILTER (WHERE COALESCE(date, 'epoch'::timestamptz) >= now() - make_interval(hours => $1)),
			MAX(date)
		FROM news
		WHERE origin = 'rss'
		GROUP BY source
		ORDER BY source
	`, sinceHours)
	if err != nil {
		return nil, nil, fmt.Errorf("article source stats: %w", err)
	}
	defer rows.Close()

	var stats []SourceStat
	for rows.Next() {
		var st SourceStat
		if err := rows.Scan(&st.Source, &st.Total, &st.WithinWindow, &st.LatestArticleDate); err != nil {
			return nil, nil, fmt.Errorf("article source stats scan: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var latest *time.Time
	err = s.pool.QueryRow(ctx, `SELECT MAX(date) FROM news WHERE origin = 'rss'`).Scan(&latest)
	if err != nil {
		return nil, nil, fmt.Errorf("article source stats latest: %w", err)
	}
	return stats, latest, nil
}

// ListRecent returns the newest crawled articles, optionally filtered to one
// outlet, with limit/offset paging.
func (s *ArticleStore) ListRecent(ctx context.Context, source string, limit, offset int) ([]Article, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := `WHERE origin = 'rss'`
	args := []any{limit, offset}
	if source != "" {
		where += ` AND source = $3`
		args = append(args, source)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM news
		`+where+`
		ORDER BY COALESCE(date, 'epoch'::timestamptz) DESC, id DESC
		LIMIT $1 OFFSET $2
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("article list recent: %w", err)
	}
	defer rows.Close()

	return collectArticles(rows)
}

// SummaryByLink returns the stored summary for a link, matching either the
// raw query value or its entity-unescaped form. ErrNotFound when no article
// has the link.
func (s *ArticleStore) SummaryByLink(ctx context.Context, raw, unescaped string) (string, error) {
	var summary *string
	err := s.pool.QueryRow(ctx, `
		SELECT summary FROM news WHERE link = $1 OR link = $2 LIMIT 1
	`, raw, unescaped).Scan(&summary)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("article summary by link: %w", err)
	}
	if summary == nil {
		return "", nil
	}
	return strings.TrimSpace(*summary), nil
}

// SummaryItem is one row of the summary listing.
type SummaryItem struct {
	ID      int64  `json:"id"`
	Summary string `json:"summary"`
}

// ListSummaries returns summarized articles newest first with paging. A
// non-empty q filters by title or content substring.
func (s *ArticleStore) ListSummaries(ctx context.Context, limit, offset int, q string) ([]SummaryItem, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := `WHERE summary IS NOT NULL AND summary != ''`
	args := []any{limit, offset}
	if q != "" {
		where += ` AND (title ILIKE $3 OR content ILIKE $3)`
		args = append(args, "%"+q+"%")
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, summary
		FROM news
		`+where+`
		ORDER BY date DESC NULLS LAST, id DESC
		LIMIT $1 OFFSET $2
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("article list summaries: %w", err)
	}
	defer rows.Close()

	var items []SummaryItem
	for rows.Next() {
		var it SummaryItem
		var summary *string
		if err := rows.Scan(&it.ID, &summary); err != nil {
			return nil, fmt.Errorf("article list summaries scan: %w", err)
		}
		if summary != nil {
			it.Summary = strings.TrimSpace(*summary)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func collectArticles(rows pgx.Rows) ([]Article, error) {
	var articles []Article
	for rows.Next() {
		a, err := scanArticleFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("article scan: %w", err)
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// AcquireSummaryLock takes the summarizer batch advisory lock. Advisory locks
// are session-scoped, so the connection holding the lock is pinned until the
// returned release func runs. Returns ErrLocked when another batch holds it.
func (s *ArticleStore) AcquireSummaryLock(ctx context.Context) (func(), error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary lock: acquire conn: %w", err)
	}

	var got bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, summaryBatchLockKey).Scan(&got); err != nil {
		conn.Release()
		return nil, fmt.Errorf("summary lock: try lock: %w", err)
	}
	if !got {
		conn.Release()
		return nil, ErrLocked
	}

	release := func() {
		// Unlock on a background context so a canceled job still releases.
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, summaryBatchLockKey)
		conn.Release()
	}
	return release, nil
}
