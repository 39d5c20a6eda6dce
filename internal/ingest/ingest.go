package ingest

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"regexp"
	"strings"
	"time"

	trafilatura "github.com/markusmobius/go-trafilatura"
	"github.com/mmcdole/gofeed"

	"github.com/Dreaming-Lion/Veritas/internal/models"
	"github.com/Dreaming-Lion/Veritas/internal/urlnorm"
)

const (
	userAgent    = "VeritasBot/0.1 (+research; contact: dev@example.com)"
	fetchTimeout = 12 * time.Second
	// fetchDelay spaces out article-page fetches within one feed.
	fetchDelay = 800 * time.Millisecond
)

// upserter is the slice of the article store the ingestor needs.
type upserter interface {
	Upsert(ctx context.Context, a *models.Article) (bool, error)
}

// archiver stores raw article pages. Optional; a nil archiver disables it.
type archiver interface {
	Configured() bool
	StorePage(ctx context.Context, articleID int64, page []byte) error
}

// Ingestor crawls RSS feeds and persists articles.
type Ingestor struct {
	store   upserter
	archive archiver
	parser  *gofeed.Parser
	client  *http.Client
	delay   time.Duration
}

// New creates an Ingestor. archive may be nil.
func New(store upserter, archive archiver) *Ingestor {
	return &Ingestor{
		store:   store,
		archive: archive,
		parser:  gofeed.NewParser(),
		client:  &http.Client{Timeout: fetchTimeout},
		delay:   fetchDelay,
	}
}

// Sample is one inserted or updated article reference in crawl stats.
type Sample struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Samples holds the first few inserted/updated rows of one feed crawl.
type Samples struct {
	Inserted []Sample `json:"inserted"`
	Updated  []Sample `json:"updated"`
}

// FeedStats reports one feed's crawl outcome.
type FeedStats struct {
	Source    string  `json:"source"`
	Processed int     `json:"processed"`
	Inserted  int     `json:"inserted"`
	Updated   int     `json:"updated"`
	Samples   Samples `json:"samples"`
	Error     string  `json:"error,omitempty"`
}

// Totals aggregates across feeds.
type Totals struct {
	Processed int `json:"processed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
}

// Report is a full crawl result.
type Report struct {
	Total    Totals                `json:"total"`
	BySource map[string]*FeedStats `json:"by_source"`
}

// CrawlAll crawls every configured feed, or only the named ones when filter
// is non-empty. A failing feed is reported in its stats entry and never
// aborts the other feeds.
func (in *Ingestor) CrawlAll(ctx context.Context, filter []string) *Report {
	wanted := make(map[string]bool, len(filter))
	for _, name := range filter {
		wanted[name] = true
	}

	report := &Report{BySource: make(map[string]*FeedStats)}
	for _, src := range Sources() {
		if len(wanted) > 0 && !wanted[src.Name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report
		}

		st, err := in.CrawlFeed(ctx, src)
		if err != nil {
			slog.Warn("ingest: feed failed", "source", src.Name, "error", err)
			report.BySource[src.Name] = &FeedStats{Source: src.Name, Error: err.Error()}
			continue
		}
		report.BySource[src.Name] = st
		report.Total.Processed += st.Processed
		report.Total.Inserted += st.Inserted
		report.Total.Updated += st.Updated
	}

	slog.Info("ingest: crawl complete",
		"processed", report.Total.Processed,
		"inserted", report.Total.Inserted,
		"updated", report.Total.Updated)
	return report
}

// CrawlFeed crawls a single feed.
func (in *Ingestor) CrawlFeed(ctx context.Context, src Source) (*FeedStats, error) {
	feed, err := in.parser.ParseURLWithContext(src.FeedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse feed %s: %w", src.Name, err)
	}

	stats := &FeedStats{Source: src.Name}
	for _, item := range feed.Items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if item.Link == "" {
			continue
		}

		title := strings.TrimSpace(item.Title)
		rssText := extractFromEntry(item)

		fullText, canonLink, page := in.fetchArticle(ctx, item.Link)
		content := fullText
		if len(rssText) > len(fullText) {
			content = rssText
		}

		a := &models.Article{
			Source:  src.Name,
			Lean:    string(src.Lean),
			Title:   title,
			Summary: rssText,
			Content: content,
			Link:    canonLink,
			Date:    parseDate(item),
			Author:  itemAuthor(item),
			Section: "politics",
			Origin:  "rss",
		}
		inserted, err := in.store.Upsert(ctx, a)
		if err != nil {
			slog.Warn("ingest: upsert failed", "source", src.Name, "link", canonLink, "error", err)
			continue
		}

		stats.Processed++
		if inserted {
			stats.Inserted++
			if len(stats.Samples.Inserted) < 3 {
				stats.Samples.Inserted = append(stats.Samples.Inserted, Sample{Title: title, Link: canonLink})
			}
			in.archivePage(ctx, a.ID, page)
		} else {
			stats.Updated++
			if len(stats.Samples.Updated) < 3 {
				stats.Samples.Updated = append(stats.Samples.Updated, Sample{Title: title, Link: canonLink})
			}
		}
	}
	return stats, nil
}

// fetchArticle fetches the article page, extracts the main text, and picks
// the canonical link. Failures degrade to an empty body and the
// tracking-stripped RSS link.
func (in *Ingestor) fetchArticle(ctx context.Context, rawLink string) (text, canonLink string, page []byte) {
	page, err := in.politeFetch(ctx, rawLink)
	if err != nil {
		slog.Debug("ingest: page fetch failed", "link", rawLink, "error", err)
		return "", urlnorm.StripTracking(rawLink), nil
	}

	text = extractMainText(page, rawLink)
	return text, canonicalizeURL(rawLink, string(page)), page
}

// politeFetch GETs a page with the crawl identity and paces consecutive
// fetches.
func (in *Ingestor) politeFetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	if in.delay > 0 {
		select {
		case <-time.After(in.delay):
		case <-ctx.Done():
		}
	}
	return body, nil
}

// extractMainText runs trafilatura over the page.
func extractMainText(page []byte, pageURL string) string {
	u, _ := neturl.Parse(pageURL)
	res, err := trafilatura.Extract(bytes.NewReader(page), trafilatura.Options{
		OriginalURL:    u,
		EnableFallback: true,
		Focus:          trafilatura.Balanced,
	})
	if err != nil || res == nil {
		return ""
	}
	return strings.TrimSpace(res.ContentText)
}

var (
	reCanonical = regexp.MustCompile(`(?i)<link[^>]+rel=["']canonical["'][^>]*href=["']([^"']+)["']`)
	reOGURL     = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:url["'][^>]*content=["']([^"']+)["']`)
	reTag       = regexp.MustCompile(`(?s)<.*?>`)
)

// canonicalizeURL picks the stored link for a page: the page's canonical
// link tag, then og:url, then the tracking-stripped original.
func canonicalizeURL(origURL, htmlDoc string) string {
	if m := reCanonical.FindStringSubmatch(htmlDoc); m != nil {
		return urlnorm.StripTracking(m[1])
	}
	if m := reOGURL.FindStringSubmatch(htmlDoc); m != nil {
		return urlnorm.StripTracking(m[1])
	}
	return urlnorm.StripTracking(origURL)
}

// extractFromEntry pulls the best text the feed itself carries: the first
// text content block, else the item description, tags stripped.
func extractFromEntry(item *gofeed.Item) string {
	raw := item.Content
	if raw == "" {
		raw = item.Description
	}
	raw = html.UnescapeString(raw)
	return strings.TrimSpace(reTag.ReplaceAllString(raw, " "))
}

func parseDate(item *gofeed.Item) *time.Time {
	if item.PublishedParsed != nil {
		t := item.PublishedParsed.UTC()
		return &t
	}
	if item.UpdatedParsed != nil {
		t := item.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func itemAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return strings.TrimSpace(item.Authors[0].Name)
	}
	return ""
}

// archivePage stores the raw page for a newly inserted article when an
// archive backend is configured. Best-effort.
func (in *Ingestor) archivePage(ctx context.Context, articleID int64, page []byte) {
	if in.archive == nil || !in.archive.Configured() || len(page) == 0 || articleID == 0 {
		return
	}
	if err := in.archive.StorePage(ctx, articleID, page); err != nil {
		slog.Warn("ingest: page archive failed", "article_id", articleID, "error", err)
	}
}
