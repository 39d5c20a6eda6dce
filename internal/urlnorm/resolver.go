package urlnorm

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// Normalizer resolves aggregator links back to their original publisher
// pages. The zero value is not usable; construct with NewNormalizer.
type Normalizer struct {
	userAgent string
	timeout   time.Duration
}

// NewNormalizer creates a Normalizer with the standard crawl identity and a
// 10 second per-resolution budget.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		userAgent: "VeritasBot/0.1",
		timeout:   10 * time.Second,
	}
}

// resolveOrigin fetches a Naver news page and extracts the publisher's
// original-article link. It never returns an error; any failure yields an
// empty string and the caller keeps the aggregator link.
func (n *Normalizer) resolveOrigin(pageURL string) string {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	c := colly.NewCollector(
		colly.UserAgent(n.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxDepth(1),
	)

	var (
		href string
		mu   sync.Mutex
	)

	c.OnHTML(`a.media_end_head_origin_link, a.media_end_link`, func(e *colly.HTMLElement) {
		mu.Lock()
		if href == "" {
			href = strings.TrimSpace(e.Attr("href"))
		}
		mu.Unlock()
	})

	c.OnError(func(r *colly.Response, err error) {
		// Origin resolution is best-effort.
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Visit(pageURL)
		c.Wait()
	}()

	select {
	case <-ctx.Done():
		return ""
	case <-done:
	}

	if href == "" {
		return ""
	}
	rel, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(rel).String()
	return CollapseVariants(StripTracking(abs))
}
