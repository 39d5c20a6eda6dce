// Package urlnorm canonicalizes article URLs so that tracking-decorated,
// mobile, and AMP variants of the same story collapse to a single key.
package urlnorm

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

// trackingKeys is the set of query parameters stripped during normalization.
// Any parameter starting with "utm_" is stripped as well.
var trackingKeys = map[string]bool{
	"gclid":    true,
	"fbclid":   true,
	"ncid":     true,
	"ref":      true,
	"ref_src":  true,
	"referrer": true,
	"spm":      true,
}

var reAmpPath = regexp.MustCompile(`(?i)/amp(?:/|$)`)

// StripTracking removes tracking query parameters from a URL, preserving the
// order of the remaining parameters. HTML entities in the URL (&amp;) are
// decoded first. Unparseable input is returned unchanged.
func StripTracking(rawURL string) string {
	rawURL = html.UnescapeString(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = filterQuery(u.RawQuery)
	return u.String()
}

// filterQuery drops tracking parameters from a raw query string while keeping
// the surviving parameters in their original order. url.Values cannot be used
// here because its Encode sorts keys.
func filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key = pair[:i]
		}
		decoded, err := url.QueryUnescape(key)
		if err != nil {
			decoded = key
		}
		if trackingKeys[decoded] || strings.HasPrefix(decoded, "utm_") {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// CollapseVariants rewrites mobile and AMP URL variants to their canonical
// desktop form: the "m." host prefix is dropped (except for naver.com hosts,
// whose mobile pages are distinct) and "/amp" path segments are removed.
func CollapseVariants(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := u.Host
	if strings.HasPrefix(host, "m.") && !strings.Contains(host, "naver.com") {
		host = host[2:]
	}
	u.Host = host
	u.Path = reAmpPath.ReplaceAllString(u.Path, "/")
	return u.String()
}

// Normalize applies tracking-strip and variant-collapse, then, for links on
// the Naver news aggregator, attempts to resolve the original publisher URL.
// Resolution is best-effort; on any failure the cleaned aggregator link is
// returned.
func (n *Normalizer) Normalize(rawURL string) string {
	cleaned := CollapseVariants(StripTracking(rawURL))
	u, err := url.Parse(cleaned)
	if err != nil {
		return cleaned
	}
	host := u.Host
	if strings.HasSuffix(host, "news.naver.com") || strings.HasSuffix(host, "n.news.naver.com") {
		if origin := n.resolveOrigin(cleaned); origin != "" {
			return origin
		}
	}
	return cleaned
}

// Clean applies tracking-strip and variant-collapse without aggregator
// resolution. Used for candidate links on the output path where a network
// round-trip per link would be prohibitive.
func Clean(rawURL string) string {
	return CollapseVariants(StripTracking(rawURL))
}
