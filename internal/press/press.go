// Package press maps Korean news outlets to their political lean and decides
// which leans count as opposing viewpoints.
package press

import (
	"net/url"
	"strings"
)

// Lean is the political orientation of a news outlet.
type Lean string

const (
	Progressive  Lean = "progressive"
	Conservative Lean = "conservative"
	Centrist     Lean = "centrist"
)

// leanByPress maps outlet display names to their lean.
var leanByPress = map[string]Lean{
	"오마이뉴스": Progressive,
	"한겨레":   Progressive,
	"프레시안":  Progressive,
	"경향신문":  Progressive,
	"JTBC":  Progressive,

	"조선일보": Conservative,
	"동아일보": Conservative,
	"매일경제": Conservative,
	"국민일보": Conservative,
	"시사저널": Conservative,

	"뉴시스":    Centrist,
	"서울신문":   Centrist,
	"SBS":    Centrist,
	"연합뉴스TV": Centrist,
}

// pressByHost maps host substrings to outlet display names, used when a row
// carries no source. Ordered list so lookup is deterministic.
var pressByHost = []struct {
	host  string
	press string
}{
	{"yonhapnewstv.co.kr", "연합뉴스TV"},
	{"ohmynews.com", "오마이뉴스"},
	{"chosun.com", "조선일보"},
	{"jtbc.co.kr", "JTBC"},
	{"sbs.co.kr", "SBS"},
	{"mk.co.kr", "매일경제"},
	{"hani.co.kr", "한겨레"},
	{"pressian.com", "프레시안"},
	{"sisajournal.com", "시사저널"},
	{"seoul.co.kr", "서울신문"},
	{"donga.com", "동아일보"},
	{"newsis.com", "뉴시스"},
	{"kmib.co.kr", "국민일보"},
	{"khan.co.kr", "경향신문"},
}

// InferSource returns the outlet name for an article, preferring the stored
// source and falling back to host-substring matching on the link. Returns ""
// when neither yields a known outlet.
func InferSource(source, link string) string {
	if s := strings.TrimSpace(source); s != "" {
		return s
	}
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	for _, e := range pressByHost {
		if strings.Contains(host, e.host) {
			return e.press
		}
	}
	return ""
}

// InferLean resolves an article's lean. A stored lean wins; otherwise the
// outlet (stored or inferred from the link host) is looked up in the lean
// table. Returns "" when the lean cannot be determined.
func InferLean(source, link, storedLean string) Lean {
	if storedLean != "" {
		return Lean(storedLean)
	}
	if name := InferSource(source, link); name != "" {
		if l, ok := leanByPress[name]; ok {
			return l
		}
	}
	return ""
}

// LeanOf returns the lean for a known outlet name, or "" if unknown.
func LeanOf(press string) Lean {
	return leanByPress[press]
}

// IsOpposite reports whether cand is an opposing viewpoint relative to base.
// Progressive and conservative oppose each other; a centrist base treats both
// wings as opposing. Everything else (same lean, centrist candidate, unknown)
// is not opposing.
func IsOpposite(base, cand Lean) bool {
	switch {
	case base == Progressive && cand == Conservative:
		return true
	case base == Conservative && cand == Progressive:
		return true
	case base == Centrist && (cand == Progressive || cand == Conservative):
		return true
	}
	return false
}

// Opposite returns the set of leans considered opposing for a base lean.
// Unknown bases get no opposition set, which callers treat as "no lean
// filter".
func Opposite(base Lean) []Lean {
	switch base {
	case Progressive:
		return []Lean{Conservative}
	case Conservative:
		return []Lean{Progressive}
	case Centrist:
		return []Lean{Progressive, Conservative}
	}
	return nil
}
