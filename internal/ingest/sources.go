// Package ingest crawls the configured politics RSS feeds, extracts full
// article text, and upserts the results into the news store.
package ingest

import "github.com/Dreaming-Lion/Veritas/internal/press"

// Source is one crawled outlet.
type Source struct {
	Name    string
	FeedURL string
	Lean    press.Lean
}

// sources is the fixed politics-section feed set.
var sources = []Source{
	{"연합뉴스TV", "https://www.yonhapnewstv.co.kr/category/news/politics/feed/", press.Centrist},
	{"오마이뉴스", "https://rss.ohmynews.com/rss/politics.xml", press.Progressive},
	{"조선일보", "https://www.chosun.com/arc/outboundfeeds/rss/category/politics/?outputType=xml", press.Conservative},
	{"JTBC", "https://news-ex.jtbc.co.kr/v1/get/rss/section/politics", press.Progressive},
	{"SBS", "https://news.sbs.co.kr/news/SectionRssFeed.do?sectionId=01&plink=RSSREADER", press.Centrist},
	{"매일경제", "https://www.mk.co.kr/rss/30200030/", press.Conservative},
	{"한겨레", "https://www.hani.co.kr/rss/politics/", press.Progressive},
	{"프레시안", "https://www.pressian.com/api/v3/site/rss/section/66", press.Progressive},
	{"시사저널", "http://www.sisajournal.com/rss/S1N58.xml", press.Conservative},
	{"서울신문", "https://www.seoul.co.kr/xml/rss/rss_politics.xml", press.Centrist},
	{"동아일보", "https://rss.donga.com/politics.xml", press.Conservative},
	{"뉴시스", "https://newsis.com/RSS/politics.xml", press.Centrist},
	{"국민일보", "https://www.kmib.co.kr/rss/data/kmibPolRss.xml", press.Conservative},
	{"경향신문", "https://www.khan.co.kr/rss/rssdata/politic_news.xml", press.Progressive},
}

// Sources returns the full feed set.
func Sources() []Source {
	return sources
}

// SourceByName returns the source with the given outlet name.
func SourceByName(name string) (Source, bool) {
	for _, s := range sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
