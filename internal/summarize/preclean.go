// Package summarize produces short extractive summaries of Korean news
// articles: boilerplate removal, sentence splitting, LexRank sentence
// ranking, and a lead-sentence fallback.
package summarize

import (
	"html"
	"regexp"
	"strings"
)

// junkLinePatterns match boilerplate lines dropped before summarization:
// photo captions, copyright notices, contact/subscription footers, and
// broadcast-script markers.
var junkLinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(서울|세종|부산|인천|대전|광주|대구|울산|수원|춘천|제주|전주|청주|포항|창원|경주|의정부|천안|남양주|안산|용인|성남|서울신문|연합뉴스|뉴스1|뉴시스|노컷뉴스|머니투데이|매일경제|한국경제)\s*(DB|자료사진|사진|그래픽)\s*$`),
	regexp.MustCompile(`^\s*\[[^\]]*(사진|그래픽|영상|신문)[^\]]*\]\s*$`),
	regexp.MustCompile(`^\s*\(.*(사진|영상|그래픽|신문).*\)\s*$`),
	regexp.MustCompile(`(?i)Copyright.*All rights reserved`),
	regexp.MustCompile(`무단\s*전재|재배포|AI\s*학습\s*이용\s*금지`),
	regexp.MustCompile(`이메일\s*[:：]|카카오톡\s*[:：]|페이스북\s*[:：]|트위터\s*[:：]`),
	regexp.MustCompile(`[A-Za-z0-9_.+-]+@[A-Za-z0-9_.+-]+`),
	regexp.MustCompile(`구독|좋아요|알림설정|광고문구`),
	regexp.MustCompile(`^\s*\[(앵커|기자)\]\s*$`),
	regexp.MustCompile(`영상취재\s`),
	regexp.MustCompile(`영상편집\s`),
	regexp.MustCompile(`그래픽\s`),
	regexp.MustCompile(`기사문의\s*및\s*제보`),
}

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reByline     = regexp.MustCompile(`[가-힣A-Za-z·.\-]+ 기자\s*[A-Za-z0-9_.+-]+@[A-Za-z0-9_.+-]+`)
	reSpaces     = regexp.MustCompile(`[ \t\x{00A0}]+`)
	reBlankLines = regexp.MustCompile(`\n{3,}`)
	reCaptionDB  = regexp.MustCompile(`^[A-Z가-힣 \[\]()]+$`)
)

// Preclean strips boilerplate lines, photo captions, reporter sign-offs, and
// normalizes whitespace ahead of sentence splitting.
func Preclean(text string) string {
	text = strings.TrimSpace(html.UnescapeString(text))
	text = reCRLF.ReplaceAllString(text, "\n")

	var kept []string
	for _, ln := range strings.Split(text, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" {
			continue
		}
		// Short "연합뉴스 DB" style captions.
		if len([]rune(ln)) <= 14 && strings.Contains(ln, "DB") && reCaptionDB.MatchString(ln) {
			continue
		}
		junk := false
		for _, pat := range junkLinePatterns {
			if pat.MatchString(ln) {
				junk = true
				break
			}
		}
		if junk {
			continue
		}
		kept = append(kept, ln)
	}

	text = strings.Join(kept, "\n")
	text = reByline.ReplaceAllString(text, " ")
	text = reSpaces.ReplaceAllString(text, " ")
	text = reBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// junkSentenceKeywords flag sentences that survived line filtering but are
// still footer noise.
var junkSentenceKeywords = []string{
	"무단 전재",
	"All rights reserved",
	"©",
	"이메일 :",
	"카카오톡 :",
	"카톡/라인",
	"구독",
	"좋아요",
	"알림설정",
	"광고",
	"기사문의 및 제보",
	"ADVERTISEMENT",
	"SBS & SBS i",
	"스브스프리미엄",
}

func isJunkSentence(s string) bool {
	if len([]rune(s)) <= 5 {
		return true
	}
	for _, k := range junkSentenceKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
