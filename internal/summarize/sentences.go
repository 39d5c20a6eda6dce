package summarize

import (
	"regexp"
	"strings"
)

// reTrailingCaption removes parenthesized agency/photo credits left at the
// end of a sentence.
var reTrailingCaption = regexp.MustCompile(`\s*\((?:사진|영상|자료|뉴스1|연합뉴스|무단 전재.*?|All rights reserved).*?\)\s*$`)

// sentence terminators for the split heuristic.
func isTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '”', '"':
		return true
	}
	return false
}

// SplitSentences splits Korean article text into sentences with a simple
// heuristic: a cut happens at whitespace that follows a terminator character.
// Caption tails are stripped and junk or too-short sentences dropped.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var raw []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != ' ' && runes[i] != '\n' && runes[i] != '\t' {
			continue
		}
		if i > start && isTerminator(runes[i-1]) {
			raw = append(raw, string(runes[start:i]))
			// Skip the whitespace run.
			for i < len(runes) && (runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t') {
				i++
			}
			start = i
			i--
		}
	}
	if start < len(runes) {
		raw = append(raw, string(runes[start:]))
	}

	var sents []string
	for _, s := range raw {
		s = strings.TrimSpace(reTrailingCaption.ReplaceAllString(s, ""))
		if s == "" {
			continue
		}
		if len([]rune(s)) < 6 || isJunkSentence(s) {
			continue
		}
		sents = append(sents, s)
	}
	return sents
}
