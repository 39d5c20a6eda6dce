// Package tfidf implements the TF-IDF vectorizer backing the article index:
// word 1-2 gram features, document-frequency pruning, sublinear term
// frequency, and L2-normalized vectors, persisted as a JSON artifact.
package tfidf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// ErrNoVectorizer is returned when no fitted vectorizer artifact exists yet.
var ErrNoVectorizer = errors.New("tfidf: vectorizer not fitted")

// Params controls vocabulary construction during Fit.
type Params struct {
	// MinDF drops terms appearing in fewer documents (absolute count).
	MinDF int `json:"min_df"`
	// MaxDFRatio drops terms appearing in more than this fraction of
	// documents.
	MaxDFRatio float64 `json:"max_df_ratio"`
	// MaxFeatures caps the vocabulary, keeping the most frequent terms.
	MaxFeatures int `json:"max_features"`
	// Sublinear replaces raw term frequency with 1+log(tf).
	Sublinear bool `json:"sublinear_tf"`
}

// DefaultParams are the index-build parameters.
func DefaultParams() Params {
	return Params{
		MinDF:       3,
		MaxDFRatio:  0.9,
		MaxFeatures: 20000,
		Sublinear:   true,
	}
}

// Vectorizer maps documents to fixed-dimension TF-IDF vectors. A fitted
// Vectorizer is immutable and safe for concurrent Transform calls.
type Vectorizer struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Params     Params         `json:"params"`
}

// Dim returns the vector dimension.
func (v *Vectorizer) Dim() int {
	return len(v.IDF)
}

// reToken matches word tokens of two or more letters/digits.
var reToken = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// tokenize lowercases and extracts unigram and bigram terms.
func tokenize(doc string) []string {
	words := reToken.FindAllString(strings.ToLower(doc), -1)
	terms := make([]string, 0, 2*len(words))
	for i, w := range words {
		terms = append(terms, w)
		if i+1 < len(words) {
			terms = append(terms, w+" "+words[i+1])
		}
	}
	return terms
}

// Fit builds a vocabulary and IDF table from the corpus. The corpus must be
// non-empty and yield at least one surviving term.
func Fit(docs []string, p Params) (*Vectorizer, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("tfidf: fit: empty corpus")
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, t := range tokenize(doc) {
			tf[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	n := len(docs)
	maxDF := n
	if p.MaxDFRatio > 0 && p.MaxDFRatio < 1 {
		maxDF = int(p.MaxDFRatio * float64(n))
	}

	type cand struct {
		term string
		df   int
		tf   int
	}
	var cands []cand
	for t, d := range df {
		if p.MinDF > 0 && d < p.MinDF {
			continue
		}
		if d > maxDF {
			continue
		}
		cands = append(cands, cand{term: t, df: d, tf: tf[t]})
	}
	if len(cands) == 0 {
		return nil, fmt.Errorf("tfidf: fit: no terms survive df pruning (corpus=%d)", n)
	}

	// Cap the vocabulary at the most frequent terms; ties break
	// alphabetically so fits are deterministic.
	if p.MaxFeatures > 0 && len(cands) > p.MaxFeatures {
		sort.Slice(cands, func(i, j int) bool {
			if cands[i].tf != cands[j].tf {
				return cands[i].tf > cands[j].tf
			}
			return cands[i].term < cands[j].term
		})
		cands = cands[:p.MaxFeatures]
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].term < cands[j].term })

	vocab := make(map[string]int, len(cands))
	idf := make([]float64, len(cands))
	for i, c := range cands {
		vocab[c.term] = i
		idf[i] = math.Log(float64(1+n)/float64(1+c.df)) + 1
	}

	return &Vectorizer{Vocabulary: vocab, IDF: idf, Params: p}, nil
}

// Transform maps a document to its L2-normalized TF-IDF vector. Unknown
// terms are ignored; a document with no known terms yields the zero vector.
func (v *Vectorizer) Transform(doc string) []float32 {
	counts := make(map[int]float64)
	for _, t := range tokenize(doc) {
		if idx, ok := v.Vocabulary[t]; ok {
			counts[idx]++
		}
	}

	vec := make([]float32, len(v.IDF))
	var norm float64
	for idx, c := range counts {
		if v.Params.Sublinear {
			c = 1 + math.Log(c)
		}
		w := c * v.IDF[idx]
		vec[idx] = float32(w)
		norm += w * w
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for idx := range counts {
			vec[idx] *= inv
		}
	}
	return vec
}
