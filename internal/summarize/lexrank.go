package summarize

import (
	"math"
	"sort"
	"strings"
)

const (
	lexrankThreshold = 0.1
	lexrankDamping   = 0.85
	lexrankTol       = 1e-6
	lexrankMaxIter   = 100
	// Long articles are capped to their first sentences before ranking.
	lexrankMaxSentences = 80
)

// sentenceVectors builds TF-IDF vectors over word unigrams and bigrams for
// the given sentences. Sub-word weighting matters little at sentence scale,
// so raw term frequency with smoothed IDF is used.
func sentenceVectors(sents []string) []map[string]float64 {
	n := len(sents)
	docs := make([]map[string]float64, n)
	df := make(map[string]int)

	for i, s := range sents {
		terms := make(map[string]float64)
		words := strings.Fields(strings.ToLower(s))
		for j, w := range words {
			terms[w]++
			if j+1 < len(words) {
				terms[w+" "+words[j+1]]++
			}
		}
		for t := range terms {
			df[t]++
		}
		docs[i] = terms
	}

	// Smoothed IDF, then L2 normalization so dot products are cosines.
	for i := range docs {
		var norm float64
		for t, tf := range docs[i] {
			idf := math.Log(float64(1+n)/float64(1+df[t])) + 1
			w := tf * idf
			docs[i][t] = w
			norm += w * w
		}
		norm = math.Sqrt(norm)
		if norm == 0 {
			continue
		}
		for t := range docs[i] {
			docs[i][t] /= norm
		}
	}
	return docs
}

func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for t, w := range a {
		dot += w * b[t]
	}
	return dot
}

// lexrankScores runs PageRank over the thresholded sentence-similarity graph
// and returns a centrality score per sentence.
func lexrankScores(sim [][]float64) []float64 {
	n := len(sim)

	// Edges above the similarity threshold, row-normalized into a
	// transition matrix.
	p := make([][]float64, n)
	for i := range sim {
		row := make([]float64, n)
		var sum float64
		for j := range sim[i] {
			if i != j && sim[i][j] >= lexrankThreshold {
				row[j] = 1
				sum++
			}
		}
		if sum == 0 {
			sum = 1
		}
		for j := range row {
			row[j] /= sum
		}
		p[i] = row
	}

	v := make([]float64, n)
	for i := range v {
		v[i] = 1 / float64(n)
	}
	next := make([]float64, n)
	for iter := 0; iter < lexrankMaxIter; iter++ {
		for j := 0; j < n; j++ {
			var acc float64
			for i := 0; i < n; i++ {
				acc += p[i][j] * v[i]
			}
			next[j] = (1-lexrankDamping)/float64(n) + lexrankDamping*acc
		}
		var delta float64
		for i := range v {
			delta += math.Abs(next[i] - v[i])
		}
		v, next = next, v
		if delta < lexrankTol {
			break
		}
	}
	return v
}

// rankSentences returns the indices of the top-k central sentences, restored
// to article order.
func rankSentences(sents []string, k int) []int {
	if len(sents) > lexrankMaxSentences {
		sents = sents[:lexrankMaxSentences]
	}
	docs := sentenceVectors(sents)
	n := len(docs)
	sim := make([][]float64, n)
	for i := range sim {
		sim[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i != j {
				sim[i][j] = cosine(docs[i], docs[j])
			}
		}
	}

	scores := lexrankScores(sim)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	top := append([]int(nil), idx[:k]...)
	sort.Ints(top)
	return top
}
