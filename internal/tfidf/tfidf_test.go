package tfidf

import (
	"errors"
	"math"
	"path/filepath"
	"testing"
)

func testCorpus() []string {
	return []string{
		"정부 부동산 정책 발표 공급 확대",
		"정부 부동산 정책 비판 야당 반발",
		"정부 정책 국회 심의 예정",
		"야당 국회 반발 정책 철회 요구",
		"부동산 시장 정책 공급 확대 전망",
		"국회 심의 정책 발표 일정",
	}
}

func TestFitPrunesByDF(t *testing.T) {
	v, err := Fit(testCorpus(), Params{MinDF: 3, MaxDFRatio: 0.9, Sublinear: true})
	if err != nil {
		t.Fatal(err)
	}
	// "정책" appears in 6/6 docs: above max_df 0.9 and pruned.
	if _, ok := v.Vocabulary["정책"]; ok {
		t.Error("term above max_df kept in vocabulary")
	}
	// "정부" appears in 3 docs: survives min_df=3.
	if _, ok := v.Vocabulary["정부"]; !ok {
		t.Error("term at min_df dropped from vocabulary")
	}
	// "시장" appears once: pruned by min_df.
	if _, ok := v.Vocabulary["시장"]; ok {
		t.Error("rare term kept in vocabulary")
	}
}

func TestFitMaxFeatures(t *testing.T) {
	v, err := Fit(testCorpus(), Params{MinDF: 1, MaxFeatures: 5})
	if err != nil {
		t.Fatal(err)
	}
	if v.Dim() != 5 {
		t.Errorf("dim = %d, want 5", v.Dim())
	}
}

func TestFitDeterministic(t *testing.T) {
	p := DefaultParams()
	p.MinDF = 1
	a, err := Fit(testCorpus(), p)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Fit(testCorpus(), p)
	if err != nil {
		t.Fatal(err)
	}
	if a.Dim() != b.Dim() {
		t.Fatalf("dims differ: %d vs %d", a.Dim(), b.Dim())
	}
	for term, idx := range a.Vocabulary {
		if b.Vocabulary[term] != idx {
			t.Errorf("vocabulary not deterministic for %q: %d vs %d", term, idx, b.Vocabulary[term])
		}
	}
}

func TestTransformNormalized(t *testing.T) {
	v, err := Fit(testCorpus(), Params{MinDF: 1, Sublinear: true})
	if err != nil {
		t.Fatal(err)
	}
	vec := v.Transform("정부 부동산 정책 발표")
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("vector norm^2 = %f, want 1", norm)
	}
}

func TestTransformUnknownTermsZeroVector(t *testing.T) {
	v, err := Fit(testCorpus(), Params{MinDF: 1})
	if err != nil {
		t.Fatal(err)
	}
	vec := v.Transform("completely unseen words here")
	for i, x := range vec {
		if x != 0 {
			t.Fatalf("vec[%d] = %f, want all zeros", i, x)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	v, err := Fit(testCorpus(), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "tfidf.json")
	if err := Save(v, path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Dim() != v.Dim() {
		t.Errorf("dim = %d, want %d", got.Dim(), v.Dim())
	}
	a := v.Transform("정부 부동산 발표")
	b := got.Transform("정부 부동산 발표")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("transform differs at %d after reload", i)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNoVectorizer) {
		t.Errorf("err = %v, want ErrNoVectorizer", err)
	}
}

func TestLoaderSwap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tfidf.json")
	l := NewLoader(path)
	if _, err := l.Current(); !errors.Is(err, ErrNoVectorizer) {
		t.Fatalf("Current before fit: err = %v, want ErrNoVectorizer", err)
	}

	v, err := Fit(testCorpus(), DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Swap(v); err != nil {
		t.Fatal(err)
	}
	cur, err := l.Current()
	if err != nil {
		t.Fatal(err)
	}
	if cur.Dim() != v.Dim() {
		t.Errorf("current dim = %d, want %d", cur.Dim(), v.Dim())
	}

	// A fresh loader picks the artifact up from disk.
	l2 := NewLoader(path)
	if _, err := l2.Current(); err != nil {
		t.Errorf("reloaded loader: %v", err)
	}
}
