package tfidf

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Save writes the fitted vectorizer as JSON, via a temp file and atomic
// rename so concurrent readers never observe a partial artifact.
func Save(v *Vectorizer, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tfidf: save: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tfidf-*.json")
	if err != nil {
		return fmt.Errorf("tfidf: save: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("tfidf: save: encode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tfidf: save: close: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("tfidf: save: rename: %w", err)
	}
	return nil
}

// Load reads a vectorizer artifact from disk. A missing file yields
// ErrNoVectorizer.
func Load(path string) (*Vectorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoVectorizer
		}
		return nil, fmt.Errorf("tfidf: load: %w", err)
	}

	var v Vectorizer
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("tfidf: load: decode: %w", err)
	}
	if len(v.IDF) == 0 || len(v.Vocabulary) != len(v.IDF) {
		return nil, fmt.Errorf("tfidf: load: malformed artifact %s", path)
	}
	return &v, nil
}

// Loader serves the current vectorizer and hot-swaps it when a reindex run
// fits a new one. Readers always see a complete vectorizer.
type Loader struct {
	path    string
	current atomic.Pointer[Vectorizer]
}

// NewLoader creates a Loader for the given artifact path and tries to read
// an existing artifact. A missing artifact is not an error at startup; the
// first reindex will produce one.
func NewLoader(path string) *Loader {
	l := &Loader{path: path}
	v, err := Load(path)
	if err != nil {
		slog.Info("tfidf: no vectorizer artifact yet", "path", path)
		return l
	}
	l.current.Store(v)
	slog.Info("tfidf: vectorizer loaded", "path", path, "dim", v.Dim())
	return l
}

// Current returns the active vectorizer, or ErrNoVectorizer before the first
// successful fit.
func (l *Loader) Current() (*Vectorizer, error) {
	v := l.current.Load()
	if v == nil {
		return nil, ErrNoVectorizer
	}
	return v, nil
}

// Swap persists a freshly fitted vectorizer and makes it the active one.
func (l *Loader) Swap(v *Vectorizer) error {
	if err := Save(v, l.path); err != nil {
		return err
	}
	l.current.Store(v)
	slog.Info("tfidf: vectorizer swapped", "path", l.path, "dim", v.Dim())
	return nil
}
