// Package tfidf implements a corpus-fitted TF-IDF embedder.
package tfidf

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"contractrag/internal/domain"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// model is one fitted vocabulary. It is never mutated after fitting.
type model struct {
	vocabulary map[string]int
	idf        []float64
}

// Embedder fits its vocabulary on every EmbedDocuments call and projects
// queries into the most recently fitted vocabulary.
type Embedder struct {
	mu        sync.RWMutex
	fitted    *model
	stopwords map[string]struct{}
}

// NewEmbedder creates an unfitted TF-IDF embedder.
func NewEmbedder() *Embedder {
	return &Embedder{stopwords: defaultStopwords()}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "tfidf" }

// Dimension returns the vocabulary size of the current fit, or 0 before fitting.
func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.fitted == nil {
		return 0
	}
	return len(e.fitted.idf)
}

// Fork returns a new unfitted embedder with the same stopwords. Fitting the
// fork leaves e untouched.
func (e *Embedder) Fork() domain.Embedder {
	return &Embedder{stopwords: e.stopwords}
}

// Fitted reports whether a vocabulary is available for queries.
func (e *Embedder) Fitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fitted != nil
}

// EmbedDocuments fits the vocabulary and IDF values on texts and returns their vectors.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	m, err := e.fit(texts)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.fitted = m
	e.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.project(m, t)
	}
	return out, nil
}

// EmbedQuery projects text into the fitted vocabulary.
func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	m := e.fitted
	e.mu.RUnlock()
	if m == nil {
		return nil, fmt.Errorf("%w: tfidf embedder not fitted", domain.ErrEmbeddingUnavailable)
	}
	return e.project(m, text), nil
}

func (e *Embedder) fit(corpus []string) (*model, error) {
	if len(corpus) == 0 {
		return nil, fmt.Errorf("%w: empty corpus for TF-IDF fit", domain.ErrEmbeddingUnavailable)
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no tokens found in corpus", domain.ErrEmbeddingUnavailable)
	}
	m := &model{vocabulary: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	n := float64(len(corpus))
	for i, term := range terms {
		m.vocabulary[term] = i
		// Smoothed IDF
		m.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return m, nil
}

func (e *Embedder) project(m *model, text string) []float32 {
	vec := make([]float64, len(m.idf))
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := m.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	out := make([]float32, len(vec))
	if total == 0 {
		return out
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * m.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *Embedder) tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
