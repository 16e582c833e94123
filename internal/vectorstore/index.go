// Package vectorstore holds the immutable chunk index used for retrieval, its
// SQLite persistence and the manager that swaps snapshots on rebuild.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"contractrag/internal/domain"
	"contractrag/internal/embedding/hashing"
)

// Index is a fully built, read-only snapshot of chunk vectors. It is safe for
// concurrent use; a rebuild produces a new Index instead of mutating this one.
type Index struct {
	chunks   []domain.Chunk
	vectors  [][]float32
	dim      int
	embedder domain.Embedder
	fallback string
}

// corpusFitted is implemented by embedders whose query space is derived from
// the corpus they embed. Each snapshot fits and keeps its own fork.
type corpusFitted interface {
	Fork() domain.Embedder
}

// Build embeds every chunk and returns the snapshot. When the embedder fails
// for any reason other than cancellation, the deterministic hashing embedder
// is used instead and FallbackReason reports why.
func Build(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder) (*Index, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	if f, ok := embedder.(corpusFitted); ok {
		embedder = f.Fork()
	}
	idx := &Index{chunks: append([]domain.Chunk(nil), chunks...), embedder: embedder}
	if len(chunks) == 0 {
		return idx, nil
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err == nil && len(vectors) != len(chunks) {
		err = fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		fb := hashing.New(hashing.DefaultDimension)
		vectors, _ = fb.EmbedDocuments(context.WithoutCancel(ctx), texts)
		idx.embedder = fb
		idx.fallback = fmt.Sprintf("%s: %v", embedder.Name(), err)
	}
	idx.vectors = make([][]float32, len(vectors))
	for i, v := range vectors {
		idx.vectors[i] = normalized(v)
	}
	idx.dim = len(idx.vectors[0])
	return idx, nil
}

// Len returns the number of indexed chunks.
func (x *Index) Len() int { return len(x.chunks) }

// Dimension returns the vector size of the snapshot.
func (x *Index) Dimension() int { return x.dim }

// EmbedderName names the embedder whose vectors the snapshot holds.
func (x *Index) EmbedderName() string { return x.embedder.Name() }

// FallbackReason is non-empty when Build substituted the hashing embedder.
func (x *Index) FallbackReason() string { return x.fallback }

// Chunks returns a copy of all indexed chunks in insertion order.
func (x *Index) Chunks() []domain.Chunk {
	return append([]domain.Chunk(nil), x.chunks...)
}

// Search returns the k chunks most similar to query, score descending with
// ties kept in insertion order. A query that embeds to nothing usable falls
// back to lexical overlap ranking.
func (x *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		k = 5
	}
	if len(x.chunks) == 0 {
		return nil, nil
	}
	vec, err := x.embedder.EmbedQuery(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return lexicalSearch(x.chunks, query, k), nil
	}
	if len(vec) != x.dim || isZero(vec) {
		return lexicalSearch(x.chunks, query, k), nil
	}
	q := normalized(vec)
	scores := make([]float64, len(x.vectors))
	allZero := true
	for i, v := range x.vectors {
		scores[i] = dot(v, q)
		if scores[i] > 1e-9 {
			allZero = false
		}
	}
	if allZero {
		return lexicalSearch(x.chunks, query, k), nil
	}
	return topK(x.chunks, scores, k), nil
}

func topK(chunks []domain.Chunk, scores []float64, k int) []domain.SearchResult {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if k > len(idxs) {
		k = len(idxs)
	}
	out := make([]domain.SearchResult, 0, k)
	for _, j := range idxs[:k] {
		out = append(out, domain.SearchResult{Chunk: chunks[j], Score: scores[j]})
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalized(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func isZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
