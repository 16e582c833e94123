// Package hashing provides a deterministic bag-of-hashed-tokens embedder that
// needs no model or network access.
package hashing

import (
	"context"
	"crypto/sha1"
	"math"
	"math/big"
	"strings"
)

// DefaultDimension is the vector size used when none is configured.
const DefaultDimension = 384

// Embedder hashes each whitespace token into one of dim buckets and
// L2-normalizes the counts.
type Embedder struct {
	dim     int
	modulus *big.Int
}

// New returns an embedder producing vectors of size dim.
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim, modulus: big.NewInt(int64(dim))}
}

func (e *Embedder) Name() string   { return "hashing" }
func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vectorize(t)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vectorize(text), nil
}

func (e *Embedder) vectorize(text string) []float32 {
	counts := make([]float64, e.dim)
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		counts[e.bucket(tok)]++
	}
	norm := 0.0
	for _, v := range counts {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	vec := make([]float32, e.dim)
	for i, v := range counts {
		vec[i] = float32(v / norm)
	}
	return vec
}

// bucket reduces the full 160-bit digest modulo dim.
func (e *Embedder) bucket(tok string) int {
	sum := sha1.Sum([]byte(tok))
	n := new(big.Int).SetBytes(sum[:])
	return int(n.Mod(n, e.modulus).Int64())
}
