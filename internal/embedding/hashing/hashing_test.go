package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministicAndNormalized(t *testing.T) {
	t.Parallel()
	e := New(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, "hashing", e.Name())

	ctx := context.Background()
	docs, err := e.EmbedDocuments(ctx, []string{"Payment is due", "PAYMENT is   due"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, docs[0], docs[1])

	q, err := e.EmbedQuery(ctx, "payment is due")
	require.NoError(t, err)
	assert.Equal(t, docs[0], q)

	var sum float64
	for _, v := range q {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	t.Parallel()
	v, err := New(16).EmbedQuery(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, v, 16)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestBucketMatchesDigestModulo(t *testing.T) {
	t.Parallel()
	e := New(384)
	for _, tok := range []string{"fee", "indemnify", "termination", "ü"} {
		b := e.bucket(tok)
		assert.GreaterOrEqual(t, b, 0)
		assert.Less(t, b, 384)
		assert.Equal(t, b, e.bucket(tok))
	}
}

func TestEmbedDocumentsHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(8).EmbedDocuments(ctx, []string{"a"})
	require.ErrorIs(t, err, context.Canceled)
}
