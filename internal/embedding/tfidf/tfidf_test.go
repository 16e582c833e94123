package tfidf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/domain"
)

func TestQueryBeforeFit(t *testing.T) {
	t.Parallel()
	e := NewEmbedder()
	_, err := e.EmbedQuery(context.Background(), "fees")
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	assert.Zero(t, e.Dimension())
}

func TestFitAndProject(t *testing.T) {
	t.Parallel()
	e := NewEmbedder()
	ctx := context.Background()
	corpus := []string{
		"The customer pays fees monthly.",
		"Either party may terminate the agreement.",
		"Fees are invoiced in advance.",
	}
	vecs, err := e.EmbedDocuments(ctx, corpus)
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	dim := e.Dimension()
	assert.Positive(t, dim)
	for _, v := range vecs {
		assert.Len(t, v, dim)
	}

	q, err := e.EmbedQuery(ctx, "fees")
	require.NoError(t, err)
	dot := func(a, b []float32) float32 {
		var s float32
		for i := range a {
			s += a[i] * b[i]
		}
		return s
	}
	assert.Greater(t, dot(q, vecs[0]), dot(q, vecs[1]))
	assert.Greater(t, dot(q, vecs[2]), dot(q, vecs[1]))
}

func TestEmptyCorpus(t *testing.T) {
	t.Parallel()
	_, err := NewEmbedder().EmbedDocuments(context.Background(), nil)
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
	_, err = NewEmbedder().EmbedDocuments(context.Background(), []string{"the and of"})
	require.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestQueryWithUnknownTokensIsZero(t *testing.T) {
	t.Parallel()
	e := NewEmbedder()
	_, err := e.EmbedDocuments(context.Background(), []string{"payment terms"})
	require.NoError(t, err)
	q, err := e.EmbedQuery(context.Background(), "zebra")
	require.NoError(t, err)
	for _, x := range q {
		assert.Zero(t, x)
	}
}

func TestFitted(t *testing.T) {
	t.Parallel()
	e := NewEmbedder()
	assert.False(t, e.Fitted())
	_, err := e.EmbedDocuments(context.Background(), []string{"fees apply"})
	require.NoError(t, err)
	assert.True(t, e.Fitted())
}

func TestForkIsIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := NewEmbedder()
	_, err := e.EmbedDocuments(ctx, []string{"fees apply monthly"})
	require.NoError(t, err)

	fork := e.Fork()
	_, err = fork.EmbedDocuments(ctx, []string{"termination notice period", "indemnity cap"})
	require.NoError(t, err)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, 5, fork.Dimension())
}
