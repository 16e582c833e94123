package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contractrag/internal/domain"
	"contractrag/internal/embedding/hashing"
	"contractrag/internal/embedding/tfidf"
)

// keywordEmbedder counts occurrences of a fixed vocabulary.
type keywordEmbedder struct {
	name  string
	vocab []string
	err   error
}

func newKeywordEmbedder() *keywordEmbedder {
	return &keywordEmbedder{name: "keyword", vocab: []string{"fee", "terminate", "indemnify"}}
}

func (e *keywordEmbedder) Name() string   { return e.name }
func (e *keywordEmbedder) Dimension() int { return len(e.vocab) }

func (e *keywordEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedQuery(ctx, t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, len(e.vocab))
	lower := strings.ToLower(text)
	for i, w := range e.vocab {
		v[i] = float32(strings.Count(lower, w))
	}
	return v, nil
}

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", DocumentName: "msa.pdf", Page: 1, Content: "The fee is payable monthly."},
		{ID: "c2", DocumentName: "msa.pdf", Page: 2, Content: "Either party may terminate on notice."},
		{ID: "c3", DocumentName: "msa.pdf", Page: 3, Content: "Customer shall indemnify Provider."},
		{ID: "c4", DocumentName: "msa.pdf", Page: 4, Content: "A late fee applies to overdue invoices."},
	}
}

func ids(results []domain.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestBuildAndSearch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx, err := Build(ctx, sampleChunks(), newKeywordEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 3, idx.Dimension())
	assert.Empty(t, idx.FallbackReason())

	res, err := idx.Search(ctx, "what fee applies", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c4"}, ids(res), "ties keep insertion order")
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)

	res, err = idx.Search(ctx, "terminate", 0)
	require.NoError(t, err)
	assert.Len(t, res, 4)
	assert.Equal(t, "c2", res[0].Chunk.ID)
}

func TestSearchFallsBackToLexical(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	idx, err := Build(ctx, sampleChunks(), newKeywordEmbedder())
	require.NoError(t, err)

	res, err := idx.Search(ctx, "overdue invoices", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c4", res[0].Chunk.ID)
}

func TestBuildSubstitutesHashingOnEmbedderFailure(t *testing.T) {
	t.Parallel()
	emb := newKeywordEmbedder()
	emb.err = errors.New("backend down")
	idx, err := Build(context.Background(), sampleChunks(), emb)
	require.NoError(t, err)
	assert.Equal(t, "hashing", idx.EmbedderName())
	assert.Contains(t, idx.FallbackReason(), "backend down")
	assert.Equal(t, hashing.DefaultDimension, idx.Dimension())

	res, err := idx.Search(context.Background(), "customer shall indemnify provider.", 1)
	require.NoError(t, err)
	assert.Equal(t, "c3", res[0].Chunk.ID)
}

func TestBuildPropagatesCancellation(t *testing.T) {
	t.Parallel()
	emb := newKeywordEmbedder()
	emb.err = context.Canceled
	_, err := Build(context.Background(), sampleChunks(), emb)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()
	idx, err := Build(context.Background(), nil, newKeywordEmbedder())
	require.NoError(t, err)
	res, err := idx.Search(context.Background(), "fee", 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestChunksReturnsCopy(t *testing.T) {
	t.Parallel()
	idx, err := Build(context.Background(), sampleChunks(), newKeywordEmbedder())
	require.NoError(t, err)
	c := idx.Chunks()
	c[0].Content = "changed"
	assert.Equal(t, "The fee is payable monthly.", idx.Chunks()[0].Content)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	emb := newKeywordEmbedder()
	idx, err := Build(ctx, sampleChunks(), emb)
	require.NoError(t, err)
	require.NoError(t, idx.Save(ctx, dir))
	require.NoError(t, idx.Save(ctx, dir), "saving over an existing index")

	loaded, err := Load(ctx, dir, emb)
	require.NoError(t, err)
	assert.Equal(t, idx.Chunks(), loaded.Chunks())
	assert.Equal(t, idx.vectors, loaded.vectors)

	want, _ := idx.Search(ctx, "indemnify", 2)
	got, _ := loaded.Search(ctx, "indemnify", 2)
	assert.Equal(t, want, got)
}

func TestLoadFailuresWrapIndexLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := Load(ctx, t.TempDir(), newKeywordEmbedder())
	require.ErrorIs(t, err, domain.ErrIndexLoad)

	corrupt := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(corrupt, FileName), []byte("not sqlite"), 0o644))
	_, err = Load(ctx, corrupt, newKeywordEmbedder())
	require.ErrorIs(t, err, domain.ErrIndexLoad)

	dir := t.TempDir()
	idx, err := Build(ctx, sampleChunks(), newKeywordEmbedder())
	require.NoError(t, err)
	require.NoError(t, idx.Save(ctx, dir))
	other := newKeywordEmbedder()
	other.name = "other"
	_, err = Load(ctx, dir, other)
	require.ErrorIs(t, err, domain.ErrIndexLoad)
}

func TestLoadHashingIndexIgnoresConfiguredEmbedder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	idx, err := Build(ctx, sampleChunks(), hashing.New(64))
	require.NoError(t, err)
	require.NoError(t, idx.Save(ctx, dir))

	loaded, err := Load(ctx, dir, newKeywordEmbedder())
	require.NoError(t, err)
	assert.Equal(t, "hashing", loaded.EmbedderName())
	assert.Equal(t, 64, loaded.Dimension())
}

func TestLoadRefitsCorpusEmbedder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	idx, err := Build(ctx, sampleChunks(), tfidf.NewEmbedder())
	require.NoError(t, err)
	require.NoError(t, idx.Save(ctx, dir))

	fresh := tfidf.NewEmbedder()
	loaded, err := Load(ctx, dir, fresh)
	require.NoError(t, err)
	assert.False(t, fresh.Fitted(), "the configured embedder is not refit in place")
	res, err := loaded.Search(ctx, "indemnify", 1)
	require.NoError(t, err)
	assert.Equal(t, "c3", res[0].Chunk.ID)
}

func TestSnapshotsKeepTheirOwnVocabulary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	emb := tfidf.NewEmbedder()

	first, err := Build(ctx, sampleChunks(), emb)
	require.NoError(t, err)
	before, err := first.Search(ctx, "indemnify provider", 2)
	require.NoError(t, err)

	_, err = Build(ctx, []domain.Chunk{
		{ID: "o1", DocumentName: "nda.pdf", Page: 1, Content: "Confidential information stays secret."},
		{ID: "o2", DocumentName: "nda.pdf", Page: 2, Content: "Recipients return materials on request."},
	}, emb)
	require.NoError(t, err)

	after, err := first.Search(ctx, "indemnify provider", 2)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "c3", after[0].Chunk.ID)
	assert.False(t, emb.Fitted())
}

func TestVectorCodec(t *testing.T) {
	t.Parallel()
	v := []float32{0, 1.5, -2.25}
	got, err := decodeVector(encodeVector(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = decodeVector([]byte{1})
	require.Error(t, err)
	_, err = decodeVector(encodeVector(v)[:9])
	require.Error(t, err)
}

func TestManagerLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	m := NewManager(dir, nil)
	emb := newKeywordEmbedder()
	assert.Nil(t, m.Current())

	_, err := m.Open(ctx, emb)
	require.ErrorIs(t, err, domain.ErrIndexLoad)

	idx, err := m.Rebuild(ctx, sampleChunks(), emb)
	require.NoError(t, err)
	assert.Same(t, idx, m.Current())
	assert.FileExists(t, filepath.Join(dir, FileName))

	m2 := NewManager(dir, nil)
	loaded, err := m2.Open(ctx, emb)
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())

	require.NoError(t, m.Delete())
	require.NoError(t, m.Delete())
	assert.Nil(t, m.Current())
	assert.NoFileExists(t, filepath.Join(dir, FileName))
}

func TestLoadFinishingAfterDeleteIsDiscarded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	emb := newKeywordEmbedder()
	m := NewManager(dir, nil)
	_, err := m.Rebuild(ctx, sampleChunks(), emb)
	require.NoError(t, err)

	gen := m.generation()
	stale, err := Load(ctx, dir, emb)
	require.NoError(t, err)
	require.NoError(t, m.Delete())

	assert.False(t, m.install(stale, gen))
	assert.Nil(t, m.Current())
	_, err = m.Open(ctx, emb)
	require.ErrorIs(t, err, domain.ErrIndexLoad)
	assert.Nil(t, m.Current())
}

func TestLoadFinishingAfterRebuildKeepsNewerSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	emb := newKeywordEmbedder()
	m := NewManager(dir, nil)
	_, err := m.Rebuild(ctx, sampleChunks()[:2], emb)
	require.NoError(t, err)

	gen := m.generation()
	stale, err := Load(ctx, dir, emb)
	require.NoError(t, err)
	fresh, err := m.Rebuild(ctx, sampleChunks(), emb)
	require.NoError(t, err)

	assert.False(t, m.install(stale, gen))
	assert.Same(t, fresh, m.Current())
}

func TestManagerRebuildSwapsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(t.TempDir(), nil)
	emb := newKeywordEmbedder()

	first, err := m.Rebuild(ctx, sampleChunks()[:1], emb)
	require.NoError(t, err)
	second, err := m.Rebuild(ctx, sampleChunks(), emb)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Len(), "old snapshot is untouched")
	assert.Same(t, second, m.Current())
}

func TestLoadOrRebuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("garbage"), 0o644))
	m := NewManager(dir, nil)

	calls := 0
	source := func(context.Context) ([]domain.Chunk, error) {
		calls++
		return sampleChunks(), nil
	}
	idx, err := m.LoadOrRebuild(ctx, newKeywordEmbedder(), source)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 1, calls)

	idx, err = m.LoadOrRebuild(ctx, newKeywordEmbedder(), source)
	require.NoError(t, err)
	assert.Equal(t, 4, idx.Len())
	assert.Equal(t, 1, calls, "healthy index is loaded, not rebuilt")

	_, err = NewManager(t.TempDir(), nil).LoadOrRebuild(ctx, newKeywordEmbedder(), nil)
	require.ErrorIs(t, err, domain.ErrIndexLoad)
}

func TestManagerConcurrentAccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(t.TempDir(), nil)
	emb := newKeywordEmbedder()
	_, err := m.Rebuild(ctx, sampleChunks(), emb)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			if idx := m.Current(); idx != nil {
				_, _ = idx.Search(ctx, "fee", 2)
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Open(ctx, emb)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Rebuild(ctx, sampleChunks(), emb)
		}()
	}
	wg.Wait()
	require.NotNil(t, m.Current())
	assert.Equal(t, 4, m.Current().Len())
}
