package domain

import "context"

// Embedder converts text into fixed-dimension vectors.
// Implementations must be deterministic for identical input.
type Embedder interface {
	Name() string
	Dimension() int
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LLM generates text from a prompt.
// Available reports whether a real model sits behind the client; callers check it
// before dispatching work that only makes sense with a model.
type LLM interface {
	Name() string
	Available() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// Chunker splits documents into page-tagged chunks suitable for indexing.
type Chunker interface {
	Chunk(documents []Document) []Chunk
}

// Retriever is the read side of a built vector index.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)
	Chunks() []Chunk
}
