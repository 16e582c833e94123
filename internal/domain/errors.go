package domain

import "errors"

var (
	// ErrIngestion marks an unreadable or unparseable document.
	ErrIngestion = errors.New("document ingestion failed")

	// ErrEmbeddingUnavailable marks a missing or disabled embedding backend.
	ErrEmbeddingUnavailable = errors.New("embedding backend unavailable")

	// ErrIndexLoad marks a corrupt or missing persisted index.
	ErrIndexLoad = errors.New("index load failed")

	// ErrGeneration marks an LLM call that failed after its retry budget.
	ErrGeneration = errors.New("generation failed")

	// ErrParse marks a generative response line that does not follow the line grammar.
	ErrParse = errors.New("malformed structured line")

	// ErrNoIndex is returned when a question arrives before any document was ingested.
	ErrNoIndex = errors.New("no documents ingested")

	// ErrConfig marks a configuration problem that must stop startup.
	ErrConfig = errors.New("invalid configuration")
)
