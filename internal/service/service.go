// Package service wires ingestion, indexing, analysis and question answering
// into one process-wide object.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"contractrag/internal/analysis"
	"contractrag/internal/chunker"
	"contractrag/internal/clauses"
	"contractrag/internal/config"
	"contractrag/internal/domain"
	"contractrag/internal/ingest"
	"contractrag/internal/logging"
	"contractrag/internal/prompts"
	"contractrag/internal/qa"
	"contractrag/internal/redflags"
	"contractrag/internal/summarizer"
	"contractrag/internal/textutil"
	"contractrag/internal/vectorstore"
)

// Analysis is the result of the latest ingestion.
type Analysis struct {
	RunID      string
	CreatedAt  time.Time
	Embedder   string
	Model      string
	Documents  []domain.Document
	ChunkCount int
	Summaries  map[string]string
	Clauses    []domain.ClauseResult
	RedFlags   []domain.RedFlagResult
	Risk       analysis.Risk
	Entities   analysis.Entities
}

// QARecord is one answered question.
type QARecord struct {
	ID       string
	Question string
	Result   domain.QAResult
	AskedAt  time.Time
}

// Service is safe for concurrent use. Questions always run against a fully
// built index snapshot.
type Service struct {
	cfg        *config.AppConfig
	logger     *slog.Logger
	loader     *ingest.Loader
	chunker    domain.Chunker
	embedder   domain.Embedder
	llm        domain.LLM
	prompts    *prompts.Store
	index      *vectorstore.Manager
	clauses    *clauses.Extractor
	flags      *redflags.Detector
	summarizer *summarizer.Summarizer
	now        func() time.Time

	mu       sync.RWMutex
	analysis *Analysis
	history  []QARecord
}

// New assembles a Service. Invalid prompt overrides or risk rules are
// configuration errors.
func New(cfg *config.AppConfig, embedder domain.Embedder, llm domain.LLM, logger *slog.Logger) (*Service, error) {
	logger = logging.OrDiscard(logger)
	store, err := prompts.NewStore(cfg.Prompts.Dir)
	if err != nil {
		return nil, err
	}
	flags, err := redflags.New(cfg.Analysis, llm, store, logger)
	if err != nil {
		return nil, err
	}
	extractor := clauses.New(llm, store, clauses.WithBatchSize(cfg.Analysis.ClauseBatch), clauses.WithLogger(logger))
	return &Service{
		cfg:        cfg,
		logger:     logger,
		loader:     ingest.NewLoader(logger),
		chunker:    chunker.New(chunker.WithChunkSize(cfg.Chunker.ChunkSize), chunker.WithOverlap(cfg.Chunker.ChunkOverlap)),
		embedder:   embedder,
		llm:        llm,
		prompts:    store,
		index:      vectorstore.NewManager(cfg.Index.WorkspaceDir, logger),
		clauses:    extractor,
		flags:      flags,
		summarizer: summarizer.New(llm, store, logger),
		now:        time.Now,
	}, nil
}

// Ingest replaces the corpus with sources: it rebuilds the index and reruns
// clause, red-flag and summary analysis. Unreadable sources become empty
// documents.
func (s *Service) Ingest(ctx context.Context, sources []ingest.Source) (*Analysis, error) {
	docs := s.loader.Load(ctx, sources)
	chunks := s.chunker.Chunk(docs)
	idx, err := s.index.Rebuild(ctx, chunks, s.embedder)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}

	found := s.clauses.Extract(ctx, chunks, clauses.ModeAuto)
	flags := s.flags.Detect(ctx, found, s.cfg.Analysis.ConfidenceThreshold)
	summaries := s.summarizer.Summarize(ctx, docs, chunks)

	var text strings.Builder
	totalChars := 0
	for _, d := range docs {
		totalChars += textutil.Len(d.FullText)
		text.WriteString(d.FullText)
		text.WriteString("\n")
	}

	a := &Analysis{
		RunID:      uuid.NewString(),
		CreatedAt:  s.now().UTC(),
		Embedder:   idx.EmbedderName(),
		Model:      s.llm.Name(),
		Documents:  docs,
		ChunkCount: len(chunks),
		Summaries:  summaries,
		Clauses:    found,
		RedFlags:   flags,
		Risk:       analysis.RiskIndex(flags, totalChars),
		Entities:   analysis.ExtractEntities(text.String()),
	}
	s.mu.Lock()
	s.analysis = a
	s.history = nil
	s.mu.Unlock()

	s.logger.Info("ingestion complete",
		"run_id", a.RunID,
		"documents", len(docs),
		"chunks", len(chunks),
		"clauses", len(found),
		"red_flags", len(flags),
		"risk", a.Risk.Level,
	)
	return a, nil
}

// Open loads the persisted index so questions can be answered without
// re-ingesting. When the index is missing or unreadable and sources are
// given, it is rebuilt from them.
func (s *Service) Open(ctx context.Context, sources []ingest.Source) error {
	var source vectorstore.ChunkSource
	if len(sources) > 0 {
		source = func(ctx context.Context) ([]domain.Chunk, error) {
			return s.chunker.Chunk(s.loader.Load(ctx, sources)), nil
		}
	}
	_, err := s.index.LoadOrRebuild(ctx, s.embedder, source)
	return err
}

// Ask answers a question against the current index snapshot. It returns
// domain.ErrNoIndex before anything has been ingested or opened.
func (s *Service) Ask(ctx context.Context, question string) (domain.QAResult, error) {
	idx := s.index.Current()
	if idx == nil {
		return domain.QAResult{}, domain.ErrNoIndex
	}
	engine := qa.Build(idx, s.llm, s.prompts, qa.WithTopK(s.cfg.Index.TopK), qa.WithLogger(s.logger))
	res := engine.Ask(ctx, question)
	if res.Confidence == nil {
		res.Confidence = s.similarityConfidence(ctx, idx, question, res.Answer)
	}

	rec := QARecord{ID: uuid.NewString(), Question: question, Result: res, AskedAt: s.now().UTC()}
	s.mu.Lock()
	s.history = append(s.history, rec)
	s.mu.Unlock()
	s.logger.Debug("question answered", "id", rec.ID, "citations", len(res.Citations))
	return res, nil
}

func (s *Service) similarityConfidence(ctx context.Context, idx *vectorstore.Index, question, answer string) *float64 {
	var sims []float64
	if hits, err := idx.Search(ctx, question, s.cfg.Index.TopK); err == nil {
		for _, h := range hits {
			sims = append(sims, h.Score)
		}
	}
	c := analysis.SimilarityConfidence(sims, answer) * 100
	return &c
}

// Analysis returns a copy of the latest ingestion result, or nil.
func (s *Service) Analysis() *Analysis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.analysis == nil {
		return nil
	}
	a := *s.analysis
	a.Documents = slices.Clone(a.Documents)
	a.Clauses = slices.Clone(a.Clauses)
	a.RedFlags = slices.Clone(a.RedFlags)
	a.Summaries = maps.Clone(a.Summaries)
	return &a
}

// History returns the questions answered since the last ingestion.
func (s *Service) History() []QARecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.history)
}

// Reset deletes the persisted index and forgets all results.
func (s *Service) Reset() error {
	if err := s.index.Delete(); err != nil {
		return err
	}
	s.mu.Lock()
	s.analysis = nil
	s.history = nil
	s.mu.Unlock()
	return nil
}

// Model returns the LLM in use.
func (s *Service) Model() domain.LLM { return s.llm }
