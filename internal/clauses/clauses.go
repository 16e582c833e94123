// Package clauses finds categorized contract provisions with keyword evidence
// or, when a model is available, with a structured generation prompt.
package clauses

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"contractrag/internal/decode"
	"contractrag/internal/domain"
	"contractrag/internal/llm"
	"contractrag/internal/logging"
	"contractrag/internal/prompts"
	"contractrag/internal/textutil"
)

// DefaultBatchSize is the number of chunks sent per generation prompt.
const DefaultBatchSize = 10

var errDegraded = fmt.Errorf("%w: degraded model response", domain.ErrGeneration)

// Mode selects the extraction strategy.
type Mode int

const (
	// ModeAuto uses the model when it reports itself available.
	ModeAuto Mode = iota
	ModeHeuristic
	ModeGenerative
)

func (m Mode) String() string {
	switch m {
	case ModeHeuristic:
		return "heuristic"
	case ModeGenerative:
		return "generative"
	default:
		return "auto"
	}
}

// Extractor runs clause extraction.
type Extractor struct {
	llm     domain.LLM
	prompts *prompts.Store
	logger  *slog.Logger
	batch   int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithBatchSize sets the generative batch size.
func WithBatchSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.batch = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = logging.OrDiscard(l) }
}

// New creates an Extractor. A nil llm or store forces heuristic mode.
func New(llm domain.LLM, store *prompts.Store, opts ...Option) *Extractor {
	e := &Extractor{llm: llm, prompts: store, logger: logging.Discard(), batch: DefaultBatchSize}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns deduplicated clauses sorted by importance, page and type.
// It never fails; generation problems degrade to the heuristic pass.
func (e *Extractor) Extract(ctx context.Context, chunks []domain.Chunk, mode Mode) []domain.ClauseResult {
	if mode == ModeAuto {
		mode = ModeHeuristic
		if e.llm != nil && e.llm.Available() {
			mode = ModeGenerative
		}
	}
	if mode == ModeGenerative && (e.llm == nil || e.prompts == nil) {
		mode = ModeHeuristic
	}

	var raw []domain.ClauseResult
	if mode == ModeGenerative {
		var failed bool
		raw, failed = e.generate(ctx, chunks)
		if len(raw) == 0 && failed {
			e.logger.Warn("generative clause extraction failed, using heuristics")
			raw = Heuristic(chunks)
		}
	} else {
		raw = Heuristic(chunks)
	}
	out := Finalize(raw)
	e.logger.Debug("clauses extracted", "mode", mode, "raw", len(raw), "kept", len(out))
	return out
}

func (e *Extractor) generate(ctx context.Context, chunks []domain.Chunk) ([]domain.ClauseResult, bool) {
	targets := strings.Join(TargetClauses(), ", ")
	var out []domain.ClauseResult
	failed := false
	for start := 0; start < len(chunks); start += e.batch {
		batch := chunks[start:min(start+e.batch, len(chunks))]
		parts := make([]string, len(batch))
		for i, c := range batch {
			parts[i] = "[Page " + strconv.Itoa(c.Page) + "]\n" + c.Content
		}
		prompt, err := e.prompts.Render(prompts.Clauses, map[string]string{
			"text":           strings.Join(parts, "\n\n"),
			"target_clauses": targets,
		})
		if err != nil {
			e.logger.Error("rendering clause prompt", "error", err)
			return out, true
		}
		resp, err := e.llm.Generate(ctx, prompt)
		if err == nil && llm.IsDegraded(resp) {
			err = errDegraded
		}
		if err != nil {
			e.logger.Warn("clause batch failed", "batch_start", start, "error", err)
			failed = true
			continue
		}
		pages := make(map[int]struct{}, len(batch))
		for _, c := range batch {
			pages[c.Page] = struct{}{}
		}
		got, dropped := decode.Clauses(resp)
		for _, c := range got {
			if _, ok := pages[c.Page]; !ok {
				dropped++
				continue
			}
			c.Importance = DefaultImportance(c.ClauseType)
			out = append(out, c)
		}
		if dropped > 0 {
			e.logger.Debug("dropped clause lines", "count", dropped)
		}
	}
	return out, failed
}

// Finalize deduplicates by (type, page, snippet prefix), keeps one clause per
// (type, page) preferring a shorter explanation that is not contained in the
// current one, and sorts by importance, page and type.
func Finalize(results []domain.ClauseResult) []domain.ClauseResult {
	type dedupKey struct {
		clauseType string
		page       int
		prefix     string
	}
	seen := make(map[dedupKey]struct{}, len(results))
	merged := make(map[groupKey]int)
	var out []domain.ClauseResult
	for _, r := range results {
		dk := dedupKey{r.ClauseType, r.Page, strings.ToLower(textutil.Truncate(r.Snippet, 60))}
		if _, ok := seen[dk]; ok {
			continue
		}
		seen[dk] = struct{}{}

		gk := groupKey{r.ClauseType, r.Page}
		i, ok := merged[gk]
		if !ok {
			merged[gk] = len(out)
			out = append(out, r)
			continue
		}
		cur := out[i]
		if textutil.Len(r.Explanation) < textutil.Len(cur.Explanation) &&
			!strings.Contains(strings.ToLower(cur.Explanation), strings.ToLower(r.Explanation)) {
			out[i] = r
		}
	}
	slices.SortStableFunc(out, func(a, b domain.ClauseResult) int {
		if c := cmp.Compare(a.Importance.Rank(), b.Importance.Rank()); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Page, b.Page); c != 0 {
			return c
		}
		return cmp.Compare(a.ClauseType, b.ClauseType)
	})
	return out
}
