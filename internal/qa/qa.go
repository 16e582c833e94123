// Package qa answers questions about ingested contracts with grounded,
// cited sentences.
package qa

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sort"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/llm"
	"contractrag/internal/logging"
	"contractrag/internal/prompts"
	"contractrag/internal/textutil"
)

// NoMatch is the answer given when no sentence is grounded in the question.
const NoMatch = "No grounded sentence match found for the question tokens."

const (
	// DefaultTopK is the number of chunks retrieved per question.
	DefaultTopK = 5

	minCandidates    = 5
	minSentence      = 12
	maxSentence      = 400
	longSentence     = 250
	maxUsed          = 5
	maxAnswer        = 500
	citationLen      = 300
	contextSnippet   = 280
	minModelAnswer   = 25
	confidenceFactor = 12
)

var (
	questionToken = regexp.MustCompile(`[a-zA-Z]{3,}`)

	stopwords = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "to": {}, "of": {}, "and": {}, "or": {}, "in": {},
		"on": {}, "for": {}, "with": {}, "does": {}, "do": {}, "shall": {}, "may": {}, "which": {}, "how": {}, "please": {},
	}

	suffixes = []string{"ing", "tion", "ions", "ed", "es", "ly", "al", "ment"}

	synonyms = map[string][]string{
		"saas":            {"software as a service"},
		"terminate":       {"termination", "end"},
		"payment":         {"fee", "fees", "charge"},
		"confidentiality": {"confidential"},
		"liability":       {"liable"},
		"indemnity":       {"indemnify", "indemnification"},
	}

	boosters = []struct {
		key   string
		bonus int
	}{
		{"terminate", 3}, {"renew", 2}, {"payment", 3}, {"fee", 2},
		{"confidential", 2}, {"indemn", 3}, {"liabil", 3}, {"jurisdiction", 2},
	}
)

// Engine answers questions over one immutable index snapshot.
type Engine struct {
	retriever domain.Retriever
	llm       domain.LLM
	prompts   *prompts.Store
	logger    *slog.Logger
	topK      int
}

// Option configures an Engine.
type Option func(*Engine)

// WithTopK sets the number of chunks retrieved per question.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = logging.OrDiscard(l) }
}

// Build returns an Engine over retriever, or nil when there is no index yet.
// A nil llm behaves like a model that is not available.
func Build(retriever domain.Retriever, model domain.LLM, store *prompts.Store, opts ...Option) *Engine {
	if retriever == nil {
		return nil
	}
	if model == nil {
		model = llm.Stub{}
	}
	if store == nil {
		store = prompts.Default()
	}
	e := &Engine{retriever: retriever, llm: model, prompts: store, logger: logging.Discard(), topK: DefaultTopK}
	for _, o := range opts {
		o(e)
	}
	return e
}

type candidate struct {
	page     int
	sentence string
}

type scoredSentence struct {
	score int
	candidate
}

// Ask answers question. It never fails: retrieval and generation problems
// degrade to NoMatch.
func (e *Engine) Ask(ctx context.Context, question string) domain.QAResult {
	if term, ok := definitionTerm(question); ok {
		if res, ok := e.define(ctx, term); ok {
			return res
		}
	}

	hits, err := e.retriever.Search(ctx, question, e.topK)
	if err != nil {
		e.logger.Warn("retrieval failed", "error", err)
	}
	tokens := queryTokens(question)

	chunks := make([]domain.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	candidates := collectSentences(chunks)
	if len(candidates) < minCandidates {
		candidates = collectSentences(e.retriever.Chunks())
	}

	var scored []scoredSentence
	for _, c := range candidates {
		if sc := scoreSentence(c.sentence, tokens); sc > 0 {
			scored = append(scored, scoredSentence{sc, c})
		}
	}
	if len(scored) == 0 {
		return e.generateFallback(ctx, question, chunks)
	}
	slices.SortStableFunc(scored, func(a, b scoredSentence) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(textutil.Len(a.sentence), textutil.Len(b.sentence))
	})
	top := scored[:min(maxUsed, len(scored))]

	var (
		used      []string
		citations []domain.Citation
		total     int
	)
	seen := make(map[string]struct{})
	for _, s := range top {
		total += s.score
		first, _, _ := strings.Cut(s.sentence, "; ")
		first = strings.TrimSpace(first)
		key := strings.ToLower(first)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		used = append(used, first)
		citations = append(citations, domain.Citation{Page: s.page, Snippet: textutil.Truncate(s.sentence, citationLen)})
	}

	answer := textutil.Truncate(strings.Join(orderDefinitional(used), "; "), maxAnswer)
	if answer == "" {
		answer = NoMatch
	}
	conf := min(100, float64(total)/float64(len(top))*confidenceFactor)
	return domain.QAResult{Answer: highlight(answer, tokens), Citations: citations, Confidence: &conf}
}

// generateFallback hands the raw retrieved chunks to the model. Without a
// usable model answer the result is NoMatch with no citations.
func (e *Engine) generateFallback(ctx context.Context, question string, chunks []domain.Chunk) domain.QAResult {
	if !e.llm.Available() {
		return domain.QAResult{Answer: NoMatch}
	}
	blocks := make([]string, len(chunks))
	citations := make([]domain.Citation, len(chunks))
	for i, c := range chunks {
		snippet := strings.ReplaceAll(textutil.Truncate(c.Content, contextSnippet), "\n", " ")
		blocks[i] = fmt.Sprintf("[Page %d] %s", c.Page, snippet)
		citations[i] = domain.Citation{Page: c.Page, Snippet: snippet}
	}
	prompt, err := e.prompts.Render(prompts.RagQA, map[string]string{
		"context":  strings.Join(blocks, "\n\n"),
		"question": question,
	})
	if err != nil {
		e.logger.Error("rendering qa prompt", "error", err)
		return domain.QAResult{Answer: NoMatch}
	}
	answer, err := e.llm.Generate(ctx, prompt)
	if err != nil {
		e.logger.Warn("qa generation failed", "error", err)
		return domain.QAResult{Answer: NoMatch}
	}
	answer = strings.TrimSpace(answer)
	if llm.IsDegraded(answer) || textutil.Len(answer) < minModelAnswer {
		return domain.QAResult{Answer: NoMatch}
	}
	return domain.QAResult{Answer: answer, Citations: citations}
}

func collectSentences(chunks []domain.Chunk) []candidate {
	var out []candidate
	for _, ch := range chunks {
		for _, s := range textutil.SplitSentences(ch.Content) {
			s = strings.TrimSpace(s)
			if n := textutil.Len(s); n >= minSentence && n <= maxSentence {
				out = append(out, candidate{ch.Page, s})
			}
		}
	}
	return out
}

type token struct {
	raw  string
	stem string
}

func queryTokens(question string) []token {
	var out []token
	for _, t := range questionToken.FindAllString(strings.ToLower(question), -1) {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, token{raw: t, stem: stem(t)})
	}
	return out
}

func stem(t string) string {
	for _, suf := range suffixes {
		if strings.HasSuffix(t, suf) && len(t) > len(suf)+2 {
			return t[:len(t)-len(suf)]
		}
	}
	return t
}

func (t token) synonyms() []string {
	if s, ok := synonyms[t.stem]; ok {
		return s
	}
	return synonyms[t.raw]
}

// scoreSentence rewards stemmed token hits (+3) or synonym hits (+2). Domain
// boosters and the definitional bonus apply only once the sentence matched
// the question at all; long sentences lose 2.
func scoreSentence(s string, tokens []token) int {
	low := strings.ToLower(s)
	score := 0
	matched := false
	tokenHit := false
	for _, t := range tokens {
		if strings.Contains(low, t.stem) {
			score += 3
			matched, tokenHit = true, true
			continue
		}
		for _, syn := range t.synonyms() {
			if strings.Contains(low, syn) {
				score += 2
				matched = true
				break
			}
		}
	}
	if !matched {
		return 0
	}
	for _, b := range boosters {
		if strings.Contains(low, b.key) {
			score += b.bonus
		}
	}
	if tokenHit && definitional(low, tokens) {
		score += 4
	}
	if textutil.Len(s) > longSentence {
		score -= 2
	}
	return score
}

func definitional(low string, tokens []token) bool {
	if strings.Contains(low, " means ") || strings.Contains(low, " refers to ") {
		return true
	}
	for _, t := range tokens {
		if strings.HasPrefix(low, t.stem+" ") {
			return true
		}
	}
	return false
}

// orderDefinitional moves sentences phrased as definitions to the front.
func orderDefinitional(sentences []string) []string {
	var defs, rest []string
	for _, s := range sentences {
		low := strings.ToLower(s)
		if strings.Contains(low, " means ") || strings.Contains(low, " refers to ") {
			defs = append(defs, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(defs, rest...)
}

// highlight bolds whole-word occurrences of each distinct token, longest first.
func highlight(answer string, tokens []token) string {
	distinct := make(map[string]struct{}, len(tokens))
	var words []string
	for _, t := range tokens {
		if _, ok := distinct[t.stem]; ok || len(t.stem) < 3 {
			continue
		}
		distinct[t.stem] = struct{}{}
		words = append(words, t.stem)
	}
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })
	for _, w := range words {
		re := regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(w) + `)\b`)
		answer = re.ReplaceAllString(answer, "**${1}**")
	}
	return answer
}
