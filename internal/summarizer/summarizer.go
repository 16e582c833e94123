// Package summarizer produces short bullet summaries per document.
package summarizer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/llm"
	"contractrag/internal/logging"
	"contractrag/internal/prompts"
	"contractrag/internal/textutil"
)

const (
	maxBullets      = 10
	heuristicBullet = 170
	modelBullet     = 160
	// DefaultBatchSize is the number of chunks per summarization prompt.
	DefaultBatchSize = 6
	// NoText is the summary of a document without extractable text.
	NoText = "- (No text extracted)"
)

var errDegraded = fmt.Errorf("%w: degraded model response", domain.ErrGeneration)

type category struct {
	name     string
	keywords []string
}

// categories is in matching order; the first category with a keyword claims
// the sentence.
var categories = []category{
	{"Parties/Purpose", []string{"party", "parties", "purpose", "provide", "service", "agreement"}},
	{"Term & Renewal", []string{"term", "renew", "expiration", "renewal", "duration"}},
	{"Payment & Fees", []string{"payment", "fee", "invoice", "pricing", "charges", "payable"}},
	{"Data & Privacy", []string{"data", "personal", "privacy", "gdpr", "processing", "controller", "processor"}},
	{"Confidentiality & IP", []string{"confidential", "secret", "ip ", "intellectual", "license", "licence", "ownership"}},
	{"Liability & Indemnity", []string{"liability", "indemn", "limit", "cap", "damages"}},
	{"Termination", []string{"terminate", "termination", "notice", "breach", "suspend"}},
	{"Warranties & Disclaimers", []string{"warrant", "disclaim", "as is"}},
	{"Dispute / Law", []string{"jurisdiction", "govern", "law", "dispute", "arbitr", "court"}},
	{"Risks / Unusual", []string{"auto-renew", "penalt", "liquidated", "sole discretion", "unilateral"}},
}

// displayOrder is the order bullets are printed in.
var displayOrder = []string{
	"Parties/Purpose", "Term & Renewal", "Payment & Fees", "Termination",
	"Data & Privacy", "Confidentiality & IP", "Liability & Indemnity",
	"Warranties & Disclaimers", "Dispute / Law", "Risks / Unusual",
}

// lineCategories maps model bullet lines back to categories.
var lineCategories = []struct{ key, category string }{
	{"parties", "Parties/Purpose"}, {"purpose", "Parties/Purpose"},
	{"term", "Term & Renewal"}, {"renew", "Term & Renewal"},
	{"payment", "Payment & Fees"}, {"fee", "Payment & Fees"}, {"invoice", "Payment & Fees"},
	{"data", "Data & Privacy"}, {"privacy", "Data & Privacy"},
	{"confidential", "Confidentiality & IP"}, {"ip ", "Confidentiality & IP"}, {"intellectual", "Confidentiality & IP"},
	{"indemn", "Liability & Indemnity"}, {"liability", "Liability & Indemnity"},
	{"terminate", "Termination"}, {"notice", "Termination"},
	{"warrant", "Warranties & Disclaimers"}, {"disclaim", "Warranties & Disclaimers"},
	{"jurisdiction", "Dispute / Law"}, {"law", "Dispute / Law"}, {"arbitr", "Dispute / Law"},
	{"auto-renew", "Risks / Unusual"}, {"penalt", "Risks / Unusual"}, {"sole discretion", "Risks / Unusual"},
}

const consolidatePrompt = "You will be given bullet lists extracted from a legal agreement. " +
	"Consolidate them into 5-10 NEW, UNIQUE, plain-language bullets (each starting with '- '). " +
	"Focus on: parties & purpose, key obligations, payment & fees, term & renewal/termination, " +
	"liability & indemnity, confidentiality/IP, jurisdiction/dispute, unusual penalties or auto-renewal traps. " +
	"Avoid repetition; no legalese; <=25 words per bullet.\n\n"

var articles = regexp.MustCompile(`(?i)\b(the|a|an)\b\s+`)

var allKeywords = func() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range categories {
		for _, k := range c.keywords {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}()

// Heuristic summarizes text blocks into at most ten category bullets, one
// best sentence per category.
func Heuristic(blocks []string) string {
	if len(blocks) == 0 {
		return NoText
	}
	joined := strings.Join(blocks, " \n")
	type scored struct {
		score int
		text  string
	}
	var candidates []scored
	for _, s := range textutil.SplitSentences(joined) {
		n := textutil.Len(s)
		if n <= 15 || n >= 300 {
			continue
		}
		low := strings.ToLower(s)
		score := 0
		for _, k := range allKeywords {
			if strings.Contains(low, k) {
				score++
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{score, strings.TrimSpace(s)})
		}
	}
	slices.SortStableFunc(candidates, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(textutil.Len(a.text), textutil.Len(b.text))
	})

	best := map[string]string{}
	for _, c := range candidates {
		low := strings.ToLower(c.text)
		for _, cat := range categories {
			if containsAny(low, cat.keywords) {
				if _, ok := best[cat.name]; !ok {
					best[cat.name] = c.text
				}
				break
			}
		}
		if len(best) >= maxBullets {
			break
		}
	}

	var bullets []string
	for _, name := range displayOrder {
		txt, ok := best[name]
		if !ok {
			continue
		}
		txt = articles.ReplaceAllString(txt, "")
		if textutil.Len(txt) > heuristicBullet {
			txt = textutil.Truncate(txt, heuristicBullet-3) + "..."
		}
		bullets = append(bullets, "- "+name+": "+strings.TrimRight(txt, ". ")+".")
	}
	if len(bullets) == 0 {
		for _, s := range newFrequencyRanker().top(joined, 8) {
			bullets = append(bullets, "- "+textutil.Truncate(s, heuristicBullet))
		}
	}
	if len(bullets) == 0 {
		return NoText
	}
	return strings.Join(bullets[:min(maxBullets, len(bullets))], "\n")
}

// Summarizer builds per-document summaries, using a model when one is
// available.
type Summarizer struct {
	llm     domain.LLM
	prompts *prompts.Store
	logger  *slog.Logger
	batch   int
}

// New creates a Summarizer. llm and store may be nil.
func New(llm domain.LLM, store *prompts.Store, logger *slog.Logger) *Summarizer {
	return &Summarizer{llm: llm, prompts: store, logger: logging.OrDiscard(logger), batch: DefaultBatchSize}
}

// Summarize returns bullet text keyed by document name.
func (s *Summarizer) Summarize(ctx context.Context, docs []domain.Document, chunks []domain.Chunk) map[string]string {
	byDoc := map[string][]string{}
	for _, c := range chunks {
		byDoc[c.DocumentName] = append(byDoc[c.DocumentName], c.Content)
	}
	useModel := s.llm != nil && s.llm.Available() && s.prompts != nil
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		parts := byDoc[d.Name]
		if useModel && len(parts) > 0 {
			if bullets := s.generate(ctx, parts); bullets != "" {
				out[d.Name] = bullets
				continue
			}
			s.logger.Warn("model summary empty, using heuristics", "document", d.Name)
		}
		out[d.Name] = Heuristic(parts)
	}
	return out
}

func (s *Summarizer) generate(ctx context.Context, parts []string) string {
	var partial []string
	for i := 0; i < len(parts); i += s.batch {
		batch := parts[i:min(i+s.batch, len(parts))]
		prompt, err := s.prompts.Render(prompts.Summarize, map[string]string{"text": strings.Join(batch, "\n\n")})
		if err != nil {
			s.logger.Error("rendering summary prompt", "error", err)
			return ""
		}
		resp, err := s.llm.Generate(ctx, prompt)
		if err == nil && llm.IsDegraded(resp) {
			err = errDegraded
		}
		if err != nil {
			s.logger.Warn("summary batch failed", "batch_start", i, "error", err)
			continue
		}
		partial = append(partial, strings.TrimSpace(resp))
	}
	if len(partial) == 0 {
		return ""
	}
	overall, err := s.llm.Generate(ctx, consolidatePrompt+strings.Join(partial, "\n"))
	if err == nil && llm.IsDegraded(overall) {
		err = errDegraded
	}
	if err != nil {
		s.logger.Warn("summary consolidation failed", "error", err)
		return ""
	}
	return consolidate(overall)
}

// consolidate normalizes model bullets, regrouping them by category when
// they map cleanly.
func consolidate(text string) string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.Trim(strings.TrimSpace(l), "- "); l != "" {
			lines = append(lines, l)
		}
	}
	best := map[string]string{}
	for _, l := range lines {
		low := strings.ToLower(l)
		for _, lc := range lineCategories {
			if strings.Contains(low, lc.key) {
				if _, ok := best[lc.category]; !ok {
					best[lc.category] = l
				}
				break
			}
		}
	}
	if len(best) > 0 && len(best) <= maxBullets {
		lines = lines[:0]
		for _, name := range displayOrder {
			if l, ok := best[name]; ok {
				lines = append(lines, name+": "+l)
			}
		}
	}
	var out []string
	seen := map[string]struct{}{}
	for _, l := range lines {
		key := strings.ToLower(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, "- "+textutil.Truncate(l, modelBullet))
		if len(out) >= maxBullets {
			break
		}
	}
	return strings.Join(out, "\n")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
