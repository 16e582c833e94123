// Package redflags scores extracted clauses for risk.
package redflags

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"contractrag/internal/config"
	"contractrag/internal/decode"
	"contractrag/internal/domain"
	"contractrag/internal/llm"
	"contractrag/internal/logging"
	"contractrag/internal/prompts"
	"contractrag/internal/textutil"
)

const (
	maxReason   = 300
	maxSnippet  = 400
	defaultBase = 30
	defaultCap  = 95
	// DefaultBatchSize is the number of clauses sent per generation prompt.
	DefaultBatchSize = 12
)

// Detector flags risky clauses.
type Detector struct {
	rules   []Rule
	base    float64
	ceiling float64
	batch   int
	llm     domain.LLM
	prompts *prompts.Store
	logger  *slog.Logger
}

// New builds a Detector from the analysis settings. Rules default to
// DefaultRules when none are configured. llm and store may be nil, which
// restricts the detector to heuristic scoring.
func New(cfg config.AnalysisConfig, llm domain.LLM, store *prompts.Store, logger *slog.Logger) (*Detector, error) {
	specs := cfg.RiskRules
	if len(specs) == 0 {
		specs = DefaultRules()
	}
	rules, err := CompileRules(specs)
	if err != nil {
		return nil, err
	}
	d := &Detector{
		rules:   rules,
		base:    cfg.BaseScore,
		ceiling: cfg.HeuristicCap,
		batch:   cfg.FlagBatch,
		llm:     llm,
		prompts: store,
		logger:  logging.OrDiscard(logger),
	}
	if d.base <= 0 {
		d.base = defaultBase
	}
	if d.ceiling <= 0 {
		d.ceiling = defaultCap
	}
	if d.batch <= 0 {
		d.batch = DefaultBatchSize
	}
	return d, nil
}

// Detect returns flags with confidence at or above threshold. When nothing
// qualifies but clauses exist, the broadened pass supplies its findings
// instead, without threshold filtering. Every confidence lies in [0,100].
func (d *Detector) Detect(ctx context.Context, clauses []domain.ClauseResult, threshold float64) []domain.RedFlagResult {
	var results []domain.RedFlagResult
	if d.llm != nil && d.llm.Available() && d.prompts != nil {
		results = d.generate(ctx, clauses, threshold)
	} else {
		results = d.Heuristic(clauses, threshold)
	}

	filtered := make([]domain.RedFlagResult, 0, len(results))
	for _, r := range results {
		r.Confidence = clamp(r.Confidence)
		if r.Confidence >= threshold {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 && len(clauses) > 0 {
		if broad := Broadened(clauses); len(broad) > 0 {
			d.logger.Debug("using broadened red flags", "count", len(broad))
			return broad
		}
	}
	return filtered
}

// Score returns a clause's rule score and the labels of matched rules.
func (d *Detector) Score(c domain.ClauseResult) (float64, []string) {
	score := d.base
	var labels []string
	for _, r := range d.rules {
		if r.Pattern.MatchString(c.Snippet) {
			score += r.Delta
			labels = append(labels, r.Label)
		}
	}
	return score, labels
}

// Heuristic scores clauses with the configured rules only.
func (d *Detector) Heuristic(clauses []domain.ClauseResult, threshold float64) []domain.RedFlagResult {
	var out []domain.RedFlagResult
	for _, c := range clauses {
		score, labels := d.Score(c)
		if score < threshold {
			continue
		}
		reason := strings.Join(labels, "; ")
		if reason == "" {
			reason = "Potential " + strings.ToLower(c.ClauseType) + " exposure"
		}
		out = append(out, domain.RedFlagResult{
			RiskType:   c.ClauseType,
			Reason:     textutil.Truncate(reason, maxReason),
			Snippet:    textutil.Truncate(c.Snippet, maxSnippet),
			Page:       c.Page,
			Confidence: min(score, d.ceiling),
		})
	}
	return out
}

// generate sends pre-scored clauses to the model. A batch whose call fails is
// scored heuristically instead.
func (d *Detector) generate(ctx context.Context, clauses []domain.ClauseResult, threshold float64) []domain.RedFlagResult {
	var out []domain.RedFlagResult
	for start := 0; start < len(clauses); start += d.batch {
		batch := clauses[start:min(start+d.batch, len(clauses))]
		lines := make([]string, len(batch))
		for i, c := range batch {
			score, _ := d.Score(c)
			lines[i] = fmt.Sprintf("CLAUSE:%s|SNIPPET:%s|PAGE:%d|BASE:%s",
				c.ClauseType, c.Snippet, c.Page, strconv.FormatFloat(score, 'f', -1, 64))
		}
		resp, err := d.render(ctx, strings.Join(lines, "\n"))
		if err != nil {
			d.logger.Warn("red flag batch failed, scoring heuristically", "batch_start", start, "error", err)
			out = append(out, d.Heuristic(batch, threshold)...)
			continue
		}
		pages := make(map[int]struct{}, len(batch))
		for _, c := range batch {
			pages[c.Page] = struct{}{}
		}
		risks, dropped := decode.Risks(resp)
		for _, r := range risks {
			if _, ok := pages[r.Page]; !ok {
				dropped++
				continue
			}
			out = append(out, domain.RedFlagResult{
				RiskType:   r.RiskType,
				Reason:     r.Reason,
				Snippet:    r.Snippet,
				Page:       r.Page,
				Confidence: float64(r.Score),
			})
		}
		if dropped > 0 {
			d.logger.Debug("dropped risk lines", "count", dropped)
		}
	}
	return out
}

func (d *Detector) render(ctx context.Context, clauses string) (string, error) {
	prompt, err := d.prompts.Render(prompts.RedFlags, map[string]string{"clauses": clauses})
	if err != nil {
		return "", err
	}
	resp, err := d.llm.Generate(ctx, prompt)
	if err == nil && llm.IsDegraded(resp) {
		return "", fmt.Errorf("%w: degraded model response", domain.ErrGeneration)
	}
	return resp, err
}

func clamp(v float64) float64 {
	return max(0, min(100, v))
}
