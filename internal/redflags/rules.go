package redflags

import (
	"fmt"
	"regexp"
	"strings"

	"contractrag/internal/config"
	"contractrag/internal/domain"
	"contractrag/internal/textutil"
)

// Rule adds Delta to a clause's score when Pattern matches its snippet.
type Rule struct {
	Pattern *regexp.Regexp
	Delta   float64
	Label   string
}

// DefaultRules are the scoring rules used when none are configured.
func DefaultRules() []config.RiskRule {
	return []config.RiskRule{
		{Pattern: `sole discretion`, Delta: 15, Label: "Unilateral discretion"},
		{Pattern: `indemnif`, Delta: 20, Label: "Broad indemnity"},
		{Pattern: `automatic renewal|auto-renew`, Delta: 10, Label: "Auto-renewal"},
		{Pattern: `liquidated damages`, Delta: 15, Label: "Penalties"},
	}
}

// CompileRules compiles configured rules case-insensitively.
func CompileRules(specs []config.RiskRule) ([]Rule, error) {
	out := make([]Rule, 0, len(specs))
	for i, s := range specs {
		if s.Pattern == "" {
			return nil, fmt.Errorf("%w: risk rule %d has an empty pattern", domain.ErrConfig, i)
		}
		re, err := regexp.Compile("(?i)" + s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: risk rule %q: %v", domain.ErrConfig, s.Pattern, err)
		}
		out = append(out, Rule{Pattern: re, Delta: s.Delta, Label: s.Label})
	}
	return out, nil
}

type broadRule struct {
	pattern *regexp.Regexp
	label   string
	score   float64
}

// broadRules back the second pass that runs when nothing clears the threshold.
var broadRules = []broadRule{
	{regexp.MustCompile(`(?i)sole discretion.*terminate|terminate.*sole discretion`), "Unilateral termination right", 65},
	{regexp.MustCompile(`(?i)auto[- ]?renew`), "Automatic renewal (check opt-out window)", 60},
	{regexp.MustCompile(`(?i)indemnif.*any and all|indemnif.*all claims`), "Broad indemnity scope", 70},
	{regexp.MustCompile(`(?i)unlimited liability|without (any )?limit`), "Potential unlimited liability", 72},
	{regexp.MustCompile(`(?i)liquidated damages`), "Liquidated damages / penalty", 68},
	{regexp.MustCompile(`(?i)use .*data for any purpose`), "Broad data usage rights", 62},
}

const (
	noCapLabel      = "No explicit liability cap located"
	noCapReason     = "Indemnity clause present but no separate liability limitation clause detected."
	noCapConfidence = 67
)

// Broadened scans clause snippets with the wider rule set and flags an
// indemnity clause that has no accompanying liability clause. Results are
// unique per (risk type, page).
func Broadened(clauses []domain.ClauseResult) []domain.RedFlagResult {
	var out []domain.RedFlagResult
	var indemnity *domain.ClauseResult
	haveLiability := false
	for i, c := range clauses {
		low := strings.ToLower(c.ClauseType)
		if strings.HasPrefix(low, "liability") {
			haveLiability = true
		}
		if indemnity == nil && strings.HasPrefix(low, "indemn") {
			indemnity = &clauses[i]
		}
		for _, r := range broadRules {
			if !r.pattern.MatchString(c.Snippet) {
				continue
			}
			out = append(out, domain.RedFlagResult{
				RiskType:   r.label,
				Reason:     "Detected pattern in " + c.ClauseType + " clause.",
				Snippet:    textutil.Truncate(c.Snippet, maxSnippet),
				Page:       c.Page,
				Confidence: min(100, r.score),
			})
			break
		}
	}
	if indemnity != nil && !haveLiability {
		out = append(out, domain.RedFlagResult{
			RiskType:   noCapLabel,
			Reason:     noCapReason,
			Snippet:    textutil.Truncate(indemnity.Snippet, maxSnippet),
			Page:       indemnity.Page,
			Confidence: noCapConfidence,
		})
	}

	type key struct {
		riskType string
		page     int
	}
	seen := make(map[key]struct{}, len(out))
	dedup := out[:0]
	for _, r := range out {
		k := key{r.RiskType, r.Page}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		dedup = append(dedup, r)
	}
	return dedup
}
