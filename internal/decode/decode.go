// Package decode parses the pipe-delimited lines generative models are asked to
// emit for clauses and risks. Lines that do not follow the grammar exactly are
// rejected with domain.ErrParse.
package decode

import (
	"fmt"
	"strconv"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/textutil"
)

const (
	maxExplanation = 400
	maxReason      = 300
	maxSnippet     = 400
)

var (
	clauseKeys = []string{"CLAUSE", "EXPLANATION", "SNIPPET", "PAGE"}
	riskKeys   = []string{"RISK", "REASON", "SNIPPET", "PAGE", "SCORE"}
)

// Risk is a decoded risk line. Score is the model's raw integer score.
type Risk struct {
	RiskType string
	Reason   string
	Snippet  string
	Page     int
	Score    int
}

// ClauseLine decodes CLAUSE:..|EXPLANATION:..|SNIPPET:..|PAGE:n.
// Importance is left empty for the caller to assign.
func ClauseLine(line string) (domain.ClauseResult, error) {
	f, err := fields(line, clauseKeys)
	if err != nil {
		return domain.ClauseResult{}, err
	}
	page, err := positive(f[3])
	if err != nil {
		return domain.ClauseResult{}, err
	}
	return domain.ClauseResult{
		ClauseType:  strings.TrimSpace(f[0]),
		Explanation: textutil.Truncate(strings.TrimSpace(f[1]), maxExplanation),
		Snippet:     textutil.Truncate(strings.TrimSpace(f[2]), maxSnippet),
		Page:        page,
	}, nil
}

// RiskLine decodes RISK:..|REASON:..|SNIPPET:..|PAGE:n|SCORE:n.
func RiskLine(line string) (Risk, error) {
	f, err := fields(line, riskKeys)
	if err != nil {
		return Risk{}, err
	}
	page, err := positive(f[3])
	if err != nil {
		return Risk{}, err
	}
	score, err := strconv.Atoi(f[4])
	if err != nil || score < 0 || !digits(f[4]) {
		return Risk{}, fmt.Errorf("%w: score %q is not a non-negative integer", domain.ErrParse, f[4])
	}
	return Risk{
		RiskType: strings.TrimSpace(f[0]),
		Reason:   textutil.Truncate(strings.TrimSpace(f[1]), maxReason),
		Snippet:  textutil.Truncate(strings.TrimSpace(f[2]), maxSnippet),
		Page:     page,
		Score:    score,
	}, nil
}

// Clauses decodes every line of a model response and reports how many
// non-blank lines were dropped.
func Clauses(text string) ([]domain.ClauseResult, int) {
	var out []domain.ClauseResult
	dropped := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c, err := ClauseLine(line)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, c)
	}
	return out, dropped
}

// Risks is Clauses for risk lines.
func Risks(text string) ([]Risk, int) {
	var out []Risk
	dropped := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r, err := RiskLine(line)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped
}

// fields splits line on '|' and strips the expected KEY: prefixes in order.
// The first field must not be blank.
func fields(line string, keys []string) ([]string, error) {
	line = strings.TrimSpace(line)
	parts := strings.Split(line, "|")
	if len(parts) != len(keys) {
		return nil, fmt.Errorf("%w: want %d fields, got %d", domain.ErrParse, len(keys), len(parts))
	}
	out := make([]string, len(keys))
	for i, key := range keys {
		v, ok := strings.CutPrefix(parts[i], key+":")
		if !ok {
			return nil, fmt.Errorf("%w: field %d is not %s", domain.ErrParse, i+1, key)
		}
		out[i] = v
	}
	if strings.TrimSpace(out[0]) == "" {
		return nil, fmt.Errorf("%w: empty %s", domain.ErrParse, keys[0])
	}
	return out, nil
}

func positive(s string) (int, error) {
	if !digits(s) {
		return 0, fmt.Errorf("%w: page %q is not numeric", domain.ErrParse, s)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: page %q out of range", domain.ErrParse, s)
	}
	return n, nil
}

func digits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
